//go:build !linux

package probe

import "errors"

func diskUsagePercent(path string) (float64, error) {
	return 0, errors.New("disk usage probe is only supported on linux")
}
