//go:build linux

package probe

import (
	"golang.org/x/sys/unix"
)

// diskUsagePercent reports used/(used+available) for the filesystem holding
// path, matching what df shows for unprivileged users.
func diskUsagePercent(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	bsize := uint64(st.Bsize)
	used := (st.Blocks - st.Bfree) * bsize
	avail := st.Bavail * bsize
	if used+avail == 0 {
		return 0, nil
	}
	return float64(used) / float64(used+avail) * 100, nil
}
