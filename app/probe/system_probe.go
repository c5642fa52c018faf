package probe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"blackfong-core/app/domains"
)

// MetricsSource yields a snapshot of host resource usage
type MetricsSource interface {
	Pulse(ctx context.Context) (domains.Pulse, error)
}

// preferred hwmon chip names, in order
var preferredSensors = []string{"coretemp", "k10temp", "cpu_thermal", "soc_thermal"}

// SystemProbe reads host metrics from procfs and sysfs
type SystemProbe struct {
	ProcRoot       string
	SysRoot        string
	DiskPath       string
	SampleInterval time.Duration
	Now            func() time.Time
	DiskUsage      func(path string) (float64, error)
}

// NewSystemProbe creates a probe over the real /proc and /sys
func NewSystemProbe() *SystemProbe {
	return &SystemProbe{
		ProcRoot:       "/proc",
		SysRoot:        "/sys",
		DiskPath:       "/",
		SampleInterval: 200 * time.Millisecond,
		Now:            time.Now,
		DiskUsage:      diskUsagePercent,
	}
}

// Pulse samples CPU twice SampleInterval apart and reads the remaining
// metrics once. Temperature and load averages are optional.
func (p *SystemProbe) Pulse(ctx context.Context) (domains.Pulse, error) {
	var pulse domains.Pulse

	first, err := readCPU(p.proc("stat"))
	if err != nil {
		return pulse, fmt.Errorf("failed to read cpu stats: %w", err)
	}
	select {
	case <-ctx.Done():
		return pulse, ctx.Err()
	case <-time.After(p.SampleInterval):
	}
	second, err := readCPU(p.proc("stat"))
	if err != nil {
		return pulse, fmt.Errorf("failed to read cpu stats: %w", err)
	}
	pulse.CPUPercent = cpuPercent(first, second)

	pulse.MemoryPercent, err = readMemoryPercent(p.proc("meminfo"))
	if err != nil {
		return pulse, fmt.Errorf("failed to read memory info: %w", err)
	}

	pulse.DiskPercent, err = p.DiskUsage(p.DiskPath)
	if err != nil {
		return pulse, fmt.Errorf("failed to read disk usage: %w", err)
	}

	pulse.TempC = readTemperature(filepath.Join(p.SysRoot, "class", "hwmon"))

	now := p.Now()
	if uptime, err := readUptime(p.proc("uptime")); err == nil {
		pulse.UptimeSeconds = int64(uptime)
		pulse.BootTime = now.Add(-time.Duration(uptime * float64(time.Second))).UTC()
	} else {
		pulse.BootTime = now.UTC()
	}

	pulse.LoadAvg = readLoadAvg(p.proc("loadavg"))
	return pulse, nil
}

func (p *SystemProbe) proc(name string) string {
	return filepath.Join(p.ProcRoot, name)
}

type cpuReading struct {
	busy uint64
	idle uint64
}

// readCPU parses the aggregate line of /proc/stat:
// cpu user nice system idle iowait irq softirq steal [guest guest_nice]
func readCPU(path string) (cpuReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return cpuReading{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return cpuReading{}, fmt.Errorf("%s is empty", path)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return cpuReading{}, fmt.Errorf("unexpected cpu line in %s", path)
	}

	v := make([]uint64, 8)
	for i := range v {
		v[i], err = strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return cpuReading{}, fmt.Errorf("bad cpu field %q: %w", fields[i+1], err)
		}
	}
	return cpuReading{
		busy: v[0] + v[1] + v[2] + v[5] + v[6] + v[7],
		idle: v[3] + v[4],
	}, nil
}

func cpuPercent(prev, cur cpuReading) float64 {
	if cur.busy < prev.busy || cur.idle < prev.idle {
		return 0
	}
	busy := cur.busy - prev.busy
	total := busy + cur.idle - prev.idle
	if total == 0 {
		return 0
	}
	return float64(busy) / float64(total) * 100
}

func readMemoryPercent(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var total, available uint64
	var haveTotal, haveAvailable bool
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		switch parts[0] {
		case "MemTotal:":
			total, err = strconv.ParseUint(parts[1], 10, 64)
			haveTotal = err == nil
		case "MemAvailable:":
			available, err = strconv.ParseUint(parts[1], 10, 64)
			haveAvailable = err == nil
		}
	}
	if !haveTotal || !haveAvailable || total == 0 {
		return 0, fmt.Errorf("MemTotal/MemAvailable missing from %s", path)
	}
	if available > total {
		return 0, nil
	}
	return float64(total-available) / float64(total) * 100, nil
}

// readTemperature returns the first temp*_input of a preferred chip, else the
// first readable sensor of any chip, in degrees Celsius.
func readTemperature(hwmonDir string) *float64 {
	chips, err := filepath.Glob(filepath.Join(hwmonDir, "hwmon*"))
	if err != nil || len(chips) == 0 {
		return nil
	}
	sort.Strings(chips)

	readings := make(map[string]float64)
	var order []string
	for _, chip := range chips {
		nameData, err := os.ReadFile(filepath.Join(chip, "name"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(nameData))
		if _, seen := readings[name]; seen {
			continue
		}
		if c, ok := firstTempInput(chip); ok {
			readings[name] = c
			order = append(order, name)
		}
	}

	for _, name := range preferredSensors {
		if c, ok := readings[name]; ok {
			return &c
		}
	}
	if len(order) > 0 {
		c := readings[order[0]]
		return &c
	}
	return nil
}

func firstTempInput(chip string) (float64, bool) {
	inputs, err := filepath.Glob(filepath.Join(chip, "temp*_input"))
	if err != nil {
		return 0, false
	}
	sort.Strings(inputs)
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		return milli / 1000, true
	}
	return 0, false
}

func readUptime(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%s is empty", path)
	}
	return strconv.ParseFloat(fields[0], 64)
}

func readLoadAvg(path string) domains.LoadAvg {
	var avg domains.LoadAvg
	data, err := os.ReadFile(path)
	if err != nil {
		return avg
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return avg
	}
	parse := func(s string) *float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &v
	}
	avg.One = parse(fields[0])
	avg.Five = parse(fields[1])
	avg.Fifteen = parse(fields[2])
	return avg
}
