package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	proc string
	sys  string
}

func newFakeHost(t *testing.T) *fakeHost {
	root := t.TempDir()
	h := &fakeHost{proc: filepath.Join(root, "proc"), sys: filepath.Join(root, "sys")}
	require.NoError(t, os.MkdirAll(h.proc, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(h.sys, "class", "hwmon"), 0755))
	return h
}

func (h *fakeHost) write(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (h *fakeHost) sensor(t *testing.T, idx, name string, milli string) {
	dir := filepath.Join(h.sys, "class", "hwmon", "hwmon"+idx)
	h.write(t, filepath.Join(dir, "name"), name+"\n")
	h.write(t, filepath.Join(dir, "temp1_input"), milli+"\n")
}

func (h *fakeHost) probe() *SystemProbe {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &SystemProbe{
		ProcRoot:       h.proc,
		SysRoot:        h.sys,
		DiskPath:       "/",
		SampleInterval: time.Millisecond,
		Now:            func() time.Time { return now },
		DiskUsage:      func(string) (float64, error) { return 42.5, nil },
	}
}

func TestPulse_ReadsProcfs(t *testing.T) {
	h := newFakeHost(t)
	h.write(t, filepath.Join(h.proc, "stat"), "cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 1 2 3 4 5 6 7 8\n")
	h.write(t, filepath.Join(h.proc, "meminfo"), "MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    250 kB\n")
	h.write(t, filepath.Join(h.proc, "uptime"), "3600.50 7000.00\n")
	h.write(t, filepath.Join(h.proc, "loadavg"), "0.50 0.25 0.10 1/200 12345\n")
	h.sensor(t, "0", "acpitz", "40000")
	h.sensor(t, "1", "coretemp", "61500")

	p, err := h.probe().Pulse(context.Background())
	require.NoError(t, err)

	// identical samples give no delta
	assert.Equal(t, 0.0, p.CPUPercent)
	assert.InDelta(t, 75.0, p.MemoryPercent, 0.001)
	assert.Equal(t, 42.5, p.DiskPercent)
	require.NotNil(t, p.TempC)
	assert.InDelta(t, 61.5, *p.TempC, 0.001)
	assert.Equal(t, int64(3600), p.UptimeSeconds)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 59, 59, 500000000, time.UTC), p.BootTime)
	require.NotNil(t, p.LoadAvg.One)
	assert.Equal(t, 0.5, *p.LoadAvg.One)
	assert.Equal(t, 0.1, *p.LoadAvg.Fifteen)
}

func TestPulse_OptionalMetricsAbsent(t *testing.T) {
	h := newFakeHost(t)
	h.write(t, filepath.Join(h.proc, "stat"), "cpu  1 0 1 8 0 0 0 0\n")
	h.write(t, filepath.Join(h.proc, "meminfo"), "MemTotal: 100 kB\nMemAvailable: 100 kB\n")

	p, err := h.probe().Pulse(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p.TempC)
	assert.Nil(t, p.LoadAvg.One)
	assert.Equal(t, 0.0, p.MemoryPercent)
}

func TestPulse_MissingStat(t *testing.T) {
	h := newFakeHost(t)
	_, err := h.probe().Pulse(context.Background())
	assert.Error(t, err)
}

func TestCPUPercent(t *testing.T) {
	prev := cpuReading{busy: 100, idle: 900}
	assert.InDelta(t, 25.0, cpuPercent(prev, cpuReading{busy: 150, idle: 1050}), 0.001)
	assert.Equal(t, 0.0, cpuPercent(prev, prev))
	assert.Equal(t, 0.0, cpuPercent(prev, cpuReading{busy: 50, idle: 900}))
}

func TestReadTemperature_FallsBackToFirstChip(t *testing.T) {
	h := newFakeHost(t)
	h.sensor(t, "0", "nvme", "35000")
	h.sensor(t, "1", "acpitz", "45000")

	c := readTemperature(filepath.Join(h.sys, "class", "hwmon"))
	require.NotNil(t, c)
	assert.InDelta(t, 35.0, *c, 0.001)
}
