package domains

import "time"

// LoadAvg holds the 1, 5 and 15 minute load averages. Nil when unavailable.
type LoadAvg struct {
	One     *float64 `json:"1m"`
	Five    *float64 `json:"5m"`
	Fifteen *float64 `json:"15m"`
}

// Pulse is an instantaneous reading of host resources
type Pulse struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	TempC         *float64  `json:"temp_c"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	BootTime      time.Time `json:"boot_time"`
	LoadAvg       LoadAvg   `json:"load_avg"`
}
