// Package support collects privacy-scrubbed troubleshooting dumps: recent
// logs, the effective configuration and host facts, packed into a zip.
package support

import (
	"time"
)

// Dump is one collected support bundle.
type Dump struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	SystemID   string         `json:"system_id"`
	Version    string         `json:"version"`
	Logs       []LogEntry     `json:"logs,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	SystemInfo *SystemInfo    `json:"system_info,omitempty"`
}

// LogEntry is a single parsed log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}

// SystemInfo describes the host without identifying it: no hostname, no
// addresses, no user paths.
type SystemInfo struct {
	OS            string     `json:"os"`
	Architecture  string     `json:"architecture"`
	GoVersion     string     `json:"go_version"`
	CPUCount      int        `json:"cpu_count"`
	Platform      string     `json:"platform,omitempty"`
	PlatformVer   string     `json:"platform_version,omitempty"`
	KernelVersion string     `json:"kernel_version,omitempty"`
	UptimeSec     uint64     `json:"uptime_seconds,omitempty"`
	MemoryTotal   uint64     `json:"memory_total"`
	MemoryUsed    uint64     `json:"memory_used"`
	MemoryUsage   float64    `json:"memory_usage_percent"`
	Container     bool       `json:"container"`
	Disks         []DiskInfo `json:"disks,omitempty"`
}

// DiskInfo holds usage for one real filesystem mount.
type DiskInfo struct {
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	UsagePerc  float64 `json:"usage_percent"`
}

// CollectorOptions controls what goes into a dump.
type CollectorOptions struct {
	IncludeLogs       bool          `json:"include_logs"`
	IncludeConfig     bool          `json:"include_config"`
	IncludeSystemInfo bool          `json:"include_system_info"`
	LogDuration       time.Duration `json:"log_duration"`
	MaxLogSize        int64         `json:"max_log_size"`
	ScrubSensitive    bool          `json:"scrub_sensitive"`
}

// DefaultCollectorOptions includes everything, a two-week log window, a 25MB
// log cap and scrubbing on.
func DefaultCollectorOptions() CollectorOptions {
	return CollectorOptions{
		IncludeLogs:       true,
		IncludeConfig:     true,
		IncludeSystemInfo: true,
		LogDuration:       14 * 24 * time.Hour,
		MaxLogSize:        25 * 1024 * 1024,
		ScrubSensitive:    true,
	}
}
