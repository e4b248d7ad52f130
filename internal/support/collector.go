package support

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/tkarvo/gammalyze/internal/errors"
)

// Collector gathers support dumps for troubleshooting.
type Collector struct {
	configPath string
	dataPath   string
	systemID   string
	version    string
}

// NewCollector creates a collector rooted at the given config and data paths.
func NewCollector(configPath, dataPath, systemID, version string) *Collector {
	if configPath == "" {
		configPath = "."
	}
	if dataPath == "" {
		dataPath = "."
	}
	return &Collector{
		configPath: configPath,
		dataPath:   dataPath,
		systemID:   systemID,
		version:    version,
	}
}

// Collect gathers the data selected by opts into a Dump.
func (c *Collector) Collect(ctx context.Context, opts CollectorOptions) (*Dump, error) {
	if !opts.IncludeLogs && !opts.IncludeConfig && !opts.IncludeSystemInfo {
		return nil, errors.Newf("at least one data type must be included in support dump").
			Component("support").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dump := &Dump{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SystemID:  c.systemID,
		Version:   c.version,
	}

	if opts.IncludeSystemInfo {
		info := collectSystemInfo()
		dump.SystemInfo = &info
	}

	if opts.IncludeConfig {
		config, err := c.collectConfig(opts.ScrubSensitive)
		if err != nil {
			return nil, errors.New(err).
				Component("support").
				Category(errors.CategoryConfiguration).
				Context("scrub_sensitive", opts.ScrubSensitive).
				Build()
		}
		dump.Config = config
	}

	if opts.IncludeLogs {
		dump.Logs = c.collectLogs(opts.LogDuration, opts.MaxLogSize)
	}

	return dump, nil
}

// CreateArchive packs the dump into a zip: metadata.json plus one file per
// included section.
func (c *Collector) CreateArchive(ctx context.Context, dump *Dump) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	sections := []struct {
		name    string
		payload any
	}{
		{"metadata.json", dump},
		{"logs.json", dump.Logs},
		{"config.json", dump.Config},
		{"system_info.json", dump.SystemInfo},
	}
	for _, s := range sections {
		if s.name != "metadata.json" && isEmptySection(s.payload) {
			continue
		}
		f, err := w.Create(s.name)
		if err != nil {
			return nil, archiveError(err, s.name)
		}
		if err := json.NewEncoder(f).Encode(s.payload); err != nil {
			return nil, archiveError(err, s.name)
		}
	}

	if err := w.Close(); err != nil {
		return nil, archiveError(err, "archive")
	}
	return buf.Bytes(), nil
}

func isEmptySection(payload any) bool {
	switch v := payload.(type) {
	case []LogEntry:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case *SystemInfo:
		return v == nil
	default:
		return payload == nil
	}
}

func archiveError(err error, section string) error {
	return errors.New(err).
		Component("support").
		Category(errors.CategoryFileIO).
		Context("section", section).
		Build()
}

// collectSystemInfo gathers host facts through gopsutil. Every probe is best
// effort: a host where one of them fails still yields a usable dump.
func collectSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCount:     runtime.NumCPU(),
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
		info.PlatformVer = hostInfo.PlatformVersion
		info.KernelVersion = hostInfo.KernelVersion
		info.UptimeSec = hostInfo.Uptime
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = memInfo.Total
		info.MemoryUsed = memInfo.Used
		info.MemoryUsage = memInfo.UsedPercent
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		info.Container = true
	}

	if partitions, err := disk.Partitions(false); err == nil {
		for _, partition := range partitions {
			if skipFilesystem(partition.Fstype) {
				continue
			}
			usage, err := disk.Usage(partition.Mountpoint)
			if err != nil {
				continue
			}
			info.Disks = append(info.Disks, DiskInfo{
				Mountpoint: partition.Mountpoint,
				Fstype:     partition.Fstype,
				Total:      usage.Total,
				Used:       usage.Used,
				Free:       usage.Free,
				UsagePerc:  usage.UsedPercent,
			})
		}
	}

	return info
}

// skipFilesystem filters out pseudo and overlay filesystems.
func skipFilesystem(fstype string) bool {
	switch fstype {
	case "proc", "sysfs", "devtmpfs", "devpts", "tmpfs", "cgroup", "cgroup2",
		"overlay", "squashfs", "debugfs", "tracefs", "securityfs", "fusectl",
		"configfs", "bpf", "mqueue", "hugetlbfs", "pstore", "autofs":
		return true
	}
	return false
}

// collectConfig loads config.yaml from the collector's config path and
// optionally scrubs credentials and endpoints.
func (c *Collector) collectConfig(scrub bool) (map[string]any, error) {
	configPath := filepath.Join(c.configPath, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.New(err).
			Component("support").
			Category(errors.CategoryFileIO).
			Context("config_path", configPath).
			Build()
	}

	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.New(err).
			Component("support").
			Category(errors.CategoryConfiguration).
			Context("file_size", len(data)).
			Build()
	}

	if scrub {
		config = scrubConfig(config)
	}
	return config, nil
}

// sensitiveKeys match any config key that may carry credentials or reachable
// endpoints: MQTT broker and topic, notify URLs, the Sentry DSN.
var sensitiveKeys = []string{
	"password", "token", "secret", "apikey", "api_key", "username",
	"broker", "topic", "urls", "dsn", "webhook",
}

func scrubConfig(config map[string]any) map[string]any {
	scrubbed := make(map[string]any, len(config))
	for k, v := range config {
		scrubbed[k] = scrubValue(k, v)
	}
	return scrubbed
}

func scrubValue(key string, value any) any {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return "[REDACTED]"
		}
	}

	switch v := value.(type) {
	case map[string]any:
		scrubbed := make(map[string]any, len(v))
		for k, val := range v {
			scrubbed[k] = scrubValue(k, val)
		}
		return scrubbed
	case []any:
		scrubbed := make([]any, len(v))
		for i, item := range v {
			scrubbed[i] = scrubValue(key, item)
		}
		return scrubbed
	default:
		return value
	}
}

// collectLogs merges journald entries with rotated log files, sorted by time.
// Both sources are optional; missing ones contribute nothing.
func (c *Collector) collectLogs(duration time.Duration, maxSize int64) []LogEntry {
	logs := c.collectJournalLogs(duration)
	logs = append(logs, c.collectLogFiles(duration, maxSize)...)
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})
	return logs
}

func (c *Collector) collectJournalLogs(duration time.Duration) []LogEntry {
	since := time.Now().Add(-duration).Format("2006-01-02 15:04:05")
	cmd := exec.Command("journalctl",
		"-u", "gammalyze.service",
		"--since", since,
		"--no-pager",
		"-o", "json",
		"--no-hostname")

	output, err := cmd.Output()
	if err != nil {
		// No systemd or no unit installed; not an error.
		return nil
	}

	var logs []LogEntry
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}

		message, _ := entry["MESSAGE"].(string)
		priority, _ := entry["PRIORITY"].(string)

		var ts time.Time
		if raw, ok := entry["__REALTIME_TIMESTAMP"].(string); ok {
			if usec, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ts = time.Unix(0, usec*1000)
			}
		}

		level := "INFO"
		switch priority {
		case "0", "1", "2", "3":
			level = "ERROR"
		case "4":
			level = "WARNING"
		case "7":
			level = "DEBUG"
		}

		logs = append(logs, LogEntry{
			Timestamp: ts,
			Level:     level,
			Message:   message,
			Source:    "journald",
		})
	}
	return logs
}

func (c *Collector) collectLogFiles(duration time.Duration, maxSize int64) []LogEntry {
	logPaths := []string{
		"logs",
		filepath.Join(c.dataPath, "logs"),
		filepath.Join(c.configPath, "logs"),
	}

	cutoff := time.Now().Add(-duration)
	var logs []LogEntry
	var totalSize int64

	for _, logPath := range logPaths {
		info, err := os.Stat(logPath)
		if err != nil {
			continue
		}

		if info.IsDir() {
			files, err := os.ReadDir(logPath)
			if err != nil {
				continue
			}
			for _, file := range files {
				if !strings.HasSuffix(file.Name(), ".log") {
					continue
				}
				fileLogs, size := parseLogFile(filepath.Join(logPath, file.Name()), cutoff, maxSize-totalSize)
				logs = append(logs, fileLogs...)
				totalSize += size
				if totalSize >= maxSize {
					return logs
				}
			}
		} else {
			fileLogs, size := parseLogFile(logPath, cutoff, maxSize-totalSize)
			logs = append(logs, fileLogs...)
			totalSize += size
		}

		if totalSize >= maxSize {
			break
		}
	}
	return logs
}

func parseLogFile(path string, cutoff time.Time, maxSize int64) ([]LogEntry, int64) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var logs []LogEntry
	var totalSize int64

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		totalSize += int64(len(line))
		if totalSize > maxSize {
			break
		}
		if entry := parseLogLine(line); entry != nil && entry.Timestamp.After(cutoff) {
			logs = append(logs, *entry)
		}
	}
	return logs, totalSize
}

// parseLogLine understands the slog JSON format the logging package writes,
// with a plain-text fallback for older files.
func parseLogLine(line string) *LogEntry {
	var jsonLog map[string]any
	if err := json.Unmarshal([]byte(line), &jsonLog); err == nil {
		entry := &LogEntry{Source: "file"}
		if timeStr, ok := jsonLog["time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
				entry.Timestamp = t
			}
		}
		if level, ok := jsonLog["level"].(string); ok {
			entry.Level = strings.ToUpper(level)
		}
		if msg, ok := jsonLog["msg"].(string); ok {
			entry.Message = msg
		}
		if service, ok := jsonLog["service"].(string); ok {
			entry.Source = service
		}
		if entry.Message != "" {
			return entry
		}
	}

	// Fallback: "2006-01-02 15:04:05 [LEVEL] message"
	parts := strings.SplitN(line, " ", 4)
	if len(parts) < 4 {
		return nil
	}
	timestamp, err := time.Parse("2006-01-02 15:04:05", parts[0]+" "+parts[1])
	if err != nil {
		return nil
	}
	return &LogEntry{
		Timestamp: timestamp,
		Level:     strings.Trim(parts[2], "[]"),
		Message:   parts[3],
		Source:    "file",
	}
}

// SanitizeFilename makes a string safe as a dump filename component.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(name)
}
