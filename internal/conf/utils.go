// utils.go: config path resolution and environment helpers.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in
// priority order. The first entry is also where a default config is created
// on first run.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("error fetching executable path: %w", err)
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Local", "gammalyze"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "gammalyze"),
			"/etc/gammalyze",
		}
	}
	return configPaths, nil
}

// RunningInContainer reports whether the process appears to run inside a
// container. Used to adjust support dump paths and log targets.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") || strings.Contains(content, "kubepods") || strings.Contains(content, "containerd")
}
