package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "homecam"
	configFile = "config.yaml"
	storeFile  = "store.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the daemon.
//   - Linux: $XDG_CONFIG_HOME/homecam or $HOME/.config/homecam
//   - macOS: $HOME/.config/homecam
//   - Windows: %LOCALAPPDATA%\homecam
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" && runtime.GOOS != "darwin" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// StorePath returns the path of the persistent key-value file, honoring an
// explicit storage.path.
func (c *Config) StorePath() (string, error) {
	if c.Storage != nil && c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, storeFile), nil
}

// Load reads the configuration from path. An empty path means the default
// location. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	fileMutex.Lock()
	data, err := os.ReadFile(path)
	fileMutex.Unlock()
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges after defaults have been applied.
func (c *Config) Validate() error {
	switch c.Network.Radio {
	case "nmcli", "static":
	default:
		return fmt.Errorf("network.radio: unknown radio %q (expected nmcli or static)", c.Network.Radio)
	}
	if c.Network.RetryLimit < 0 {
		return fmt.Errorf("network.retry_limit must be >= 0, got %d", c.Network.RetryLimit)
	}
	if len(c.Network.AccessPoint.SSID) > 32 {
		return fmt.Errorf("network.access_point.ssid longer than 32 bytes")
	}
	if c.Network.AccessPoint.Channel < 1 || c.Network.AccessPoint.Channel > 14 {
		return fmt.Errorf("network.access_point.channel must be 1-14, got %d", c.Network.AccessPoint.Channel)
	}
	if err := validPort("servers.control_port", c.Servers.ControlPort); err != nil {
		return err
	}
	// The stream listener needs ControlPort+1.
	if err := validPort("servers.control_port+1", c.Servers.StreamPort()); err != nil {
		return err
	}
	if err := validPort("servers.provisioning_port", c.Servers.ProvisioningPort); err != nil {
		return err
	}
	if c.Stream.FrameTimeoutMS < 0 || c.Stream.FrameDelayMS < 0 {
		return fmt.Errorf("stream timings must not be negative")
	}
	if c.Stream.FailureThreshold < 0 {
		return fmt.Errorf("stream.failure_threshold must be >= 0, got %d", c.Stream.FailureThreshold)
	}
	if err := validPort("frame_source.control_port", c.FrameSource.ControlPort); err != nil {
		return err
	}
	if err := validPort("frame_source.data_port", c.FrameSource.DataPort); err != nil {
		return err
	}
	if c.FrameSource.BufferedFrames < 1 {
		return fmt.Errorf("frame_source.buffered_frames must be >= 1, got %d", c.FrameSource.BufferedFrames)
	}
	return nil
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", field, port)
	}
	return nil
}

// Save writes the configuration to path (default location when empty).
// Performs an atomic write to prevent corruption on power loss.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# homecam device configuration
#
# WiFi credentials are NOT stored here; they live in the key-value store
# (storage.path) written by the provisioning form or 'homecam provision'.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
