package config

import "time"

// Config represents the entire device configuration file.
type Config struct {
	Version     int                `yaml:"version"`
	LogLevel    string             `yaml:"log_level,omitempty"`
	Network     *NetworkConfig     `yaml:"network"`
	Servers     *ServersConfig     `yaml:"servers"`
	Stream      *StreamConfig      `yaml:"stream"`
	FrameSource *FrameSourceConfig `yaml:"frame_source"`
	Storage     *StorageConfig     `yaml:"storage"`
}

// NetworkConfig controls station association and the provisioning fallback.
type NetworkConfig struct {
	Radio      string `yaml:"radio"`       // "nmcli" or "static"
	Interface  string `yaml:"interface"`   // Wireless interface (e.g., "wlan0")
	RetryLimit int    `yaml:"retry_limit"` // Consecutive disconnections tolerated before provisioning
	PollMS     int    `yaml:"poll_ms"`     // Link state poll interval for radios that need polling

	AccessPoint *AccessPointConfig `yaml:"access_point"`
}

// AccessPointConfig describes the provisioning access point.
type AccessPointConfig struct {
	SSID          string `yaml:"ssid"`
	Password      string `yaml:"password,omitempty"` // Empty = open network
	Channel       int    `yaml:"channel"`
	MaxConnection int    `yaml:"max_connection"`
}

// ServersConfig holds listener ports. The stream listener always uses
// ControlPort+1.
type ServersConfig struct {
	Host             string `yaml:"host,omitempty"` // Empty = all interfaces
	ControlPort      int    `yaml:"control_port"`
	ProvisioningPort int    `yaml:"provisioning_port"`
}

// StreamConfig holds the multipart loop timings.
type StreamConfig struct {
	FrameTimeoutMS   int `yaml:"frame_timeout_ms"`
	FailureThreshold int `yaml:"failure_threshold"`
	FrameDelayMS     int `yaml:"frame_delay_ms"`
}

// FrameSourceConfig holds defaults for binding the remote FrameSource.
type FrameSourceConfig struct {
	ServiceName      string `yaml:"service_name"` // Well-known mDNS name used when set_server has no address
	ResolveTimeoutMS int    `yaml:"resolve_timeout_ms"`
	ControlPort      int    `yaml:"control_port"`
	DataPort         int    `yaml:"data_port"`
	BufferedFrames   int    `yaml:"buffered_frames"`
	AutoBind         bool   `yaml:"auto_bind"` // Bind on startup using ServiceName
}

// StorageConfig locates the persistent key-value file.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // Empty = <config dir>/store.yaml
}

// FrameTimeout returns the per-frame acquisition bound.
func (s *StreamConfig) FrameTimeout() time.Duration {
	return time.Duration(s.FrameTimeoutMS) * time.Millisecond
}

// FrameDelay returns the inter-frame yield.
func (s *StreamConfig) FrameDelay() time.Duration {
	return time.Duration(s.FrameDelayMS) * time.Millisecond
}

// ResolveTimeout returns the mDNS resolution bound.
func (f *FrameSourceConfig) ResolveTimeout() time.Duration {
	return time.Duration(f.ResolveTimeoutMS) * time.Millisecond
}

// PollInterval returns the radio link poll interval.
func (n *NetworkConfig) PollInterval() time.Duration {
	return time.Duration(n.PollMS) * time.Millisecond
}

// StreamPort returns the port of the stream listener.
func (s *ServersConfig) StreamPort() int {
	return s.ControlPort + 1
}

// Default returns a Config populated with the firmware defaults.
func Default() *Config {
	return &Config{
		Version:  1,
		LogLevel: "info",
		Network: &NetworkConfig{
			Radio:      "nmcli",
			Interface:  "wlan0",
			RetryLimit: 10,
			PollMS:     2000,
			AccessPoint: &AccessPointConfig{
				SSID:          "HomeCam_Config",
				Channel:       1,
				MaxConnection: 4,
			},
		},
		Servers: &ServersConfig{
			ControlPort:      80,
			ProvisioningPort: 80,
		},
		Stream: &StreamConfig{
			FrameTimeoutMS:   400,
			FailureThreshold: 10,
			FrameDelayMS:     30,
		},
		FrameSource: &FrameSourceConfig{
			ServiceName:      "espfsp_server",
			ResolveTimeoutMS: 2000,
			ControlPort:      5003,
			DataPort:         5004,
			BufferedFrames:   10,
			AutoBind:         false,
		},
		Storage: &StorageConfig{},
	}
}

// applyDefaults fills every section that is missing or zero-valued.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Network == nil {
		c.Network = d.Network
	}
	if c.Network.Radio == "" {
		c.Network.Radio = d.Network.Radio
	}
	if c.Network.Interface == "" {
		c.Network.Interface = d.Network.Interface
	}
	if c.Network.RetryLimit == 0 {
		c.Network.RetryLimit = d.Network.RetryLimit
	}
	if c.Network.PollMS == 0 {
		c.Network.PollMS = d.Network.PollMS
	}
	if c.Network.AccessPoint == nil {
		c.Network.AccessPoint = d.Network.AccessPoint
	}
	if c.Network.AccessPoint.SSID == "" {
		c.Network.AccessPoint.SSID = d.Network.AccessPoint.SSID
	}
	if c.Network.AccessPoint.Channel == 0 {
		c.Network.AccessPoint.Channel = d.Network.AccessPoint.Channel
	}
	if c.Network.AccessPoint.MaxConnection == 0 {
		c.Network.AccessPoint.MaxConnection = d.Network.AccessPoint.MaxConnection
	}

	if c.Servers == nil {
		c.Servers = d.Servers
	}
	if c.Servers.ControlPort == 0 {
		c.Servers.ControlPort = d.Servers.ControlPort
	}
	if c.Servers.ProvisioningPort == 0 {
		c.Servers.ProvisioningPort = d.Servers.ProvisioningPort
	}

	if c.Stream == nil {
		c.Stream = d.Stream
	}
	if c.Stream.FrameTimeoutMS == 0 {
		c.Stream.FrameTimeoutMS = d.Stream.FrameTimeoutMS
	}
	if c.Stream.FailureThreshold == 0 {
		c.Stream.FailureThreshold = d.Stream.FailureThreshold
	}
	if c.Stream.FrameDelayMS == 0 {
		c.Stream.FrameDelayMS = d.Stream.FrameDelayMS
	}

	if c.FrameSource == nil {
		c.FrameSource = d.FrameSource
	}
	if c.FrameSource.ServiceName == "" {
		c.FrameSource.ServiceName = d.FrameSource.ServiceName
	}
	if c.FrameSource.ResolveTimeoutMS == 0 {
		c.FrameSource.ResolveTimeoutMS = d.FrameSource.ResolveTimeoutMS
	}
	if c.FrameSource.ControlPort == 0 {
		c.FrameSource.ControlPort = d.FrameSource.ControlPort
	}
	if c.FrameSource.DataPort == 0 {
		c.FrameSource.DataPort = d.FrameSource.DataPort
	}
	if c.FrameSource.BufferedFrames == 0 {
		c.FrameSource.BufferedFrames = d.FrameSource.BufferedFrames
	}

	if c.Storage == nil {
		c.Storage = d.Storage
	}
}
