// Package config provides the homecam device configuration file.
//
// The configuration is a versioned YAML document holding radio selection,
// listener ports, stream loop timings and FrameSource defaults. Every field
// has a firmware default, so a missing file or a partial document is valid.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/homecam/config.yaml or $HOME/.config/homecam/config.yaml
//   - macOS: $HOME/.config/homecam/config.yaml
//   - Windows: %LOCALAPPDATA%\homecam\config.yaml
//
// # Security
//
// WiFi credentials are never written to this file. They are kept in the
// separate key-value store (see package credentials).
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Servers.ControlPort, cfg.Servers.StreamPort())
//
// # Thread Safety
//
// Load and Save serialize file access through a package mutex and write
// atomically (temp file + rename).
package config
