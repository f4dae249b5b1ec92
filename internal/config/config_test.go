package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	require.NoError(t, err)

	assert.NotEmpty(t, configDir)
	assert.Contains(t, configDir, "homecam")

	if runtime.GOOS == "darwin" {
		assert.Contains(t, configDir, ".config")
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(configPath))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Network.RetryLimit)
	assert.Equal(t, 80, cfg.Servers.ControlPort)
	assert.Equal(t, 81, cfg.Servers.StreamPort())
	assert.Equal(t, 400*time.Millisecond, cfg.Stream.FrameTimeout())
	assert.Equal(t, 30*time.Millisecond, cfg.Stream.FrameDelay())
	assert.Equal(t, 10, cfg.Stream.FailureThreshold)
	assert.Equal(t, 2*time.Second, cfg.FrameSource.ResolveTimeout())
	assert.Equal(t, "espfsp_server", cfg.FrameSource.ServiceName)
	assert.Equal(t, "HomeCam_Config", cfg.Network.AccessPoint.SSID)
}

func TestParse_PartialDocumentGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
version: 1
servers:
  control_port: 8080
stream:
  failure_threshold: 3
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Servers.ControlPort)
	assert.Equal(t, 8081, cfg.Servers.StreamPort())
	assert.Equal(t, 3, cfg.Stream.FailureThreshold)
	assert.Equal(t, 400, cfg.Stream.FrameTimeoutMS)
	assert.Equal(t, "nmcli", cfg.Network.Radio)
	assert.Equal(t, 5003, cfg.FrameSource.ControlPort)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"bad version", "version: 2\n", "unsupported config version"},
		{"bad yaml", "version: [\n", "failed to parse"},
		{"unknown radio", "version: 1\nnetwork:\n  radio: zigbee\n", "unknown radio"},
		{"stream port overflow", "version: 1\nservers:\n  control_port: 65535\n", "control_port+1"},
		{"bad channel", "version: 1\nnetwork:\n  access_point:\n    channel: 15\n", "channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Servers.ControlPort = 9000
	cfg.FrameSource.AutoBind = true
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# homecam device configuration"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Servers.ControlPort)
	assert.True(t, loaded.FrameSource.AutoBind)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/var/lib/homecam/store.yaml"

	path, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/homecam/store.yaml", path)

	cfg.Storage.Path = ""
	path, err = cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "store.yaml", filepath.Base(path))
}
