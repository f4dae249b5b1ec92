package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muurk/homecam/internal/credentials"
	"go.uber.org/zap"
)

const (
	// apConnectionName is the NetworkManager profile created for the
	// provisioning access point.
	apConnectionName = "homecam-ap"

	// nmStateConnected is NetworkManager's GENERAL.STATE code for an
	// activated device.
	nmStateConnected = 100

	connectWaitSeconds = 15
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// NMCLIConfig holds the configuration for the NetworkManager radio.
type NMCLIConfig struct {
	// NMCLIPath is the path to the nmcli binary.
	// Default: "nmcli" (searches PATH)
	NMCLIPath string

	// Interface is the wireless interface to manage.
	// Default: "wlan0"
	Interface string

	// PollInterval is how often link state is polled.
	// Default: 2 seconds
	PollInterval time.Duration
}

// DefaultNMCLIConfig returns an NMCLIConfig with sensible defaults.
func DefaultNMCLIConfig() NMCLIConfig {
	return NMCLIConfig{
		NMCLIPath:    "nmcli",
		Interface:    "wlan0",
		PollInterval: 2 * time.Second,
	}
}

// NMCLIRadio is a Radio backed by NetworkManager.
type NMCLIRadio struct {
	config NMCLIConfig
	run    CommandRunner
	logger *zap.Logger

	mu         sync.Mutex
	creds      credentials.Credentials
	sink       EventSink
	linked     bool
	connecting bool
	apUp       bool
	cancel     context.CancelFunc
}

// NewNMCLIRadio creates a radio for config.Interface. run may be nil to use
// os/exec.
func NewNMCLIRadio(config NMCLIConfig, run CommandRunner, logger *zap.Logger) *NMCLIRadio {
	def := DefaultNMCLIConfig()
	if config.NMCLIPath == "" {
		config.NMCLIPath = def.NMCLIPath
	}
	if config.Interface == "" {
		config.Interface = def.Interface
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if run == nil {
		run = execRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NMCLIRadio{config: config, run: run, logger: logger}
}

func (r *NMCLIRadio) nmcli(ctx context.Context, args ...string) ([]byte, error) {
	r.logger.Debug("running nmcli", zap.Strings("args", redact(args)))
	out, err := r.run(ctx, r.config.NMCLIPath, args...)
	if err != nil {
		return out, fmt.Errorf("nmcli %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// redact hides the value following a "password" argument.
func redact(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" || out[i] == "wifi-sec.psk" {
			out[i+1] = "***"
		}
	}
	return out
}

// StartStation implements Radio.
func (r *NMCLIRadio) StartStation(ctx context.Context, creds credentials.Credentials, sink EventSink) error {
	if _, err := r.nmcli(ctx, "radio", "wifi", "on"); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.creds = creds
	r.sink = sink
	r.linked = false
	r.cancel = cancel
	r.mu.Unlock()

	go r.poll(pollCtx)

	sink.Post(RadioEvent{Kind: StationStarted})
	return nil
}

// Reconnect implements Radio. The attempt runs in the background; a failed
// attempt is reported as StationDisconnected.
func (r *NMCLIRadio) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	if r.sink == nil {
		r.mu.Unlock()
		return fmt.Errorf("station not started")
	}
	if r.connecting {
		r.mu.Unlock()
		return nil
	}
	r.connecting = true
	creds := r.creds
	sink := r.sink
	r.mu.Unlock()

	args := []string{"--wait", strconv.Itoa(connectWaitSeconds),
		"device", "wifi", "connect", creds.SSID}
	if creds.Password != "" {
		args = append(args, "password", creds.Password)
	}
	args = append(args, "ifname", r.config.Interface)

	go func() {
		_, err := r.nmcli(ctx, args...)

		r.mu.Lock()
		r.connecting = false
		r.mu.Unlock()

		if err != nil {
			r.logger.Warn("association attempt failed", zap.String("ssid", creds.SSID), zap.Error(err))
			sink.Post(RadioEvent{Kind: StationDisconnected})
		}
	}()
	return nil
}

// poll watches link state and posts GotIP / StationDisconnected on edges.
// Nothing is posted once ctx is cancelled.
func (r *NMCLIRadio) poll(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		out, err := r.nmcli(ctx, "-t", "-f", "GENERAL.STATE,IP4.ADDRESS", "device", "show", r.config.Interface)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Debug("link poll failed", zap.Error(err))
			}
			continue
		}
		state, addr := parseDeviceShow(out)
		up := state == nmStateConnected && addr != ""

		r.mu.Lock()
		if ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		was := r.linked
		r.linked = up
		connecting := r.connecting
		sink := r.sink
		r.mu.Unlock()

		switch {
		case up && !was:
			sink.Post(RadioEvent{Kind: GotIP, Address: addr})
		case !up && was && !connecting:
			sink.Post(RadioEvent{Kind: StationDisconnected})
		}
	}
}

// parseDeviceShow extracts the state code and first IPv4 address from terse
// "nmcli device show" output:
//
//	GENERAL.STATE:100 (connected)
//	IP4.ADDRESS[1]:192.168.1.23/24
func parseDeviceShow(out []byte) (int, string) {
	state := -1
	addr := ""

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch {
		case key == "GENERAL.STATE":
			code, _, _ := strings.Cut(value, " ")
			if n, err := strconv.Atoi(code); err == nil {
				state = n
			}
		case strings.HasPrefix(key, "IP4.ADDRESS") && addr == "":
			ip, _, _ := strings.Cut(value, "/")
			addr = ip
		}
	}
	return state, addr
}

// StartAccessPoint implements Radio. An open network is created when
// ap.Password is empty. NetworkManager has no station limit, so
// ap.MaxConnection is only logged.
func (r *NMCLIRadio) StartAccessPoint(ctx context.Context, ap AccessPoint) error {
	r.cancelPolling()

	// A stale profile from a previous run would make "add" fail.
	_, _ = r.nmcli(ctx, "connection", "delete", apConnectionName)

	args := []string{"connection", "add", "type", "wifi",
		"ifname", r.config.Interface,
		"con-name", apConnectionName,
		"autoconnect", "no",
		"ssid", ap.SSID,
		"802-11-wireless.mode", "ap",
		"802-11-wireless.band", "bg",
		"802-11-wireless.channel", strconv.Itoa(ap.Channel),
		"ipv4.method", "shared",
	}
	if ap.Password != "" {
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", ap.Password)
	}
	if _, err := r.nmcli(ctx, args...); err != nil {
		return err
	}
	if _, err := r.nmcli(ctx, "connection", "up", apConnectionName); err != nil {
		return err
	}

	r.mu.Lock()
	r.apUp = true
	r.mu.Unlock()

	r.logger.Debug("access point profile active",
		zap.String("ssid", ap.SSID),
		zap.Int("max_connection", ap.MaxConnection),
	)
	return nil
}

// cancelPolling stops the link poll without waiting for it to exit. The
// caller may be the goroutine draining the sink, so waiting could deadlock
// against a poll blocked in Post.
func (r *NMCLIRadio) cancelPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Stop implements Radio.
func (r *NMCLIRadio) Stop() error {
	r.cancelPolling()

	r.mu.Lock()
	apUp := r.apUp
	r.apUp = false
	r.mu.Unlock()

	if !apUp {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := r.nmcli(ctx, "connection", "down", apConnectionName)
	return err
}
