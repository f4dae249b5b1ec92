package wifi

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/muurk/homecam/internal/credentials"
	"go.uber.org/zap"
)

// StaticRadio is a Radio for hosts whose network is managed elsewhere.
// Every association attempt succeeds immediately with the first
// non-loopback address, or fails when there is none.
type StaticRadio struct {
	// Addrs lists candidate addresses. Default: net.InterfaceAddrs
	Addrs func() ([]net.Addr, error)

	logger *zap.Logger

	mu   sync.Mutex
	sink EventSink
}

// NewStaticRadio creates a StaticRadio reading host interface addresses.
func NewStaticRadio(logger *zap.Logger) *StaticRadio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaticRadio{Addrs: net.InterfaceAddrs, logger: logger}
}

// StartStation implements Radio. The credentials are ignored.
func (r *StaticRadio) StartStation(_ context.Context, _ credentials.Credentials, sink EventSink) error {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()

	sink.Post(RadioEvent{Kind: StationStarted})
	return nil
}

// Reconnect implements Radio.
func (r *StaticRadio) Reconnect(_ context.Context) error {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink == nil {
		return fmt.Errorf("station not started")
	}

	addr, err := r.firstAddress()
	if err != nil {
		r.logger.Warn("no usable address", zap.Error(err))
		sink.Post(RadioEvent{Kind: StationDisconnected})
		return nil
	}
	sink.Post(RadioEvent{Kind: GotIP, Address: addr})
	return nil
}

// firstAddress prefers IPv4 and falls back to a global IPv6 address.
func (r *StaticRadio) firstAddress() (string, error) {
	addrs, err := r.Addrs()
	if err != nil {
		return "", fmt.Errorf("failed to list addresses: %w", err)
	}

	var v6 string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
		if v6 == "" {
			v6 = ipNet.IP.String()
		}
	}
	if v6 != "" {
		return v6, nil
	}
	return "", fmt.Errorf("no non-loopback address")
}

// StartAccessPoint implements Radio. A static host cannot host an access
// point; the call is logged and succeeds so provisioning stays reachable on
// the existing network.
func (r *StaticRadio) StartAccessPoint(_ context.Context, ap AccessPoint) error {
	r.logger.Warn("static radio cannot start an access point, provisioning on existing network",
		zap.String("ssid", ap.SSID))
	return nil
}

// Stop implements Radio.
func (r *StaticRadio) Stop() error {
	return nil
}
