package lifecycle

import (
	"net/http"
	"sync"

	"github.com/muurk/homecam/internal/metrics"
	"github.com/muurk/homecam/internal/server"
	"github.com/muurk/homecam/internal/wifi"
	"go.uber.org/zap"
)

const (
	// SlotControl is the control-plane listener.
	SlotControl = "control"
	// SlotStream is the MJPEG listener.
	SlotStream = "stream"
)

// Handle is a running listener. A non-nil Handle is accepting connections.
type Handle interface {
	Stop() error
}

// Launcher starts a listener.
type Launcher interface {
	Launch() (Handle, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func() (Handle, error)

// Launch calls f.
func (f LauncherFunc) Launch() (Handle, error) {
	return f()
}

// HTTPLauncher launches an HTTP listener. Stopping it closes the listener and
// every live connection.
type HTTPLauncher struct {
	Name    string
	Host    string
	Port    int
	Handler http.Handler
	Logger  *zap.Logger
}

// Launch implements Launcher.
func (l HTTPLauncher) Launch() (Handle, error) {
	srv, err := server.Start(server.Config{
		Name:    l.Name,
		Host:    l.Host,
		Port:    l.Port,
		Handler: l.Handler,
		Logger:  l.Logger,
	})
	if err != nil {
		return nil, err
	}
	return serverHandle{srv}, nil
}

type serverHandle struct {
	*server.Server
}

func (h serverHandle) Stop() error {
	return h.Close()
}

// slot owns one logical server's handle. Start and stop are one critical
// section each.
type slot struct {
	name     string
	launcher Launcher

	mu     sync.Mutex
	handle Handle
}

// Options configures an Orchestrator.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Orchestrator starts and stops the control and stream listeners in step
// with connectivity.
type Orchestrator struct {
	slots   []*slot
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewOrchestrator creates an orchestrator with both slots empty.
func NewOrchestrator(control, stream Launcher, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Orchestrator{
		slots: []*slot{
			{name: SlotControl, launcher: control},
			{name: SlotStream, launcher: stream},
		},
		logger:  logger,
		metrics: m,
	}
}

// HandleConnectivity implements wifi.Listener.
func (o *Orchestrator) HandleConnectivity(ev wifi.Event) {
	switch ev.Kind {
	case wifi.EventAssociated:
		o.logger.Info("connectivity up, starting servers", zap.String("address", ev.Address))
		o.StartAll()
	case wifi.EventDisassociated:
		o.logger.Info("connectivity lost, stopping servers")
		o.StopAll()
	}
}

// StartAll starts every empty slot.
func (o *Orchestrator) StartAll() {
	for _, s := range o.slots {
		o.start(s)
	}
}

// StopAll stops every occupied slot.
func (o *Orchestrator) StopAll() {
	for _, s := range o.slots {
		o.stop(s)
	}
}

func (o *Orchestrator) start(s *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return
	}

	h, err := s.launcher.Launch()
	if err != nil {
		o.logger.Error("failed to start server", zap.String("server", s.name), zap.Error(err))
		o.metrics.ServerTransitions.WithLabelValues(s.name, "start", "error").Inc()
		return
	}
	s.handle = h
	o.metrics.ServerTransitions.WithLabelValues(s.name, "start", "ok").Inc()
	o.logger.Info("server started", zap.String("server", s.name))
}

// stop keeps the handle when Stop fails; the next disassociation tries again.
func (o *Orchestrator) stop(s *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}

	if err := s.handle.Stop(); err != nil {
		o.logger.Error("failed to stop server", zap.String("server", s.name), zap.Error(err))
		o.metrics.ServerTransitions.WithLabelValues(s.name, "stop", "error").Inc()
		return
	}
	s.handle = nil
	o.metrics.ServerTransitions.WithLabelValues(s.name, "stop", "ok").Inc()
	o.logger.Info("server stopped", zap.String("server", s.name))
}

// Running returns the names of occupied slots in slot order.
func (o *Orchestrator) Running() []string {
	running := make([]string, 0, len(o.slots))
	for _, s := range o.slots {
		s.mu.Lock()
		if s.handle != nil {
			running = append(running, s.name)
		}
		s.mu.Unlock()
	}
	return running
}
