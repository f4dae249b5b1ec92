package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/homecam/internal/discovery"
	"github.com/muurk/homecam/internal/framesource"
	"github.com/muurk/homecam/internal/metrics"
	"go.uber.org/zap"
)

// Config holds the gateway timings and frame source defaults
type Config struct {
	FrameTimeout     time.Duration // Bounded wait for one frame
	FailureThreshold int           // Consecutive acquisition failures tolerated per stream
	FrameDelay       time.Duration // Yield between frames

	SourcesTimeout time.Duration // Bound for list-sources
	ConfigTimeout  time.Duration // Bound for config queries and control calls
	MaxSources     int

	ServiceName    string // Well-known mDNS name resolved when bind has no address
	ResolveTimeout time.Duration
	ControlPort    int
	DataPort       int
	BufferedFrames int
}

// DefaultConfig returns a Config with the device defaults.
func DefaultConfig() Config {
	return Config{
		FrameTimeout:     400 * time.Millisecond,
		FailureThreshold: 10,
		FrameDelay:       30 * time.Millisecond,
		SourcesTimeout:   time.Second,
		ConfigTimeout:    2 * time.Second,
		MaxSources:       5,
		ServiceName:      discovery.WellKnownName,
		ResolveTimeout:   discovery.DefaultResolveTimeout,
		ControlPort:      framesource.DefaultControlPort,
		DataPort:         framesource.DefaultDataPort,
		BufferedFrames:   framesource.DefaultBufferedFrames,
	}
}

// Resolver resolves a service name to an address.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*discovery.Service, error)
}

// Status is the /status document.
type Status struct {
	Connectivity  string   `json:"connectivity"`
	Address       string   `json:"address,omitempty"`
	SourceBound   bool     `json:"source_bound"`
	Source        string   `json:"source,omitempty"`
	ActiveStreams int64    `json:"active_streams"`
	Servers       []string `json:"servers"`
	Version       string   `json:"version"`
}

// StatusFunc fills the parts of Status owned by other components.
type StatusFunc func(st *Status)

// Options configures a Gateway.
type Options struct {
	Config   Config
	Dialer   framesource.Dialer
	Resolver Resolver
	Status   StatusFunc
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Gateway owns the frame source reference and serves the control and stream
// endpoints backed by it.
type Gateway struct {
	cfg      Config
	dialer   framesource.Dialer
	resolver Resolver
	status   StatusFunc
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu         sync.Mutex
	source     framesource.Source
	sourceAddr string
	binding    bool

	activeStreams atomic.Int64
}

// New creates a Gateway with no frame source bound.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Gateway{
		cfg:      opts.Config,
		dialer:   opts.Dialer,
		resolver: opts.Resolver,
		status:   opts.Status,
		metrics:  m,
		logger:   logger,
	}
}

// Source returns the bound frame source, or nil.
func (g *Gateway) Source() framesource.Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.source
}

// ActiveStreams returns the number of streams in the frame loop.
func (g *Gateway) ActiveStreams() int64 {
	return g.activeStreams.Load()
}

// Bind connects to the frame server at addr ("host" or "host:port"; the port
// is the control port and the data port follows it). An empty addr resolves
// the configured service name. Resolution and dial run without the lock; a
// second Bind while one is in flight fails as already bound.
func (g *Gateway) Bind(ctx context.Context, addr string) error {
	const op = "bind"

	g.mu.Lock()
	if g.source != nil || g.binding {
		g.mu.Unlock()
		return newError(KindAlreadyBound, op, errAlreadyBound)
	}
	g.binding = true
	g.mu.Unlock()

	src, address, opts, err := g.dial(ctx, addr)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.binding = false
	if err != nil {
		return err
	}

	g.source = src
	g.sourceAddr = address
	g.logger.Info("frame source bound", zap.String("address", g.sourceAddr), zap.Stringer("options", opts))
	return nil
}

// dial resolves addr and opens a session. It returns the source with its
// "host:controlport" address.
func (g *Gateway) dial(ctx context.Context, addr string) (framesource.Source, string, framesource.Options, error) {
	host, controlPort, dataPort, err := g.target(ctx, addr)
	if err != nil {
		return nil, "", framesource.Options{}, err
	}

	opts := framesource.NewOptions(host, controlPort, dataPort, g.cfg.BufferedFrames)
	src, err := g.dialer.Dial(ctx, opts)
	if err != nil {
		return nil, "", opts, newError(upstreamKind(err), "bind", err)
	}
	return src, net.JoinHostPort(host, strconv.Itoa(controlPort)), opts, nil
}

// target works out where to dial.
func (g *Gateway) target(ctx context.Context, addr string) (string, int, int, error) {
	const op = "bind"

	if addr == "" {
		if g.resolver == nil {
			return "", 0, 0, newError(KindUpstream, op, fmt.Errorf("no resolver for %q", g.cfg.ServiceName))
		}
		rctx, cancel := context.WithTimeout(ctx, g.cfg.ResolveTimeout)
		defer cancel()

		svc, err := g.resolver.Resolve(rctx, g.cfg.ServiceName)
		if err != nil {
			return "", 0, 0, newError(KindUpstream, op, fmt.Errorf("failed to resolve %s: %w", g.cfg.ServiceName, err))
		}
		g.logger.Info("frame server resolved", zap.String("name", g.cfg.ServiceName), zap.String("address", svc.Addr()))
		return svc.IP, g.cfg.ControlPort, g.cfg.DataPort, nil
	}

	host, port, err := splitTarget(addr)
	if err != nil {
		return "", 0, 0, newError(KindBadInput, op, err)
	}
	if port == 0 {
		return host, g.cfg.ControlPort, g.cfg.DataPort, nil
	}
	return host, port, port + 1, nil
}

// splitTarget validates "host" or "host:port". Hosts are IP literals or DNS
// names.
func splitTarget(addr string) (string, int, error) {
	host, port := addr, 0
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65534 {
			return "", 0, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}

	if net.ParseIP(host) != nil {
		return host, port, nil
	}
	if !validHostname(host) {
		return "", 0, fmt.Errorf("invalid address %q", addr)
	}
	return host, port, nil
}

func validHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

// Clear closes and unbinds the frame source. Streams holding the old
// session see closed errors and end through the failure threshold.
func (g *Gateway) Clear() error {
	const op = "clear"

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.source == nil {
		return newError(KindUnbound, op, errUnbound)
	}

	err := g.source.Close()
	addr := g.sourceAddr
	g.source = nil
	g.sourceAddr = ""

	g.logger.Info("frame source cleared", zap.String("address", addr))
	if err != nil {
		return newError(KindUpstream, op, err)
	}
	return nil
}

// Close releases the frame source, if any.
func (g *Gateway) Close() error {
	if err := g.Clear(); err != nil && !IsUnbound(err) {
		return err
	}
	return nil
}

// Status returns the current status document.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	st := Status{
		SourceBound: g.source != nil,
		Source:      g.sourceAddr,
		Servers:     []string{},
	}
	g.mu.Unlock()

	st.ActiveStreams = g.activeStreams.Load()
	if g.status != nil {
		g.status(&st)
	}
	return st
}

// snapshot returns the bound source or an Unbound error.
func (g *Gateway) snapshot(op string) (framesource.Source, error) {
	src := g.Source()
	if src == nil {
		return nil, newError(KindUnbound, op, errUnbound)
	}
	return src, nil
}

func upstreamKind(err error) Kind {
	if framesource.IsTimeout(err) {
		return KindTimeout
	}
	return KindUpstream
}
