package wifi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/homecam/internal/credentials"
	"github.com/muurk/homecam/internal/logging"
	"github.com/muurk/homecam/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultRetryLimit is the number of reassociation attempts made before
	// giving up and entering provisioning mode.
	DefaultRetryLimit = 10

	queueDepth = 16

	stopTimeout = 5 * time.Second
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("connectivity manager already started")

// Options configures a Manager.
type Options struct {
	RetryLimit  int
	AccessPoint AccessPoint

	// Provisioner is started on entry to provisioning mode. May be nil.
	Provisioner Provisioner

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Manager owns the connectivity state machine.
type Manager struct {
	radio Radio
	store *credentials.Store
	opts  Options

	logger  *zap.Logger
	metrics *metrics.Metrics

	queue    chan RadioEvent
	loopDone chan struct{}

	outcome    chan bool
	signalOnce sync.Once

	mu        sync.Mutex
	state     State
	address   string
	retries   int
	started   bool
	listeners []Listener

	provisioning bool
}

// NewManager creates a Manager. Listeners should be added with Subscribe
// before Start.
func NewManager(radio Radio, store *credentials.Store, opts Options) *Manager {
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.AccessPoint.SSID == "" {
		opts.AccessPoint = DefaultAccessPoint()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Manager{
		radio:    radio,
		store:    store,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		queue:    make(chan RadioEvent, queueDepth),
		loopDone: make(chan struct{}),
		outcome:  make(chan bool, 1),
		state:    Disconnected,
	}
}

// Subscribe adds a listener for connectivity events.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns the current connectivity state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Address returns the obtained address while Associated, otherwise "".
func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

// Done is closed once the event loop has exited and the radio is stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.loopDone
}

// Save persists new credentials. Networking is not restarted; the device
// must be restarted to use them.
func (m *Manager) Save(ssid, password string) error {
	return m.store.Save(credentials.Credentials{SSID: ssid, Password: password})
}

// Post queues a raw radio event. It never blocks once the loop has exited.
func (m *Manager) Post(ev RadioEvent) {
	select {
	case m.queue <- ev:
	case <-m.loopDone:
	}
}

// Start brings up connectivity.
//
// Without stored credentials the device enters provisioning mode and Start
// parks until ctx is done. Otherwise Start waits for the first association
// outcome: on success it returns nil with the loop still running; when
// retries are exhausted it parks in provisioning mode until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	go m.loop(ctx)

	creds, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to load credentials, treating as unconfigured", zap.Error(err))
		creds = credentials.Credentials{}
	}

	if !creds.Configured() {
		m.logger.Info("no credentials stored")
		m.enterProvisioning(ctx, "no credentials")
		return m.park(ctx)
	}

	m.setState(Connecting, "credentials loaded")
	m.logger.Info("starting station", zap.String("ssid", creds.SSID), zap.Int("retry_limit", m.opts.RetryLimit))

	if err := m.radio.StartStation(ctx, creds, m); err != nil {
		m.logger.Error("failed to start station", zap.Error(err))
		m.setState(Failed, "station start failed")
		m.enterProvisioning(ctx, "station start failed")
		return m.park(ctx)
	}

	select {
	case ok := <-m.outcome:
		if ok {
			return nil
		}
		return m.park(ctx)
	case <-ctx.Done():
		<-m.loopDone
		return nil
	}
}

// park blocks until the loop has shut down.
func (m *Manager) park(ctx context.Context) error {
	<-ctx.Done()
	<-m.loopDone
	return nil
}

// signal wakes Start exactly once with the first outcome.
func (m *Manager) signal(connected bool) {
	m.signalOnce.Do(func() {
		m.outcome <- connected
	})
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.loopDone)
	defer m.shutdown()

	for {
		select {
		case ev := <-m.queue:
			m.handle(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev RadioEvent) {
	m.logger.Debug("radio event", zap.Stringer("kind", ev.Kind), zap.String("address", ev.Address))

	switch ev.Kind {
	case StationStarted:
		if err := m.radio.Reconnect(ctx); err != nil {
			m.logger.Warn("association request failed", zap.Error(err))
		}

	case StationDisconnected:
		m.mu.Lock()
		state := m.state
		m.mu.Unlock()
		if state == ProvisioningMode || state == Failed {
			return
		}

		if state == Associated {
			m.mu.Lock()
			m.address = ""
			m.mu.Unlock()
			m.dispatch(Event{Kind: EventDisassociated})
		}

		m.mu.Lock()
		retry := m.retries < m.opts.RetryLimit
		if retry {
			m.retries++
		}
		attempt := m.retries
		m.mu.Unlock()

		if !retry {
			m.logger.Warn("association retries exhausted", zap.Int("retry_limit", m.opts.RetryLimit))
			m.setState(Failed, "retries exhausted")
			m.signal(false)
			m.enterProvisioning(ctx, "retries exhausted")
			return
		}

		m.metrics.AssociationRetries.Inc()
		m.setState(Connecting, fmt.Sprintf("retry %d/%d", attempt, m.opts.RetryLimit))
		if err := m.radio.Reconnect(ctx); err != nil {
			m.logger.Warn("association request failed", zap.Int("attempt", attempt), zap.Error(err))
		}

	case GotIP:
		m.mu.Lock()
		m.retries = 0
		m.address = ev.Address
		m.mu.Unlock()

		m.setState(Associated, "got ip "+ev.Address)
		m.signal(true)
		m.dispatch(Event{Kind: EventAssociated, Address: ev.Address})
	}
}

func (m *Manager) dispatch(ev Event) {
	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l.HandleConnectivity(ev)
	}
}

func (m *Manager) setState(to State, reason string) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	m.metrics.ConnectivityState.Set(float64(to))
	if from != to {
		logging.LogStateTransition(from.String(), to.String(), reason)
	}
}

// enterProvisioning starts the access point and the provisioning server.
// Failures are logged; the device stays in provisioning mode regardless.
func (m *Manager) enterProvisioning(ctx context.Context, reason string) {
	m.setState(ProvisioningMode, reason)
	m.metrics.ProvisioningEntries.Inc()

	if err := m.radio.StartAccessPoint(ctx, m.opts.AccessPoint); err != nil {
		m.logger.Error("failed to start access point",
			zap.String("ssid", m.opts.AccessPoint.SSID),
			zap.Error(err),
		)
	} else {
		m.logger.Info("access point started",
			zap.String("ssid", m.opts.AccessPoint.SSID),
			zap.Int("channel", m.opts.AccessPoint.Channel),
		)
	}

	if m.opts.Provisioner == nil {
		return
	}
	if err := m.opts.Provisioner.Start(); err != nil {
		m.logger.Error("failed to start provisioning server", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.provisioning = true
	m.mu.Unlock()
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	provisioning := m.provisioning
	m.provisioning = false
	m.mu.Unlock()

	if provisioning {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := m.opts.Provisioner.Stop(ctx); err != nil {
			m.logger.Warn("failed to stop provisioning server", zap.Error(err))
		}
		cancel()
	}

	if err := m.radio.Stop(); err != nil {
		m.logger.Warn("failed to stop radio", zap.Error(err))
	}
	m.logger.Info("connectivity manager stopped")
}
