package lifecycle

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/muurk/homecam/internal/metrics"
	"github.com/muurk/homecam/internal/wifi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	l *fakeLauncher
}

func (h *fakeHandle) Stop() error {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	h.l.stops++
	return h.l.stopErr
}

type fakeLauncher struct {
	mu        sync.Mutex
	launches  int
	stops     int
	launchErr error
	stopErr   error
}

func (l *fakeLauncher) Launch() (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return &fakeHandle{l: l}, nil
}

func (l *fakeLauncher) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches, l.stops
}

var (
	up   = wifi.Event{Kind: wifi.EventAssociated, Address: "10.0.0.5"}
	down = wifi.Event{Kind: wifi.EventDisassociated}
)

func newTestOrchestrator() (*Orchestrator, *fakeLauncher, *fakeLauncher, *metrics.Metrics) {
	control, stream := &fakeLauncher{}, &fakeLauncher{}
	m := metrics.New()
	return NewOrchestrator(control, stream, Options{Metrics: m}), control, stream, m
}

func TestOrchestrator_UpDownUp(t *testing.T) {
	o, control, stream, m := newTestOrchestrator()

	o.HandleConnectivity(up)
	assert.Equal(t, []string{SlotControl, SlotStream}, o.Running())

	o.HandleConnectivity(down)
	assert.Empty(t, o.Running())

	o.HandleConnectivity(up)
	assert.Equal(t, []string{SlotControl, SlotStream}, o.Running())

	for _, l := range []*fakeLauncher{control, stream} {
		launches, stops := l.counts()
		assert.Equal(t, 2, launches)
		assert.Equal(t, 1, stops)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ServerTransitions.WithLabelValues(SlotStream, "start", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ServerTransitions.WithLabelValues(SlotControl, "stop", "ok")))
}

func TestOrchestrator_Idempotent(t *testing.T) {
	o, control, _, _ := newTestOrchestrator()

	o.HandleConnectivity(down)
	o.HandleConnectivity(up)
	o.HandleConnectivity(up)
	o.HandleConnectivity(down)
	o.HandleConnectivity(down)

	launches, stops := control.counts()
	assert.Equal(t, 1, launches)
	assert.Equal(t, 1, stops)
}

func TestOrchestrator_StopFailureKeepsHandle(t *testing.T) {
	o, control, stream, m := newTestOrchestrator()
	stream.stopErr = errors.New("listener wedged")

	o.HandleConnectivity(up)
	o.HandleConnectivity(down)

	assert.Equal(t, []string{SlotStream}, o.Running())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ServerTransitions.WithLabelValues(SlotStream, "stop", "error")))

	// An occupied slot is not restarted.
	o.HandleConnectivity(up)
	launches, _ := stream.counts()
	assert.Equal(t, 1, launches)
	launches, _ = control.counts()
	assert.Equal(t, 2, launches)

	stream.mu.Lock()
	stream.stopErr = nil
	stream.mu.Unlock()
	o.HandleConnectivity(down)
	assert.Empty(t, o.Running())
}

func TestOrchestrator_LaunchFailureLeavesSlotEmpty(t *testing.T) {
	o, _, stream, _ := newTestOrchestrator()
	stream.launchErr = errors.New("address in use")

	o.HandleConnectivity(up)
	assert.Equal(t, []string{SlotControl}, o.Running())

	stream.mu.Lock()
	stream.launchErr = nil
	stream.mu.Unlock()
	o.HandleConnectivity(up)
	assert.Equal(t, []string{SlotControl, SlotStream}, o.Running())
}

func TestOrchestrator_ConcurrentEvents(t *testing.T) {
	o, control, _, _ := newTestOrchestrator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.StartAll()
		}()
	}
	wg.Wait()

	launches, _ := control.counts()
	assert.Equal(t, 1, launches)
}

func TestHTTPLauncher(t *testing.T) {
	l := HTTPLauncher{
		Name: "control",
		Host: "127.0.0.1",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}

	h, err := l.Launch()
	require.NoError(t, err)

	addr := h.(serverHandle).Addr()
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, h.Stop())
	_, err = http.Get("http://" + addr + "/")
	assert.Error(t, err)
}
