package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/homecam/internal/discovery"
	"github.com/muurk/homecam/internal/framesource"
)

// fakeSource is an in-memory frame source with call accounting.
type fakeSource struct {
	mu sync.Mutex

	calls    []string
	frames   [][]byte // served in order; nil entries are acquisition failures
	loop     bool     // repeat frames forever
	next     int
	gets     int
	acquired int
	returned int
	closed   bool

	sources  []string
	frameCfg framesource.FrameConfig
	camCfg   framesource.CamConfig
	source   string

	err      error // returned by control calls
	queryErr error // returned by queries
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frameCfg: framesource.DefaultFrameConfig(),
		camCfg:   framesource.DefaultCamConfig(),
	}
}

func (f *fakeSource) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeSource) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSource) balance() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired, f.returned
}

func (f *fakeSource) StartStream(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start_stream")
	return f.err
}

func (f *fakeSource) StopStream(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop_stream")
	return f.err
}

func (f *fakeSource) GetFrame(ctx context.Context) (*framesource.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.closed {
		return nil, framesource.ErrClosed
	}
	if f.next >= len(f.frames) {
		if !f.loop || len(f.frames) == 0 {
			return nil, context.DeadlineExceeded
		}
		f.next = 0
	}
	data := f.frames[f.next]
	f.next++
	if data == nil {
		return nil, context.DeadlineExceeded
	}
	f.acquired++
	return &framesource.Frame{Data: data, Seq: uint64(f.acquired)}, nil
}

func (f *fakeSource) ReturnFrame(fr *framesource.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned++
	if f.returned > f.acquired {
		return fmt.Errorf("frame %d returned twice", fr.Seq)
	}
	return nil
}

func (f *fakeSource) ListSources(_ context.Context, max int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("list_sources %d", max))
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.sources, nil
}

func (f *fakeSource) SetSource(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_source " + name)
	if f.err == nil {
		f.source = name
	}
	return f.err
}

func (f *fakeSource) ReconfigureFrame(_ context.Context, cfg framesource.FrameConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reconfigure_frame")
	if f.err == nil {
		f.frameCfg = cfg
	}
	return f.err
}

func (f *fakeSource) ReconfigureCam(_ context.Context, cfg framesource.CamConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reconfigure_cam")
	if f.err == nil {
		f.camCfg = cfg
	}
	return f.err
}

func (f *fakeSource) FrameConfig(context.Context) (framesource.FrameConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("frame_config")
	return f.frameCfg, f.queryErr
}

func (f *fakeSource) CamConfig(context.Context) (framesource.CamConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cam_config")
	return f.camCfg, f.queryErr
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	f.closed = true
	return nil
}

// fakeDialer hands out one prepared source and records the options used.
// When gate is set, Dial signals dialing and waits for gate to close.
type fakeDialer struct {
	mu      sync.Mutex
	source  *fakeSource
	opts    []framesource.Options
	err     error
	gate    chan struct{}
	dialing chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, opts framesource.Options) (framesource.Source, error) {
	if d.gate != nil {
		close(d.dialing)
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = append(d.opts, opts)
	if d.err != nil {
		return nil, d.err
	}
	return d.source, nil
}

type fakeResolver struct {
	svc   *discovery.Service
	names []string
}

func (r *fakeResolver) Resolve(_ context.Context, name string) (*discovery.Service, error) {
	r.names = append(r.names, name)
	if r.svc == nil {
		return nil, discovery.ErrNotFound
	}
	return r.svc, nil
}

var errUpstream = errors.New("frame server said no")
