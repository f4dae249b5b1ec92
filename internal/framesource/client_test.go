package framesource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/homecam/internal/logging"
)

// frameServer is a minimal remote frame server for client tests.
type frameServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	calls     []string
	frameCfg  FrameConfig
	camCfg    CamConfig
	source    string
	failPaths map[string]int

	push chan []byte
	text chan string
}

func newFrameServer(t *testing.T) *frameServer {
	fs := &frameServer{
		t:         t,
		frameCfg:  DefaultFrameConfig(),
		camCfg:    DefaultCamConfig(),
		failPaths: make(map[string]int),
		push:      make(chan []byte, 16),
		text:      make(chan string, 4),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/frames", fs.handleFrames)
	mux.HandleFunc("/stream/start", fs.record(nil))
	mux.HandleFunc("/stream/stop", fs.record(nil))
	mux.HandleFunc("/sources", fs.record(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"camA", "camB", "camC"})
	}))
	mux.HandleFunc("/source", fs.record(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		fs.mu.Lock()
		fs.source = body.Name
		fs.mu.Unlock()
	}))
	mux.HandleFunc("/config/frame", fs.record(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if r.Method == http.MethodPut {
			_ = json.NewDecoder(r.Body).Decode(&fs.frameCfg)
			return
		}
		_ = json.NewEncoder(w).Encode(fs.frameCfg)
	}))
	mux.HandleFunc("/config/cam", fs.record(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if r.Method == http.MethodPut {
			_ = json.NewDecoder(r.Body).Decode(&fs.camCfg)
			return
		}
		_ = json.NewEncoder(w).Encode(fs.camCfg)
	}))

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *frameServer) record(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.calls = append(fs.calls, r.Method+" "+r.URL.Path)
		code := fs.failPaths[r.URL.Path]
		fs.mu.Unlock()

		if code != 0 {
			http.Error(w, "camera busy", code)
			return
		}
		if next != nil {
			next(w, r)
		}
	}
}

func (fs *frameServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data := <-fs.push:
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case msg := <-fs.text:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func (fs *frameServer) options(depth int) Options {
	return Options{
		ControlURL:     fs.srv.URL,
		DataURL:        "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/frames",
		BufferedFrames: depth,
	}
}

func dialTest(t *testing.T, fs *frameServer, depth int) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, fs.options(depth), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions("10.0.0.2", DefaultControlPort, DefaultDataPort, 4)

	assert.Equal(t, "http://10.0.0.2:5003", opts.ControlURL)
	assert.Equal(t, "ws://10.0.0.2:5004/frames", opts.DataURL)
	assert.Equal(t, 4, opts.BufferedFrames)

	v6 := NewOptions("fe80::1", 1, 2, 1)
	assert.Equal(t, "http://[fe80::1]:1", v6.ControlURL)
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, NewOptions("127.0.0.1", 1, 1, 1), nil)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err) || IsTimeout(err), "got %v", err)
}

func TestClient_GetAndReturnFrame(t *testing.T) {
	fs := newFrameServer(t)
	c := dialTest(t, fs, 4)

	fs.push <- []byte{0xff, 0xd8, 0xff, 0xd9}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := c.GetFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, f.Data)
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, 1, c.Outstanding())

	require.NoError(t, c.ReturnFrame(f))
	assert.Equal(t, 0, c.Outstanding())

	err = c.ReturnFrame(f)
	require.Error(t, err, "double return must be rejected")
}

func TestClient_GetFrameTimeout(t *testing.T) {
	fs := newFrameServer(t)
	c := dialTest(t, fs, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetFrame(ctx)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestClient_DropsOldestWhenFull(t *testing.T) {
	fs := newFrameServer(t)
	c := dialTest(t, fs, 2)

	for i := byte(1); i <= 5; i++ {
		fs.push <- []byte{i}
	}
	require.Eventually(t, func() bool { return c.Drops() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := c.GetFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, first.Data)
	require.NoError(t, c.ReturnFrame(first))
}

func TestClient_SkipsTextMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	fs := newFrameServer(t)
	c := dialTest(t, fs, 2)

	fs.text <- "keepalive"
	fs.push <- []byte{0xff, 0xd8}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := c.GetFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, f.Data)
	require.NoError(t, c.ReturnFrame(f))

	entries := logs.FilterMessage("ignoring non-binary message on frame channel").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "keepalive", entries[0].ContextMap()["ascii"])
}

func TestClient_ControlCalls(t *testing.T) {
	fs := newFrameServer(t)
	c := dialTest(t, fs, 2)
	ctx := context.Background()

	require.NoError(t, c.StartStream(ctx))
	require.NoError(t, c.StopStream(ctx))

	names, err := c.ListSources(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"camA", "camB"}, names)

	require.NoError(t, c.SetSource(ctx, "camB"))

	want := FrameConfig{FPS: 5, FrameMaxLen: 2048, BufferedFrames: 3, PrebufferFrames: 1}
	require.NoError(t, c.ReconfigureFrame(ctx, want))
	got, err := c.FrameConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cam := CamConfig{JPEGQuality: 12, FrameSize: FrameSizeVGA, PixelFormat: PixelFormatJPEG}
	require.NoError(t, c.ReconfigureCam(ctx, cam))
	gotCam, err := c.CamConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cam, gotCam)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, "camB", fs.source)
	assert.Contains(t, fs.calls, "POST /stream/start")
	assert.Contains(t, fs.calls, "PUT /config/cam")
}

func TestClient_HTTPError(t *testing.T) {
	fs := newFrameServer(t)
	fs.failPaths["/stream/start"] = http.StatusServiceUnavailable
	c := dialTest(t, fs, 2)

	err := c.StartStream(context.Background())
	require.Error(t, err)
	assert.True(t, IsHTTPError(err))
	assert.Contains(t, err.Error(), "camera busy")
}

func TestClient_Closed(t *testing.T) {
	fs := newFrameServer(t)
	c := dialTest(t, fs, 2)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close is idempotent")

	_, err := c.GetFrame(context.Background())
	assert.True(t, IsClosed(err))
	assert.True(t, IsClosed(c.StartStream(context.Background())))
}
