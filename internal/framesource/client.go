package framesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/homecam/internal/logging"
)

const (
	// maxFrameMessage bounds a single pushed frame.
	maxFrameMessage = 1 << 20

	// maxControlBody bounds a control response body.
	maxControlBody = 64 << 10
)

// Client is a Source talking to a remote frame server. Control calls are
// HTTP/JSON; frames arrive as binary WebSocket messages.
type Client struct {
	opts       Options
	httpClient *http.Client
	conn       *websocket.Conn
	logger     *zap.Logger

	frames chan *Frame
	done   chan struct{}

	closeOnce sync.Once
	readDone  chan struct{}

	mu          sync.Mutex
	outstanding map[*Frame]struct{}

	seq   atomic.Uint64
	drops atomic.Uint64
}

// NewDialer returns a Dialer producing Clients that log through logger.
func NewDialer(logger *zap.Logger) Dialer {
	return DialerFunc(func(ctx context.Context, opts Options) (Source, error) {
		return Dial(ctx, opts, logger)
	})
}

// Dial opens the frame push channel and returns a ready Client.
func Dial(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BufferedFrames < 1 {
		opts.BufferedFrames = DefaultBufferedFrames
	}
	if _, err := url.Parse(opts.ControlURL); err != nil {
		return nil, &SourceError{Type: ErrTypeProtocol, Op: "init", Message: "invalid control URL", Err: err}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.DataURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, newTransportError("init", "failed to open frame channel", err)
	}
	conn.SetReadLimit(maxFrameMessage)

	c := &Client{
		opts:        opts,
		httpClient:  &http.Client{},
		conn:        conn,
		logger:      logger,
		frames:      make(chan *Frame, opts.BufferedFrames),
		done:        make(chan struct{}),
		readDone:    make(chan struct{}),
		outstanding: make(map[*Frame]struct{}),
	}

	go c.readLoop()

	logger.Info("frame source session opened",
		zap.String("control", opts.ControlURL),
		zap.String("data", opts.DataURL),
		zap.Int("buffered_frames", opts.BufferedFrames),
	)
	return c, nil
}

// readLoop moves pushed frames into the bounded buffer, dropping the oldest
// buffered frame when the consumer falls behind.
func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("frame channel read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			logging.LogRawBytes("ignoring non-binary message on frame channel", data)
			continue
		}

		f := &Frame{Data: data, Seq: c.seq.Add(1), Timestamp: time.Now()}
		for {
			select {
			case c.frames <- f:
			default:
				select {
				case <-c.frames:
					c.drops.Add(1)
				default:
				}
				continue
			}
			break
		}
	}
}

// Drops returns the number of frames discarded because the buffer was full.
func (c *Client) Drops() uint64 {
	return c.drops.Load()
}

// Outstanding returns the number of frames handed out and not yet returned.
func (c *Client) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outstanding)
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// GetFrame implements Source.
func (c *Client) GetFrame(ctx context.Context) (*Frame, error) {
	if c.closed() {
		return nil, newClosedError("get_frame")
	}

	select {
	case f := <-c.frames:
		c.mu.Lock()
		c.outstanding[f] = struct{}{}
		c.mu.Unlock()
		return f, nil
	case <-c.done:
		return nil, newClosedError("get_frame")
	case <-ctx.Done():
		return nil, newTransportError("get_frame", "no frame within bound", ctx.Err())
	}
}

// ReturnFrame implements Source.
func (c *Client) ReturnFrame(f *Frame) error {
	if f == nil {
		return &SourceError{Type: ErrTypeProtocol, Op: "return_frame", Message: "nil frame"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.outstanding[f]; !ok {
		return &SourceError{
			Type:    ErrTypeProtocol,
			Op:      "return_frame",
			Message: fmt.Sprintf("frame %d is not outstanding", f.Seq),
		}
	}
	delete(c.outstanding, f)
	return nil
}

// StartStream implements Source.
func (c *Client) StartStream(ctx context.Context) error {
	return c.do(ctx, "start_stream", http.MethodPost, "/stream/start", nil, nil)
}

// StopStream implements Source.
func (c *Client) StopStream(ctx context.Context) error {
	return c.do(ctx, "stop_stream", http.MethodPost, "/stream/stop", nil, nil)
}

// ListSources implements Source.
func (c *Client) ListSources(ctx context.Context, max int) ([]string, error) {
	var names []string
	path := "/sources?max=" + strconv.Itoa(max)
	if err := c.do(ctx, "list_sources", http.MethodGet, path, nil, &names); err != nil {
		return nil, err
	}
	if len(names) > max {
		names = names[:max]
	}
	return names, nil
}

// SetSource implements Source.
func (c *Client) SetSource(ctx context.Context, name string) error {
	body := struct {
		Name string `json:"name"`
	}{Name: name}
	return c.do(ctx, "set_source", http.MethodPost, "/source", body, nil)
}

// ReconfigureFrame implements Source.
func (c *Client) ReconfigureFrame(ctx context.Context, cfg FrameConfig) error {
	return c.do(ctx, "reconfigure_frame", http.MethodPut, "/config/frame", cfg, nil)
}

// ReconfigureCam implements Source.
func (c *Client) ReconfigureCam(ctx context.Context, cfg CamConfig) error {
	return c.do(ctx, "reconfigure_cam", http.MethodPut, "/config/cam", cfg, nil)
}

// FrameConfig implements Source.
func (c *Client) FrameConfig(ctx context.Context) (FrameConfig, error) {
	var cfg FrameConfig
	err := c.do(ctx, "get_frame_config", http.MethodGet, "/config/frame", nil, &cfg)
	return cfg, err
}

// CamConfig implements Source.
func (c *Client) CamConfig(ctx context.Context) (CamConfig, error) {
	var cfg CamConfig
	err := c.do(ctx, "get_cam_config", http.MethodGet, "/config/cam", nil, &cfg)
	return cfg, err
}

// Close implements Source. Frames still outstanding stay valid for their
// holders; subsequent GetFrame calls fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
		<-c.readDone
		c.httpClient.CloseIdleConnections()
		c.logger.Info("frame source session closed",
			zap.String("control", c.opts.ControlURL),
			zap.Uint64("dropped_frames", c.drops.Load()),
		)
	})
	return err
}

// do performs one control call. in is JSON-encoded when non-nil; out is
// JSON-decoded when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.closed() {
		return newClosedError(op)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &SourceError{Type: ErrTypeProtocol, Op: op, Message: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.ControlURL+path, body)
	if err != nil {
		return newTransportError(op, "failed to create request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newTransportError(op, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxControlBody))
	if err != nil {
		return newTransportError(op, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(op, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return newParseError(op, err)
		}
	}
	return nil
}
