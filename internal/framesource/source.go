package framesource

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultControlPort is the frame server's control port.
	DefaultControlPort = 5003

	// DefaultDataPort is the frame server's frame push port.
	DefaultDataPort = 5004

	// DefaultBufferedFrames is the local frame buffer depth.
	DefaultBufferedFrames = 10

	// MaxSourceNameLen bounds a camera source name.
	MaxSourceNameLen = 30
)

// FrameSize enumerates camera resolutions in sensor-driver order.
type FrameSize int

const (
	FrameSize96x96 FrameSize = iota
	FrameSizeQQVGA
	FrameSize128x128
	FrameSizeQCIF
	FrameSizeHQVGA
	FrameSize240x240
	FrameSizeQVGA
	FrameSize320x320
	FrameSizeCIF
	FrameSizeHVGA
	FrameSizeVGA
	FrameSizeSVGA
	FrameSizeXGA
	FrameSizeHD
	FrameSizeSXGA
	FrameSizeUXGA
)

// PixelFormat enumerates sensor output formats.
type PixelFormat int

const (
	PixelFormatRGB565 PixelFormat = iota
	PixelFormatYUV422
	PixelFormatYUV420
	PixelFormatGrayscale
	PixelFormatJPEG
	PixelFormatRGB888
	PixelFormatRaw
)

// GrabMode selects how the camera driver refills its frame buffers.
type GrabMode int

const (
	GrabWhenEmpty GrabMode = iota
	GrabLatest
)

// Frame is one encoded JPEG image owned by the caller between GetFrame and
// ReturnFrame.
type Frame struct {
	Data      []byte
	Seq       uint64
	Timestamp time.Time
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// FrameConfig controls frame pacing and buffering on the frame server.
type FrameConfig struct {
	FPS             int `json:"fps"`
	FrameMaxLen     int `json:"frame_max_len"`
	BufferedFrames  int `json:"buffered_fbs"`
	PrebufferFrames int `json:"fb_in_buffer_before_get"`
}

// CamConfig controls the remote camera sensor.
type CamConfig struct {
	JPEGQuality int         `json:"cam_jpeg_quality"`
	FrameSize   FrameSize   `json:"cam_frame_size"`
	PixelFormat PixelFormat `json:"cam_pixel_format"`
	FBCount     int         `json:"cam_fb_count"`
	GrabMode    GrabMode    `json:"cam_grab_mode"`
}

// DefaultFrameConfig is the frame configuration the reconfigure endpoint
// starts from.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		FPS:             15,
		FrameMaxLen:     100 * 1014,
		BufferedFrames:  DefaultBufferedFrames,
		PrebufferFrames: 0,
	}
}

// DefaultCamConfig is the camera configuration the reconfigure endpoint
// starts from.
func DefaultCamConfig() CamConfig {
	return CamConfig{
		JPEGQuality: 30,
		FrameSize:   FrameSize96x96,
		PixelFormat: PixelFormatJPEG,
		FBCount:     2,
		GrabMode:    GrabLatest,
	}
}

// Source is a bound frame server session. Every blocking call is bounded by
// its context.
type Source interface {
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error

	// GetFrame waits for the next frame until ctx is done.
	GetFrame(ctx context.Context) (*Frame, error)
	// ReturnFrame releases a frame obtained from GetFrame. Each frame must be
	// returned exactly once.
	ReturnFrame(f *Frame) error

	ListSources(ctx context.Context, max int) ([]string, error)
	SetSource(ctx context.Context, name string) error

	ReconfigureFrame(ctx context.Context, cfg FrameConfig) error
	ReconfigureCam(ctx context.Context, cfg CamConfig) error
	FrameConfig(ctx context.Context) (FrameConfig, error)
	CamConfig(ctx context.Context) (CamConfig, error)

	// Close ends the session and releases its resources.
	Close() error
}

// Options describe how to reach a frame server.
type Options struct {
	// ControlURL is the HTTP base URL for control calls (e.g., "http://10.0.0.2:5003").
	ControlURL string
	// DataURL is the WebSocket URL frames are pushed on (e.g., "ws://10.0.0.2:5004/frames").
	DataURL string
	// BufferedFrames is the local buffer depth; oldest frames are dropped when full.
	BufferedFrames int
}

// NewOptions builds Options for host using the given ports.
func NewOptions(host string, controlPort, dataPort, bufferedFrames int) Options {
	return Options{
		ControlURL:     "http://" + net.JoinHostPort(host, strconv.Itoa(controlPort)),
		DataURL:        "ws://" + net.JoinHostPort(host, strconv.Itoa(dataPort)) + "/frames",
		BufferedFrames: bufferedFrames,
	}
}

// String returns a short description for logs.
func (o Options) String() string {
	return fmt.Sprintf("control=%s data=%s depth=%d", o.ControlURL, o.DataURL, o.BufferedFrames)
}

// Dialer creates Source sessions.
type Dialer interface {
	Dial(ctx context.Context, opts Options) (Source, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, opts Options) (Source, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, opts Options) (Source, error) {
	return f(ctx, opts)
}
