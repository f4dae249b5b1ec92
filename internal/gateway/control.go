package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/muurk/homecam/internal/framesource"
	"github.com/muurk/homecam/internal/server"
	"go.uber.org/zap"
)

const (
	// maxNumberLen bounds numeric query values.
	maxNumberLen = 29

	// maxServerNameLen bounds the set_server address.
	maxServerNameLen = 64
)

// handlerFunc is a control handler. A returned error is turned into the
// status of its Kind.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// ControlHandler returns the control-plane routes.
func (g *Gateway) ControlHandler() http.Handler {
	mux := http.NewServeMux()

	g.route(mux, "start_stream", g.handleStartStream)
	g.route(mux, "stop_stream", g.handleStopStream)
	g.route(mux, "get_sources", g.handleGetSources)
	g.route(mux, "set_source", g.handleSetSource)
	g.route(mux, "set_frame", g.handleSetFrame)
	g.route(mux, "set_cam", g.handleSetCam)
	g.route(mux, "get_config_frame", g.handleGetFrameConfig)
	g.route(mux, "get_config_cam", g.handleGetCamConfig)
	g.route(mux, "set_server", g.handleSetServer)
	g.route(mux, "clear_server", g.handleClearServer)
	g.route(mux, "status", g.handleStatus)

	mux.HandleFunc("GET /index", serveIndex)
	mux.Handle("GET /metrics", g.metrics.Handler())

	return server.LogRequests(mux)
}

func (g *Gateway) route(mux *http.ServeMux, endpoint string, h handlerFunc) {
	mux.HandleFunc("GET /"+endpoint, func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusOK
		if err := h(w, r); err != nil {
			code = g.writeError(w, err)
		}
		g.metrics.ControlRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	})
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) int {
	code := http.StatusInternalServerError
	if k, ok := kindOf(err); ok {
		code = k.StatusCode()
	}
	if code >= 500 {
		g.logger.Error("control request failed", zap.Error(err))
	} else {
		g.logger.Warn("control request rejected", zap.Error(err))
	}
	http.Error(w, err.Error(), code)
	return code
}

// writeJSON sends v with the CORS header the browser UI needs.
func writeJSON(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(data)
	return nil
}

// writeEmpty is the soft failure answer of query endpoints.
func writeEmpty(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
}

// call runs one bounded control call against the bound source.
func (g *Gateway) call(r *http.Request, op string, fn func(ctx context.Context, src framesource.Source) error) error {
	src, err := g.snapshot(op)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.ConfigTimeout)
	defer cancel()

	if err := fn(ctx, src); err != nil {
		return newError(upstreamKind(err), op, err)
	}
	return nil
}

func (g *Gateway) handleStartStream(w http.ResponseWriter, r *http.Request) error {
	if err := g.call(r, "start_stream", func(ctx context.Context, src framesource.Source) error {
		return src.StartStream(ctx)
	}); err != nil {
		return err
	}
	_, _ = io.WriteString(w, "Stream started")
	return nil
}

func (g *Gateway) handleStopStream(w http.ResponseWriter, r *http.Request) error {
	if err := g.call(r, "stop_stream", func(ctx context.Context, src framesource.Source) error {
		return src.StopStream(ctx)
	}); err != nil {
		return err
	}
	_, _ = io.WriteString(w, "Stream stopped")
	return nil
}

func (g *Gateway) handleGetSources(w http.ResponseWriter, r *http.Request) error {
	src, err := g.snapshot("get_sources")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.SourcesTimeout)
	defer cancel()

	names, err := src.ListSources(ctx, g.cfg.MaxSources)
	if err != nil {
		g.logger.Warn("list sources failed", zap.Error(err))
		writeEmpty(w)
		return nil
	}
	if len(names) > g.cfg.MaxSources {
		names = names[:g.cfg.MaxSources]
	}
	if names == nil {
		names = []string{}
	}
	return writeJSON(w, names)
}

func (g *Gateway) handleSetSource(w http.ResponseWriter, r *http.Request) error {
	const op = "set_source"

	if _, err := g.snapshot(op); err != nil {
		return err
	}
	name, err := boundedValue(r.URL.Query(), "name", framesource.MaxSourceNameLen)
	if err != nil {
		return newError(KindBadInput, op, err)
	}
	if name == "" {
		return newError(KindBadInput, op, fmt.Errorf("name is required"))
	}

	return g.call(r, op, func(ctx context.Context, src framesource.Source) error {
		return src.SetSource(ctx, name)
	})
}

func (g *Gateway) handleSetFrame(w http.ResponseWriter, r *http.Request) error {
	const op = "set_frame"

	if _, err := g.snapshot(op); err != nil {
		return err
	}
	cfg, err := parseFrameConfig(r.URL.Query())
	if err != nil {
		return newError(KindBadInput, op, err)
	}
	g.logger.Debug("reconfiguring frame", zap.Any("config", cfg))

	return g.call(r, op, func(ctx context.Context, src framesource.Source) error {
		return src.ReconfigureFrame(ctx, cfg)
	})
}

func (g *Gateway) handleSetCam(w http.ResponseWriter, r *http.Request) error {
	const op = "set_cam"

	if _, err := g.snapshot(op); err != nil {
		return err
	}
	cfg, err := parseCamConfig(r.URL.Query())
	if err != nil {
		return newError(KindBadInput, op, err)
	}
	g.logger.Debug("reconfiguring camera", zap.Any("config", cfg))

	return g.call(r, op, func(ctx context.Context, src framesource.Source) error {
		return src.ReconfigureCam(ctx, cfg)
	})
}

func (g *Gateway) handleGetFrameConfig(w http.ResponseWriter, r *http.Request) error {
	src, err := g.snapshot("get_config_frame")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.ConfigTimeout)
	defer cancel()

	cfg, err := src.FrameConfig(ctx)
	if err != nil {
		g.logger.Warn("frame config query failed", zap.Error(err))
		writeEmpty(w)
		return nil
	}
	return writeJSON(w, cfg)
}

func (g *Gateway) handleGetCamConfig(w http.ResponseWriter, r *http.Request) error {
	src, err := g.snapshot("get_config_cam")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.ConfigTimeout)
	defer cancel()

	cfg, err := src.CamConfig(ctx)
	if err != nil {
		g.logger.Warn("camera config query failed", zap.Error(err))
		writeEmpty(w)
		return nil
	}
	return writeJSON(w, cfg)
}

func (g *Gateway) handleSetServer(w http.ResponseWriter, r *http.Request) error {
	const op = "set_server"

	name, err := boundedValue(r.URL.Query(), "name", maxServerNameLen)
	if err != nil {
		return newError(KindBadInput, op, err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.ResolveTimeout+g.cfg.ConfigTimeout)
	defer cancel()

	if err := g.Bind(ctx, name); err != nil {
		return err
	}

	g.mu.Lock()
	addr := g.sourceAddr
	g.mu.Unlock()
	return writeJSON(w, map[string]string{"address": addr})
}

func (g *Gateway) handleClearServer(w http.ResponseWriter, r *http.Request) error {
	return g.Clear()
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, g.Status())
}

// boundedValue returns the query value for key, rejecting values longer
// than max bytes.
func boundedValue(q url.Values, key string, max int) (string, error) {
	v := q.Get(key)
	if len(v) > max {
		return "", fmt.Errorf("%s is %d bytes, limit is %d", key, len(v), max)
	}
	return v, nil
}

// atoi parses like C atoi: leading digits only, 0 when there are none.
func atoi(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// flooredInt is a value that must stay positive: absent, empty,
// unparsable and non-positive values become 1.
func flooredInt(q url.Values, key string) (int, error) {
	v, err := boundedValue(q, key, maxNumberLen)
	if err != nil {
		return 0, err
	}
	if n := atoi(v); n > 0 {
		return n, nil
	}
	return 1, nil
}

// parsedInt forwards the value as parsed, or def when the key is absent.
func parsedInt(q url.Values, key string, def int) (int, error) {
	if !q.Has(key) {
		return def, nil
	}
	v, err := boundedValue(q, key, maxNumberLen)
	if err != nil {
		return 0, err
	}
	return atoi(v), nil
}

func parseFrameConfig(q url.Values) (framesource.FrameConfig, error) {
	var (
		cfg = framesource.DefaultFrameConfig()
		err error
	)
	if cfg.FPS, err = flooredInt(q, "fps"); err != nil {
		return cfg, err
	}
	if cfg.FrameMaxLen, err = flooredInt(q, "frame_max_len"); err != nil {
		return cfg, err
	}
	if cfg.BufferedFrames, err = flooredInt(q, "buffered_fbs"); err != nil {
		return cfg, err
	}
	if cfg.PrebufferFrames, err = parsedInt(q, "fb_in_buffer_before_get", cfg.PrebufferFrames); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseCamConfig(q url.Values) (framesource.CamConfig, error) {
	var (
		cfg = framesource.DefaultCamConfig()
		err error
	)
	if cfg.JPEGQuality, err = flooredInt(q, "cam_jpeg_quality"); err != nil {
		return cfg, err
	}
	frameSize, err := parsedInt(q, "cam_frame_size", int(cfg.FrameSize))
	if err != nil {
		return cfg, err
	}
	pixelFormat, err := parsedInt(q, "cam_pixel_format", int(cfg.PixelFormat))
	if err != nil {
		return cfg, err
	}
	cfg.FrameSize = framesource.FrameSize(frameSize)
	cfg.PixelFormat = framesource.PixelFormat(pixelFormat)
	return cfg, nil
}
