package gateway

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/homecam/internal/framesource"
	"github.com/muurk/homecam/internal/server"
	"go.uber.org/zap"
)

// Boundary separates the JPEG parts of a stream.
const Boundary = "frame"

// partSink receives the parts of one stream.
type partSink interface {
	// WritePart writes the part header, the payload and the separator.
	WritePart(data []byte) error
	// Terminate writes the close delimiter that ends the stream.
	Terminate() error
}

// multipartSink writes parts to an HTTP response. Each part carries its own
// trailing CRLF, so a part is complete on the wire as soon as it is flushed.
type multipartSink struct {
	w     io.Writer
	flush func() error
}

func newMultipartSink(w http.ResponseWriter) *multipartSink {
	rc := http.NewResponseController(w)
	return &multipartSink{w: w, flush: rc.Flush}
}

// partHeader is the delimiter and header block of one JPEG part.
func partHeader(n int) string {
	return "--" + Boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(n) + "\r\n\r\n"
}

func (s *multipartSink) WritePart(data []byte) error {
	if _, err := io.WriteString(s.w, partHeader(len(data))); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "\r\n"); err != nil {
		return err
	}
	return s.flush()
}

// Terminate writes the close delimiter. The preceding part already ended
// with CRLF.
func (s *multipartSink) Terminate() error {
	if _, err := io.WriteString(s.w, "--"+Boundary+"--\r\n"); err != nil {
		return err
	}
	return s.flush()
}

// streamEnd records why a stream loop returned.
type streamEnd int

const (
	endBreaker streamEnd = iota
	endWriteFailure
	endClientGone
)

func (e streamEnd) String() string {
	switch e {
	case endBreaker:
		return "failure threshold"
	case endWriteFailure:
		return "write failure"
	default:
		return "client gone"
	}
}

// StreamHandler returns the stream listener routes.
func (g *Gateway) StreamHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream", g.handleStream)
	return server.LogRequests(mux)
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := g.logger.With(
		zap.String("session", uuid.NewString()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	src, err := g.snapshot("stream")
	if err != nil {
		logger.Warn("stream requested with no frame source bound")
		http.Error(w, err.Error(), KindUnbound.StatusCode())
		return
	}

	sink := newMultipartSink(w)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	g.activeStreams.Add(1)
	g.metrics.ActiveStreams.Inc()
	defer func() {
		g.activeStreams.Add(-1)
		g.metrics.ActiveStreams.Dec()
	}()

	logger.Info("stream started")
	end, frames := g.runStream(r.Context(), src, sink, logger)
	logger.Info("stream ended", zap.Stringer("reason", end), zap.Int("frames", frames))
}

// runStream is the frame loop of one stream. It ends on the failure
// threshold, on a write failure, or when the client goes away, making
// exactly one terminal write in each case.
func (g *Gateway) runStream(ctx context.Context, src framesource.Source, sink partSink, logger *zap.Logger) (streamEnd, int) {
	var (
		failures int
		frames   int
		filter   = NewRunningAverageFilter(DefaultFilterSize)
		last     = time.Now()
	)

	terminate := func(end streamEnd) (streamEnd, int) {
		if err := sink.Terminate(); err != nil {
			logger.Debug("terminal write failed", zap.Error(err))
		}
		return end, frames
	}

	for {
		if ctx.Err() != nil {
			return terminate(endClientGone)
		}

		fctx, cancel := context.WithTimeout(ctx, g.cfg.FrameTimeout)
		frame, err := src.GetFrame(fctx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return terminate(endClientGone)
			}
			failures++
			g.metrics.FrameFailures.Inc()
			logger.Debug("frame acquisition failed", zap.Int("consecutive", failures), zap.Error(err))

			if failures > g.cfg.FailureThreshold {
				g.metrics.BreakerTrips.Inc()
				logger.Warn("too many consecutive frame failures", zap.Int("threshold", g.cfg.FailureThreshold))
				return terminate(endBreaker)
			}
			continue
		}
		failures = 0

		if err := g.sendFrame(src, sink, frame, logger); err != nil {
			g.metrics.StreamWriteErrors.Inc()
			logger.Debug("stream write failed", zap.Error(err))
			return terminate(endWriteFailure)
		}
		frames++
		g.metrics.FramesSent.Inc()

		now := time.Now()
		avg := filter.Push(int(now.Sub(last).Milliseconds()))
		last = now
		g.metrics.FrameInterval.Set(float64(avg))
		logger.Debug("frame sent",
			zap.Int("bytes", frame.Len()),
			zap.Int("avg_interval_ms", avg),
		)

		if g.cfg.FrameDelay > 0 {
			timer := time.NewTimer(g.cfg.FrameDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}
}

// sendFrame writes one part and returns the frame whatever the outcome.
func (g *Gateway) sendFrame(src framesource.Source, sink partSink, frame *framesource.Frame, logger *zap.Logger) error {
	defer func() {
		if err := src.ReturnFrame(frame); err != nil {
			logger.Warn("failed to return frame", zap.Uint64("seq", frame.Seq), zap.Error(err))
		}
	}()
	return sink.WritePart(frame.Data)
}
