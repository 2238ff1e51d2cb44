package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger writing to stderr and installs it as the
// zerolog/log global. Debug mode lowers the level to debug and switches to
// human readable console output with stack traces.
func Setup(debug bool) zerolog.Logger {
	logger := New(os.Stderr, debug)

	// package code logs through zerolog/log
	log.Logger = logger

	return logger
}

// New builds a logger writing JSON lines to w, or console output in debug mode.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	if !debug {
		return zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
	}

	out := zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(any) string {
		return time.Now().Format(time.RFC3339)
	}}
	return zerolog.New(out).Level(level).With().Timestamp().Caller().Stack().Logger()
}

var _ http.RoundTripper = (*Requests)(nil)

// Requests logs every backend call made through it.
type Requests struct {
	logger zerolog.Logger
	next   http.RoundTripper
}

// NewRequests wraps next with request logging.
func NewRequests(logger zerolog.Logger, next http.RoundTripper) *Requests {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Requests{logger: logger, next: next}
}

func (r *Requests) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	resp, err := r.next.RoundTrip(req)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", time.Since(started)).
			Msg("api call")
		return resp, err
	}

	ev := r.logger.Debug()
	if resp.StatusCode >= http.StatusBadRequest {
		ev = r.logger.Warn()
	}
	ev.Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("api call")

	return resp, nil
}

// Middleware logs console requests and attaches the logger to the request
// context so handlers can use zerolog.Ctx.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			l := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger()
			r = r.WithContext(l.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(started)).
				Msg("console request")
		})
	}
}
