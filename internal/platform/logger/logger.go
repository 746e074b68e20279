// Package logger wraps zerolog with process-wide defaults and request-scoped
// child loggers
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level      string
	Format     string // console | json
	Service    string
	Writer     io.Writer
	WithCaller bool
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE and LOG_CALLER straight from
// the environment so this package never depends on the config package
func FromEnv() Options {
	return Options{
		Level:      strings.ToLower(env("LOG_LEVEL", "info")),
		Format:     strings.ToLower(env("LOG_FORMAT", "console")),
		Service:    env("LOG_SERVICE", "trend-scout"),
		WithCaller: strings.EqualFold(env("LOG_CALLER", "false"), "true"),
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// Get returns the root logger, initializing it from the environment on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init builds the root logger; only the first call has any effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		log := ctx.Logger()
		if opt.WithCaller {
			log = log.With().Caller().Logger()
		}

		root.Store(&log)
		inited.Store(true)
	})
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{}

// WithRequest stores the request id on ctx for C
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, reqID)
}

// RequestID returns the id stored by WithRequest
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// C returns a child of the root logger carrying the request id from ctx
func C(ctx context.Context) *Logger {
	l := Get()
	id := RequestID(ctx)
	if id == "" {
		return l
	}
	ll := l.With().Str("request_id", id).Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
