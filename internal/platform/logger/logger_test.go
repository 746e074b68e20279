package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		" info ":   zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInit_NamedAndRequestScoped(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Service: "svc-test", Writer: &buf})

	Named("resolver").Info().Msg("named-msg")
	C(WithRequest(context.Background(), "req-123")).Info().Msg("ctx-msg")
	C(context.Background()).Info().Msg("bare-msg")

	out := buf.String()
	assert.Contains(t, out, `"component":"resolver"`)
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"service":"svc-test"`)
	assert.Contains(t, out, "bare-msg")
	assert.Same(t, Get(), Named(""))
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequest(ctx, ""))
	assert.Equal(t, "abc", RequestID(WithRequest(ctx, "abc")))
	assert.Empty(t, RequestID(ctx))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_CALLER", "true")

	opt := FromEnv()
	assert.Equal(t, "warn", opt.Level)
	assert.Equal(t, "json", opt.Format)
	assert.True(t, opt.WithCaller)
	assert.Equal(t, "trend-scout", opt.Service)
}
