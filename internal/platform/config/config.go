// Package config reads typed settings from environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github-trend-scout/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "GITHUB_")
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) raw(key string) string {
	return strings.TrimSpace(os.Getenv(c.key(key)))
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v := c.raw(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).
		Msg("invalid duration (e.g., 250ms, 2s, 1h); using default")
	return def
}

// MayCSV splits a comma separated value, dropping blanks; def if missing/empty
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.raw(key)
	if s == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayLocation loads an IANA zone name; logs and returns def if unknown
func (c Conf) MayLocation(key string, def *time.Location) *time.Location {
	s := c.raw(key)
	if s == "" {
		return def
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Msg("unknown time zone; using default")
		return def
	}
	return loc
}
