package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixAndKey(t *testing.T) {
	gh := New().Prefix("GITHUB_")
	assert.Equal(t, "GITHUB_TOKEN", gh.key("TOKEN"))
	assert.Equal(t, "GITHUB_API_URL", gh.Prefix("API_").key("URL"))
}

func TestMayHelpers(t *testing.T) {
	c := New().Prefix("TS_")
	t.Setenv("TS_NAME", "  scout ")
	t.Setenv("TS_N", "7")
	t.Setenv("TS_BAD_N", "x")
	t.Setenv("TS_ON", "true")
	t.Setenv("TS_TTL", "90m")
	t.Setenv("TS_BAD_TTL", "soon")
	t.Setenv("TS_LIST", " a, ,b ,")
	t.Setenv("TS_TZ", "Asia/Shanghai")

	assert.Equal(t, "scout", c.MayString("NAME", "def"))
	assert.Equal(t, "def", c.MayString("MISSING", "def"))
	assert.Equal(t, 7, c.MayInt("N", 1))
	assert.Equal(t, 1, c.MayInt("BAD_N", 1))
	assert.True(t, c.MayBool("ON", false))
	assert.Equal(t, 90*time.Minute, c.MayDuration("TTL", time.Hour))
	assert.Equal(t, time.Hour, c.MayDuration("BAD_TTL", time.Hour))
	assert.Equal(t, []string{"a", "b"}, c.MayCSV("LIST", nil))
	assert.Equal(t, []string{"*"}, c.MayCSV("MISSING", []string{"*"}))
	assert.Equal(t, "Asia/Shanghai", c.MayLocation("TZ", time.UTC).String())
	assert.Equal(t, time.UTC, c.MayLocation("MISSING", time.UTC))
}

func TestLoad_Defaults(t *testing.T) {
	s := Load()

	assert.Equal(t, DefaultLLMModel, s.LLM.Model)
	assert.Equal(t, 3, s.GitHub.MaxFanOut)
	assert.Equal(t, 24*time.Hour, s.Cache.ParserTTL)
	assert.Equal(t, 6*time.Hour, s.Cache.SearchTTL)
	assert.True(t, s.Cache.SingleFlight)
	assert.Equal(t, "0.0.0.0:8080", s.HTTP.Addr())
	assert.Equal(t, "webhook", s.Delivery.Channel)
	assert.Equal(t, DefaultDailySchedule, s.Scheduler.Daily)
	assert.Equal(t, DefaultWeeklySchedule, s.Scheduler.Weekly)
	assert.Empty(t, s.Database.DSN)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_MAX_FANOUT", "5")
	t.Setenv("SEARCH_CACHE_TTL", "30m")
	t.Setenv("CACHE_SINGLE_FLIGHT", "false")
	t.Setenv("PORT", "9090")
	t.Setenv("DELIVERY_CHANNEL", "feishu")
	t.Setenv("SCHEDULE_DAILY", "30 8 * * *")

	s := Load()
	assert.Equal(t, "ghp_test", s.GitHub.Token)
	assert.Equal(t, 5, s.GitHub.MaxFanOut)
	assert.Equal(t, 30*time.Minute, s.Cache.SearchTTL)
	assert.False(t, s.Cache.SingleFlight)
	assert.Equal(t, 9090, s.HTTP.Port)
	assert.Equal(t, "feishu", s.Delivery.Channel)
	assert.Equal(t, "30 8 * * *", s.Scheduler.Daily)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TS_DOTENV_VALUE=from-file\n"), 0o600))
	t.Setenv("TS_DOTENV_VALUE", "")
	os.Unsetenv("TS_DOTENV_VALUE")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TS_DOTENV_VALUE"))
}
