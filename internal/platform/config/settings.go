package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the fully resolved application configuration
type Settings struct {
	GitHub    GitHubSettings
	LLM       LLMSettings
	Cache     CacheSettings
	HTTP      HTTPSettings
	Delivery  DeliverySettings
	Scheduler SchedulerSettings
	Database  DatabaseSettings
}

type GitHubSettings struct {
	Token   string
	BaseURL   string // empty means api.github.com
	Timeout   time.Duration
	MaxFanOut int
}

type LLMSettings struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	PromptFile string
}

type CacheSettings struct {
	ParserTTL    time.Duration
	SearchTTL    time.Duration
	MaxEntries   int
	SingleFlight bool
}

type HTTPSettings struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPM   int
}

// Addr joins host and port for net/http
func (h HTTPSettings) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type DeliverySettings struct {
	Channel    string // webhook | feishu
	WebhookURL string
	FeishuURL  string
	Timeout    time.Duration
}

type SchedulerSettings struct {
	Enabled  bool
	Daily    string
	Weekly   string
	Location *time.Location
	Timeout  time.Duration
}

type DatabaseSettings struct {
	DSN string // empty disables digest history
}

const (
	DefaultLLMModel       = "gemini-2.5-flash-lite"
	DefaultDailySchedule  = "0 9 * * *"
	DefaultWeeklySchedule = "0 9 * * 1"
)

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves Settings from the environment
func Load() Settings {
	c := New()
	gh := c.Prefix("GITHUB_")
	cache := c.Prefix("CACHE_")
	sched := c.Prefix("SCHEDULE_")

	return Settings{
		GitHub: GitHubSettings{
			Token:     gh.MayString("TOKEN", ""),
			BaseURL:   gh.MayString("API_URL", ""),
			Timeout:   gh.MayDuration("TIMEOUT", 10*time.Second),
			MaxFanOut: gh.MayInt("MAX_FANOUT", 3),
		},
		LLM: LLMSettings{
			APIKey:     c.MayString("GEMINI_API_KEY", ""),
			Model:      c.MayString("LLM_MODEL", DefaultLLMModel),
			Timeout:    c.MayDuration("LLM_TIMEOUT", 15*time.Second),
			PromptFile: c.MayString("LLM_PROMPT_FILE", ""),
		},
		Cache: CacheSettings{
			ParserTTL:    c.MayDuration("PARSER_CACHE_TTL", 24*time.Hour),
			SearchTTL:    c.MayDuration("SEARCH_CACHE_TTL", 6*time.Hour),
			MaxEntries:   cache.MayInt("MAX_ENTRIES", 10000),
			SingleFlight: cache.MayBool("SINGLE_FLIGHT", true),
		},
		HTTP: HTTPSettings{
			Host:           c.MayString("HOST", "0.0.0.0"),
			Port:           c.MayInt("PORT", 8080),
			AllowedOrigins: c.MayCSV("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPM:   c.MayInt("RATE_LIMIT_RPM", 60),
		},
		Delivery: DeliverySettings{
			Channel:    c.MayString("DELIVERY_CHANNEL", "webhook"),
			WebhookURL: c.MayString("WEBHOOK_URL", ""),
			FeishuURL:  c.MayString("FEISHU_WEBHOOK", ""),
			Timeout:    c.MayDuration("DELIVERY_TIMEOUT", 10*time.Second),
		},
		Scheduler: SchedulerSettings{
			Enabled:  c.MayBool("SCHEDULER_ENABLED", true),
			Daily:    sched.MayString("DAILY", DefaultDailySchedule),
			Weekly:   sched.MayString("WEEKLY", DefaultWeeklySchedule),
			Location: sched.MayLocation("TZ", time.UTC),
			Timeout:  sched.MayDuration("TIMEOUT", 2*time.Minute),
		},
		Database: DatabaseSettings{
			DSN: c.MayString("DATABASE_DSN", ""),
		},
	}
}
