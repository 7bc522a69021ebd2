package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	SourceBase     string
	SourceCookie   string
	SourceRPS      int
	ReviewSelector string
	NextSelector   string

	Apps       []string
	Cutoff     string
	Workers    int
	StartDelay time.Duration
	PageDelay  time.Duration
	OutputDir  string
	Location   *time.Location

	// Warnings are collected by Load and logged once the logger is set up.
	Warnings []string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		SourceBase:     env("SOURCE_BASE_URL", "https://play.google.com/apps/publish"),
		SourceCookie:   env("SOURCE_COOKIE", ""),
		SourceRPS:      atoi("SOURCE_RPS", 2),
		ReviewSelector: env("REVIEW_SELECTOR", ".review"),
		NextSelector:   env("NEXT_PAGE_SELECTOR", "a.next-page"),

		Apps:       SplitList(env("HARVEST_APPS", "")),
		Cutoff:     env("HARVEST_CUTOFF", ""),
		Workers:    atoi("HARVEST_WORKERS", 4),
		StartDelay: time.Duration(atoi("HARVEST_START_DELAY_MS", 1500)) * time.Millisecond,
		PageDelay:  time.Duration(atoi("HARVEST_PAGE_DELAY_MS", 2500)) * time.Millisecond,
		OutputDir:  env("OUTPUT_DIR", "."),
		Location:   time.UTC,
	}
	if tz := env("HARVEST_TZ", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			c.Warnings = append(c.Warnings, "unknown HARVEST_TZ "+strconv.Quote(tz)+", using UTC")
		} else {
			c.Location = loc
		}
	}
	if c.SourceCookie == "" {
		c.Warnings = append(c.Warnings, "SOURCE_COOKIE is empty")
	}
	return c
}

func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		log.Warn().Msg(w)
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
