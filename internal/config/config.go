package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIAddr            string
	Environment        string
	LogLevel           string
	DriveFolderID      string
	Source             string
	StaticSourcePath   string
	DriveAPIBase       string
	SheetsAPIBase      string
	SheetRange         string
	FetchConcurrency   int
	HTTPTimeoutSecs    int
	IndexTTLSecs       int
	CacheTTLSecs       int
	DetailTTLSecs      int
	HistoryTTLSecs     int
	HistoryLimit       int
	DefaultYear        int
	SingleFlight       bool
	CacheBackend       string
	PostgresURL        string
	JWTSecret          string
	TemporalAddress    string
	TemporalTaskQueue  string
	ServiceAccessToken string
	CORSOrigins        []string
}

func Load() Config {
	return Config{
		APIAddr:            getenv("EXAMSEARCH_API_ADDR", ":8080"),
		Environment:        getenv("EXAMSEARCH_ENVIRONMENT", "development"),
		LogLevel:           getenv("EXAMSEARCH_LOG_LEVEL", "info"),
		DriveFolderID:      getenv("EXAMSEARCH_DRIVE_FOLDER_ID", ""),
		Source:             getenv("EXAMSEARCH_SOURCE", "google"),
		StaticSourcePath:   getenv("EXAMSEARCH_STATIC_SOURCE_PATH", "./data/exams.json"),
		DriveAPIBase:       getenv("EXAMSEARCH_DRIVE_API_BASE", "https://www.googleapis.com/drive/v3"),
		SheetsAPIBase:      getenv("EXAMSEARCH_SHEETS_API_BASE", "https://sheets.googleapis.com/v4"),
		SheetRange:         getenv("EXAMSEARCH_SHEET_RANGE", "A1:Z10000"),
		FetchConcurrency:   getenvInt("EXAMSEARCH_FETCH_CONCURRENCY", 8),
		HTTPTimeoutSecs:    getenvInt("EXAMSEARCH_HTTP_TIMEOUT_SECONDS", 30),
		IndexTTLSecs:       getenvInt("EXAMSEARCH_INDEX_TTL_SECONDS", 1800),
		CacheTTLSecs:       getenvInt("EXAMSEARCH_CACHE_TTL_SECONDS", 21600),
		DetailTTLSecs:      getenvInt("EXAMSEARCH_DETAIL_TTL_SECONDS", 3600),
		HistoryTTLSecs:     getenvInt("EXAMSEARCH_HISTORY_TTL_SECONDS", 30*24*3600),
		HistoryLimit:       getenvInt("EXAMSEARCH_HISTORY_LIMIT", 20),
		DefaultYear:        getenvInt("EXAMSEARCH_DEFAULT_YEAR", 2024),
		SingleFlight:       getenvBool("EXAMSEARCH_SINGLE_FLIGHT", true),
		CacheBackend:       getenv("EXAMSEARCH_CACHE_BACKEND", "memory"),
		PostgresURL:        getenv("EXAMSEARCH_POSTGRES_URL", ""),
		JWTSecret:          getenv("EXAMSEARCH_JWT_SECRET", ""),
		TemporalAddress:    getenv("EXAMSEARCH_TEMPORAL_ADDRESS", ""),
		TemporalTaskQueue:  getenv("EXAMSEARCH_TEMPORAL_TASK_QUEUE", "examsearch"),
		ServiceAccessToken: getenv("EXAMSEARCH_SERVICE_ACCESS_TOKEN", ""),
		CORSOrigins:        getenvList("EXAMSEARCH_CORS_ORIGINS", []string{"*"}),
	}
}

// Validate reports settings the binaries cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.CacheTTLSecs <= c.IndexTTLSecs {
		errs = append(errs, fmt.Errorf("cache ttl %ds must be longer than index ttl %ds", c.CacheTTLSecs, c.IndexTTLSecs))
	}
	if c.CacheBackend == "postgres" && c.PostgresURL == "" {
		errs = append(errs, errors.New("postgres cache backend requires EXAMSEARCH_POSTGRES_URL"))
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "postgres" {
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("production requires EXAMSEARCH_JWT_SECRET"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) IndexTTL() time.Duration   { return seconds(c.IndexTTLSecs) }
func (c Config) CacheTTL() time.Duration   { return seconds(c.CacheTTLSecs) }
func (c Config) DetailTTL() time.Duration  { return seconds(c.DetailTTLSecs) }
func (c Config) HistoryTTL() time.Duration { return seconds(c.HistoryTTLSecs) }
func (c Config) HTTPTimeout() time.Duration {
	return seconds(c.HTTPTimeoutSecs)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the text logger every binary writes to stdout.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvList(k string, fallback []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	out := make([]string, 0, 4)
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
