package commviz

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Storage backends accepted in Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config configures a Commviz instance.
type Config struct {
	// Durable store location: a SQLite file (or ":memory:") or a Badger
	// directory, depending on Backend (default: ":memory:")
	DBPath string

	// Durable backend: sqlite, badger or memory (default: sqlite)
	Backend string

	// Bound on each durable-store call (default: 10s)
	StorageTimeout time.Duration

	// JSON Lines trace file; empty disables tracing
	TracePath string

	// Louvain resolution for community detection (default: 1.0)
	Resolution float64

	// Concurrent loads during Warm (default: 4)
	WarmParallelism int

	// Log level for the logger built by NewLogger: debug, info, warn, error (default: info)
	LogLevel string

	// Log format for NewLogger: text (console) or json (default: text)
	LogFormat string
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = ":memory:"
	}
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 10 * time.Second
	}
	if c.Resolution <= 0 {
		c.Resolution = 1.0
	}
	if c.WarmParallelism <= 0 {
		c.WarmParallelism = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// ConfigFromEnv reads COMMVIZ_* variables, loading a .env file first when
// one exists in the working directory. Unset or unparsable values keep
// their defaults.
//
//	COMMVIZ_DB_PATH, COMMVIZ_BACKEND, COMMVIZ_STORAGE_TIMEOUT (Go duration),
//	COMMVIZ_TRACE_PATH, COMMVIZ_RESOLUTION, COMMVIZ_WARM_PARALLELISM,
//	COMMVIZ_LOG_LEVEL, COMMVIZ_LOG_FORMAT
func ConfigFromEnv() Config {
	// A missing .env file is normal; the process environment still applies
	_ = godotenv.Load()

	cfg := Config{
		DBPath:    os.Getenv("COMMVIZ_DB_PATH"),
		Backend:   strings.ToLower(os.Getenv("COMMVIZ_BACKEND")),
		TracePath: os.Getenv("COMMVIZ_TRACE_PATH"),
		LogLevel:  strings.ToLower(os.Getenv("COMMVIZ_LOG_LEVEL")),
		LogFormat: strings.ToLower(os.Getenv("COMMVIZ_LOG_FORMAT")),
	}
	if v, err := time.ParseDuration(os.Getenv("COMMVIZ_STORAGE_TIMEOUT")); err == nil {
		cfg.StorageTimeout = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("COMMVIZ_RESOLUTION"), 64); err == nil {
		cfg.Resolution = v
	}
	if v, err := strconv.Atoi(os.Getenv("COMMVIZ_WARM_PARALLELISM")); err == nil {
		cfg.WarmParallelism = v
	}
	cfg.applyDefaults()
	return cfg
}

// NewLogger builds the logger described by cfg: a charmbracelet console
// handler for "text", slog's JSON handler for "json".
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	cfg.applyDefaults()

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}))
	}

	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "commviz",
	}))
}

func slogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
