// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/infrastructure/db"
	"github.com/sawpanic/rltrader/internal/market"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/rl/agent"
	"github.com/sawpanic/rltrader/internal/rl/env"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
	"github.com/sawpanic/rltrader/internal/sentiment"
	"github.com/sawpanic/rltrader/internal/signal"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config/rltrader.yaml"

// Config is the full service configuration.
type Config struct {
	Data      market.Config        `yaml:"data"`
	Artifacts artifacts.Config     `yaml:"artifacts"`
	Training  TrainingConfig       `yaml:"training"`
	Signal    signal.Config        `yaml:"signal"`
	Paper     papertrade.Config    `yaml:"paper"`
	News      sentiment.NewsConfig `yaml:"news"`
	Server    ServerConfig         `yaml:"server"`
	Database  db.Config            `yaml:"database"`
}

// TrainingConfig controls offline training jobs.
type TrainingConfig struct {
	Episodes        int          `yaml:"episodes"`
	Period          string       `yaml:"period"`
	BatchSize       int          `yaml:"batch_size"`
	TransactionCost float64      `yaml:"transaction_cost"`
	Agent           agent.Config `yaml:"agent"`
	Network         qnet.Config  `yaml:"network"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns a configuration that runs fully offline except for the
// Yahoo bar source.
func Default() Config {
	return Config{
		Data:      market.DefaultConfig(),
		Artifacts: artifacts.DefaultConfig(),
		Training: TrainingConfig{
			Episodes:        10,
			Period:          "2y",
			BatchSize:       agent.DefaultBatchSize,
			TransactionCost: env.DefaultTransactionCost,
			Agent:           agent.DefaultConfig(),
			Network:         qnet.DefaultConfig(0, 0),
		},
		Signal: signal.DefaultConfig(),
		Paper:  papertrade.DefaultConfig(),
		News:   sentiment.DefaultNewsConfig(),
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: db.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Str("path", path).Msg("Config file not found, using defaults")
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("Failed to load env file")
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Warn().Str("HTTP_PORT", v).Msg("Ignoring non-numeric HTTP_PORT")
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Artifacts.RedisAddr = v
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.News.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Data.AlpacaKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Data.AlpacaSecret = v
	}
	if v := os.Getenv("RLTRADER_DATA_SOURCE"); v != "" {
		cfg.Data.Source = strings.ToLower(v)
	}
	if v := os.Getenv("RLTRADER_DEMO_MODE"); v != "" {
		if demo, err := strconv.ParseBool(v); err == nil {
			cfg.Signal.DemoMode = demo
		}
	}
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(msg, args...))
		}
	}

	check(c.Training.Episodes > 0, "training.episodes must be positive, got %d", c.Training.Episodes)
	check(c.Training.BatchSize > 0, "training.batch_size must be positive, got %d", c.Training.BatchSize)
	check(c.Training.TransactionCost >= 0, "training.transaction_cost must be >= 0, got %v", c.Training.TransactionCost)
	a := c.Training.Agent
	check(a.Gamma >= 0 && a.Gamma <= 1, "training.agent.gamma must be in [0,1], got %v", a.Gamma)
	check(a.EpsilonMin >= 0 && a.EpsilonMin <= a.Epsilon && a.Epsilon <= 1,
		"training.agent epsilon bounds invalid: epsilon %v, epsilon_min %v", a.Epsilon, a.EpsilonMin)
	check(a.EpsilonDecay > 0 && a.EpsilonDecay <= 1, "training.agent.epsilon_decay must be in (0,1], got %v", a.EpsilonDecay)
	check(a.MemorySize > 0, "training.agent.memory_size must be positive, got %d", a.MemorySize)
	check(c.Training.Network.LearningRate > 0, "training.network.learning_rate must be positive")

	check(c.Paper.InitialCash > 0, "paper.initial_cash must be positive, got %v", c.Paper.InitialCash)
	check(c.Paper.DefaultDays > 0, "paper.default_days must be positive, got %d", c.Paper.DefaultDays)
	check(c.Signal.CacheSize > 0, "signal.cache_size must be positive, got %d", c.Signal.CacheSize)
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port out of range: %d", c.Server.Port)
	check(!c.Database.Enabled || c.Database.DSN != "", "database.dsn is required when the database is enabled")

	for _, p := range []string{c.Training.Period, c.Signal.HistoryPeriod, c.Paper.HistoryPeriod} {
		_, _, err := market.PeriodRange(p, time.Now())
		check(err == nil, "unknown period %q", p)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: invalid config: %s", domain.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Addr is host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
