// Package artifacts persists trained Q-network snapshots keyed by symbol.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/domain"
)

// Store loads and saves opaque model artifacts.
type Store interface {
	Load(ctx context.Context, symbol string) ([]byte, error)
	Save(ctx context.Context, symbol string, data []byte) error
	Exists(ctx context.Context, symbol string) (bool, error)
}

// Config selects and configures the artifact backend.
type Config struct {
	Dir           string `yaml:"dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// DefaultConfig stores artifacts under ./models.
func DefaultConfig() Config {
	return Config{Dir: "models"}
}

// NewStore returns a Redis store when an address is configured (or
// REDIS_ADDR is set) and a file store otherwise.
func NewStore(cfg Config) (Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		s, err := NewRedisStore(addr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", addr).Msg("Using Redis artifact store")
		return s, nil
	}
	log.Info().Str("dir", cfg.Dir).Msg("Using file artifact store")
	return NewFileStore(cfg.Dir), nil
}

// NormalizeSymbol upper-cases a ticker and rejects anything that could
// escape the artifact namespace.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", domain.ErrInvalidRequest)
	}
	if strings.ContainsAny(s, `/\:`) || strings.Contains(s, "..") {
		return "", fmt.Errorf("%w: invalid symbol %q", domain.ErrInvalidRequest, symbol)
	}
	return s, nil
}

// FileStore keeps one JSON file per symbol at {root}/rl/{SYMBOL}.json.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	if root == "" {
		root = DefaultConfig().Dir
	}
	return &FileStore{root: root}
}

func (f *FileStore) path(symbol string) (string, error) {
	s, err := NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, "rl", s+".json"), nil
}

func (f *FileStore) Load(_ context.Context, symbol string) ([]byte, error) {
	p, err := f.path(symbol)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no model for %s", domain.ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", p, err)
	}
	return data, nil
}

// Save writes to a temp file in the target directory and renames it over
// the final path, so readers never see a partial artifact.
func (f *FileStore) Save(_ context.Context, symbol string, data []byte) error {
	p, err := f.path(symbol)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}

	log.Debug().Str("path", p).Int("bytes", len(data)).Msg("Artifact saved")
	return nil
}

func (f *FileStore) Exists(_ context.Context, symbol string) (bool, error) {
	p, err := f.path(symbol)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat artifact: %w", err)
	}
}
