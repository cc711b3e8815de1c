package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry describes one stored model.
type Entry struct {
	Symbol         string    `json:"symbol"`
	Bytes          int64     `json:"bytes"`
	ModifiedAt     time.Time `json:"modified_at,omitempty"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
}

// Lister is implemented by stores that can enumerate their models.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
}

// List returns every saved model sorted by symbol. Temp files from an
// interrupted Save are skipped.
func (f *FileStore) List(ctx context.Context) ([]Entry, error) {
	dir := filepath.Join(f.root, "rl")
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", p, err)
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat artifact %s: %w", p, err)
		}
		entries = append(entries, Entry{
			Symbol:         strings.TrimSuffix(name, ".json"),
			Bytes:          int64(len(data)),
			ModifiedAt:     info.ModTime().UTC(),
			ChecksumSHA256: checksum(data),
		})
	}
	sortEntries(entries)
	return entries, nil
}

// List scans the model key prefix. Redis keeps no modification time.
func (r *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var (
		cursor  uint64
		entries []Entry
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				// deleted between SCAN and GET
				continue
			}
			entries = append(entries, Entry{
				Symbol:         strings.TrimPrefix(key, keyPrefix),
				Bytes:          int64(len(data)),
				ChecksumSHA256: checksum(data),
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	sortEntries(entries)
	return entries, nil
}
