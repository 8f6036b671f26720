package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rqbconf/internal/params"
)

const lockRetryInterval = 20 * time.Millisecond

// RecordCache stores extracted records on disk as <key>.json, keyed by the
// target node and the document bytes. Extraction is deterministic, so a hit
// is equivalent to a fresh parse.
type RecordCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on entries.
	StrictPerms bool
}

// Entry is the on-disk form of a cached record.
type Entry struct {
	Node    string        `json:"node"`
	Source  string        `json:"source"`
	Record  params.Record `json:"record"`
	SavedAt time.Time     `json:"saved_at"`
}

func (c *RecordCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	// If directory already existed and StrictPerms is on, tighten perms
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFrom builds a cache key from the target node and document bytes.
func KeyFrom(node string, doc []byte) string {
	h := sha256.New()
	h.Write([]byte(node))
	h.Write([]byte("\n\n"))
	h.Write(doc)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *RecordCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

func (c *RecordCache) lockPath() string {
	return filepath.Join(c.Dir, ".lock")
}

// Get returns the cached record for key if present. Unreadable or malformed
// entries count as a miss.
func (c *RecordCache) Get(_ context.Context, key string) (params.Record, bool, error) {
	if err := c.ensureDir(); err != nil {
		return params.Record{}, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return params.Record{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		log.Debug().Err(err).Str("path", p).Msg("discarding malformed cache entry")
		return params.Record{}, false, nil
	}
	// Touch file mtime on access for age-based purging
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e.Record, true, nil
}

// Save writes rec under key. Concurrent writers, including other processes,
// are serialized through a lock file in the cache directory.
func (c *RecordCache) Save(ctx context.Context, key string, e Entry) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	fl := flock.New(c.lockPath())
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache %s: lock not acquired", c.lockPath())
	}
	defer func() {
		if err := fl.Close(); err != nil {
			log.Debug().Err(err).Str("path", fl.Path()).Msg("failed to release cache lock")
		}
	}()

	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	tmp := c.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return os.Rename(tmp, c.pathFor(key))
}
