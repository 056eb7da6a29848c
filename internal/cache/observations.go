// Package cache persists fetched observations between polls. Entries are
// zstd-compressed JSON snapshots on disk, keyed by rounded coordinates,
// bounded by a TTL, and swept opportunistically on writes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"bloomwatch/internal/types"
)

// DefaultTTL bounds how long a cached observation may serve reads.
const DefaultTTL = 30 * time.Minute

const (
	entryPrefix = "obs_"
	entrySuffix = ".json.zst"
	sweepEvery  = 5 * time.Minute
)

// Config wires an ObservationCache.
type Config struct {
	// Dir defaults to a bloomwatch directory under the OS temp dir.
	Dir string
	// TTL defaults to DefaultTTL when zero.
	TTL    time.Duration
	Logger *slog.Logger
	Clock  types.Clock
}

// ObservationCache is safe for concurrent use.
type ObservationCache struct {
	dir     string
	ttl     time.Duration
	logger  *slog.Logger
	clock   types.Clock
	encoder *zstd.Encoder

	decoderPool sync.Pool

	mu        sync.Mutex
	lastSweep time.Time
}

// New creates the cache directory if needed and prepares the codecs.
func New(cfg Config) (*ObservationCache, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "bloomwatch-observations")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	return &ObservationCache{
		dir:     dir,
		ttl:     ttl,
		logger:  logger,
		clock:   clock,
		encoder: encoder,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					// Never fails with nil input and default options.
					panic(fmt.Sprintf("creating zstd decoder: %v", err))
				}
				return d
			},
		},
	}, nil
}

// Get returns the cached observation for the coordinate, or a miss when
// the entry is absent, expired, or unreadable. Expired and unreadable
// entries are removed on the way out.
func (c *ObservationCache) Get(ctx context.Context, lat, lon float64) (*types.RawObservation, bool) {
	path := c.entryPath(lat, lon)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	age := c.clock.Now().Sub(info.ModTime())
	if age > c.ttl {
		_ = os.Remove(path)
		c.logger.DebugContext(ctx, "cache entry expired",
			slog.String("path", filepath.Base(path)),
			slog.Duration("age", age))
		return nil, false
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	raw, err := c.decompress(compressed)
	if err == nil {
		var obs types.RawObservation
		if jsonErr := json.Unmarshal(raw, &obs); jsonErr == nil {
			c.logger.DebugContext(ctx, "observation served from cache",
				slog.String("path", filepath.Base(path)),
				slog.Duration("age", age))
			return &obs, true
		}
		err = fmt.Errorf("unmarshaling entry")
	}

	_ = os.Remove(path)
	c.logger.WarnContext(ctx, "dropping unreadable cache entry",
		slog.String("path", filepath.Base(path)),
		slog.String("error", err.Error()))
	return nil, false
}

// Put stores the observation and opportunistically sweeps expired
// entries. Writes go through a temp file and rename so readers never see
// a partial entry.
func (c *ObservationCache) Put(ctx context.Context, lat, lon float64, obs *types.RawObservation) error {
	raw, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshaling observation: %w", err)
	}
	compressed := c.encoder.EncodeAll(raw, nil)

	tmp, err := os.CreateTemp(c.dir, entryPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(lat, lon)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publishing cache entry: %w", err)
	}

	c.maybeSweep(ctx)
	return nil
}

// Close releases the encoder. Pooled decoders are reclaimed by the GC.
func (c *ObservationCache) Close() error {
	return c.encoder.Close()
}

func (c *ObservationCache) decompress(data []byte) ([]byte, error) {
	decoder := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(decoder)
	return decoder.DecodeAll(data, nil)
}

func (c *ObservationCache) entryPath(lat, lon float64) string {
	name := entryPrefix + coordKey(lat) + "_" + coordKey(lon) + entrySuffix
	return filepath.Join(c.dir, name)
}

// coordKey rounds to 4 decimals, the same precision requests to the
// upstream providers carry, so a site always maps to one entry.
func coordKey(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

// maybeSweep removes expired entries at most once per sweepEvery.
func (c *ObservationCache) maybeSweep(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	if now.Sub(c.lastSweep) < sweepEvery {
		c.mu.Unlock()
		return
	}
	c.lastSweep = now
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, entryPrefix) || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > c.ttl {
			if os.Remove(filepath.Join(c.dir, name)) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.DebugContext(ctx, "swept expired cache entries", slog.Int("removed", removed))
	}
}
