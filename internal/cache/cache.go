package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
)

// ComputeFunc produces the value for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Cache memoizes computed values for a bounded time. Implementations must
// be safe for concurrent use and must never cache a failed computation.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error)
	Close() error
}

// Key derives a cache key from a function name and its arguments.
func Key(fn string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, fn)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fn + ":" + hex.EncodeToString(sum[:])
}

// Fetch is the typed form of GetOrCompute; values are stored as JSON.
// A computed value is returned as is, together with the compute error,
// even when storing it fails. Storage failures are logged, never returned.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, logger *logrus.Entry, compute func(ctx context.Context) (T, error)) (T, error) {
	var (
		fresh      T
		computed   bool
		computeErr error
	)
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		computed = true
		fresh, computeErr = compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}
		return json.Marshal(fresh)
	})
	if computed {
		if err != nil && computeErr == nil {
			logging.OrDiscard(logger).WithFields(logrus.Fields{"key": key, "err": err}).Warn("cache store failed")
		}
		return fresh, computeErr
	}
	if err != nil {
		logging.OrDiscard(logger).WithFields(logrus.Fields{"key": key, "err": err}).Warn("cache lookup failed")
		return compute(ctx)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.OrDiscard(logger).WithFields(logrus.Fields{"key": key, "err": err}).Warn("cache entry unreadable")
		return compute(ctx)
	}
	return out, nil
}

// Purger is implemented by backends that can drop expired entries.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Nop computes every value and stores nothing.
type Nop struct{}

func (Nop) GetOrCompute(ctx context.Context, _ string, _ time.Duration, compute ComputeFunc) ([]byte, error) {
	return compute(ctx)
}

func (Nop) Close() error { return nil }

// New builds the cache backend named by backend: "memory", "sqlite" or "none".
func New(backend, sqlitePath string, clk clock.Clock) (Cache, error) {
	switch backend {
	case "", "memory":
		return NewMemory(clk), nil
	case "sqlite":
		return NewSQLite(sqlitePath, clk)
	case "none", "nop":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
