package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the SQLite cache inside the process.
const MemoryDSN = ":memory:"

const table = "cache_entries"

type sqliteEntry struct {
	Value     []byte `db:"value"`
	ExpiresAt int64  `db:"expires_at"`
}

// SQLite stores cache entries in a SQLite database.
type SQLite struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewSQLite opens the database at path and creates the cache table.
// An empty path or MemoryDSN keeps everything in memory.
func NewSQLite(path string, clk clock.Clock) (*SQLite, error) {
	if clk == nil {
		clk = clock.WallClock
	}

	dsn := MemoryDSN
	if path != "" && path != MemoryDSN {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db, clock: clk}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}

	value, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		if err := s.put(ctx, key, value, s.clock.Now().Add(ttl)); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func (s *SQLite) get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := sq.Select("value", "expires_at").
		From(table).
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": s.clock.Now().UnixNano()}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build cache query: %w", err)
	}

	var e sqliteEntry
	if err := s.db.GetContext(ctx, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cache entry %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *SQLite) put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	query, args, err := sq.Insert(table).
		Columns("key", "value", "expires_at").
		Values(key, value, expiresAt.UnixNano()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put cache entry %s: %w", key, err)
	}
	return nil
}

// Purge deletes expired entries.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	query, args, err := sq.Delete(table).
		Where(sq.LtOrEq{"expires_at": s.clock.Now().UnixNano()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cache purge: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}
