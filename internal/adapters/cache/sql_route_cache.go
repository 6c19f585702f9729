package cache

import (
	"context"
	"database/sql"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/platform/db"
	"driver-schedule-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SQLRouteCache stores routing results as JSON rows. Entries older than TTL
// read as misses; a zero TTL keeps entries forever.
type SQLRouteCache struct {
	DB      *sql.DB
	Dialect db.Dialect
	TTL     time.Duration
	Logger  *zap.Logger
	now     func() time.Time
}

func NewSQLRouteCache(conn *sql.DB, dialect db.Dialect, ttl time.Duration, logger *zap.Logger) *SQLRouteCache {
	return &SQLRouteCache{DB: conn, Dialect: dialect, TTL: ttl, Logger: logger, now: time.Now}
}

func (s *SQLRouteCache) Get(ctx context.Context, key string) (_ []domain.RouteSegment, _ bool, err error) {
	defer obs.Time(ctx, s.Logger, "route.cache.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("route cache: db is nil")
	}

	var (
		body    string
		created int64
	)
	q := db.Rebind(s.Dialect, `SELECT body, created_at FROM route_cache WHERE cache_key = ?;`)
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	if s.TTL > 0 && s.now().Sub(time.Unix(created, 0)) > s.TTL {
		return nil, false, nil
	}

	var segs []domain.RouteSegment
	if err := json.Unmarshal([]byte(body), &segs); err != nil {
		return nil, false, fmt.Errorf("get route cache: decode %q: %w", key, err)
	}
	return segs, true, nil
}

func (s *SQLRouteCache) Put(ctx context.Context, key string, segs []domain.RouteSegment) (err error) {
	defer obs.Time(ctx, s.Logger, "route.cache.Put")(&err)

	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert route cache: empty key")
	}

	body, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("insert route cache: encode: %w", err)
	}

	q := db.Rebind(s.Dialect, `
	INSERT INTO route_cache (cache_key, body, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT (cache_key) DO UPDATE
	SET body = excluded.body,
		created_at = excluded.created_at;
	`)
	if _, err := s.DB.ExecContext(ctx, q, key, string(body), s.now().Unix()); err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}
	return nil
}

// Purge removes expired entries.
func (s *SQLRouteCache) Purge(ctx context.Context) (int64, error) {
	if s.TTL <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.TTL).Unix()
	res, err := s.DB.ExecContext(ctx, db.Rebind(s.Dialect, `DELETE FROM route_cache WHERE created_at < ?;`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge route cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge route cache: rows affected: %w", err)
	}
	return n, nil
}
