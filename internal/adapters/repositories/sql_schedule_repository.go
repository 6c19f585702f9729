package repositories

import (
	"context"
	"database/sql"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/platform/db"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxListLimit = 100

// SQLScheduleRepository keeps schedules as JSON documents with a few indexed
// columns for listing and pruning.
type SQLScheduleRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
	Logger  *zap.Logger
}

func NewSQLScheduleRepository(conn *sql.DB, dialect db.Dialect, logger *zap.Logger) *SQLScheduleRepository {
	return &SQLScheduleRepository{DB: conn, Dialect: dialect, Logger: logger}
}

func (r *SQLScheduleRepository) Save(ctx context.Context, s ports.StoredSchedule) (err error) {
	defer obs.Time(ctx, r.Logger, "schedules.Save")(&err)

	if s.ID == "" || s.Schedule == nil {
		return errors.New("save schedule: id and schedule are required")
	}

	body, err := json.Marshal(s.Schedule)
	if err != nil {
		return fmt.Errorf("save schedule %s: encode: %w", s.ID, err)
	}

	q := db.Rebind(r.Dialect, `
	INSERT INTO schedules (id, created_at, depart_at, arrive_at, safety_score, body)
	VALUES (?, ?, ?, ?, ?, ?);
	`)
	_, err = r.DB.ExecContext(ctx, q,
		s.ID,
		s.CreatedAt.UnixMilli(),
		s.Schedule.DepartAt.UnixMilli(),
		s.Schedule.ArriveAt.UnixMilli(),
		s.Schedule.SafetyScore,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("save schedule %s: %w", s.ID, err)
	}
	return nil
}

func (r *SQLScheduleRepository) Get(ctx context.Context, id string) (_ ports.StoredSchedule, err error) {
	defer obs.Time(ctx, r.Logger, "schedules.Get")(&err)

	q := db.Rebind(r.Dialect, `SELECT id, created_at, body FROM schedules WHERE id = ?;`)
	out, err := scanSchedule(r.DB.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredSchedule{}, fmt.Errorf("get schedule %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return ports.StoredSchedule{}, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return out, nil
}

func (r *SQLScheduleRepository) ListRecent(ctx context.Context, limit int) (_ []ports.StoredSchedule, err error) {
	defer obs.Time(ctx, r.Logger, "schedules.ListRecent")(&err)

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	q := db.Rebind(r.Dialect, `
	SELECT id, created_at, body
	FROM schedules
	ORDER BY created_at DESC, id DESC
	LIMIT ?;
	`)
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list schedules: query schedules table: %w", err)
	}
	defer rows.Close()

	out := []ports.StoredSchedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedules: row iteration: %w", err)
	}
	return out, nil
}

func (r *SQLScheduleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	defer obs.Time(ctx, r.Logger, "schedules.DeleteOlderThan")(&err)

	q := db.Rebind(r.Dialect, `DELETE FROM schedules WHERE created_at < ?;`)
	res, err := r.DB.ExecContext(ctx, q, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete schedules before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete schedules: rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (ports.StoredSchedule, error) {
	var (
		id      string
		created int64
		body    string
	)
	if err := row.Scan(&id, &created, &body); err != nil {
		return ports.StoredSchedule{}, err
	}

	var sched domain.Schedule
	if err := json.Unmarshal([]byte(body), &sched); err != nil {
		return ports.StoredSchedule{}, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	return ports.StoredSchedule{ID: id, CreatedAt: time.UnixMilli(created).UTC(), Schedule: &sched}, nil
}
