package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/satrioramadhan/scansek-api/pkg/database"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

// WaterRepository implements repository.WaterRepository using PostgreSQL.
// Each (account, day) row keeps its times as a de-duplicated text array.
type WaterRepository struct {
	db database.DBTX
}

// NewWaterRepository creates a new PostgreSQL-backed water log repository.
func NewWaterRepository(db database.DBTX) *WaterRepository {
	return &WaterRepository{db: db}
}

// Get returns the times logged for day.
func (r *WaterRepository) Get(ctx context.Context, accountID string, day time.Time) (_ []string, err error) {
	query := `SELECT times FROM water_logs WHERE account_id = $1 AND log_date = $2`

	ctx, end := database.TraceQuery(ctx, "water.Get", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var times []string
	if err = r.db.QueryRow(ctx, query, accountID, day).Scan(&times); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get water log: %w", err)
	}
	if times == nil {
		times = []string{}
	}
	return times, nil
}

// AddTime upserts day and appends hhmm unless it is already present.
func (r *WaterRepository) AddTime(ctx context.Context, accountID string, day time.Time, hhmm string) (err error) {
	query := `
		INSERT INTO water_logs (account_id, log_date, times, updated_at)
		VALUES ($1, $2, ARRAY[$3::text], NOW())
		ON CONFLICT (account_id, log_date) DO UPDATE
		SET times = CASE
		        WHEN $3::text = ANY(water_logs.times) THEN water_logs.times
		        ELSE array_append(water_logs.times, $3::text)
		    END,
		    updated_at = NOW()`

	ctx, end := database.TraceQuery(ctx, "water.AddTime", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, accountID, day, hhmm); err != nil {
		return fmt.Errorf("add water time: %w", err)
	}
	return nil
}

// DeleteDay removes the log for day.
func (r *WaterRepository) DeleteDay(ctx context.Context, accountID string, day time.Time) (err error) {
	query := `DELETE FROM water_logs WHERE account_id = $1 AND log_date = $2`

	ctx, end := database.TraceQuery(ctx, "water.DeleteDay", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, accountID, day)
	if err != nil {
		return fmt.Errorf("delete water log: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("water log", day.Format(time.DateOnly))
	}
	return nil
}

// RemoveTime removes hhmm from day. A day or time that is not present is NOT_FOUND.
func (r *WaterRepository) RemoveTime(ctx context.Context, accountID string, day time.Time, hhmm string) (err error) {
	query := `
		UPDATE water_logs
		SET times = array_remove(times, $3::text), updated_at = NOW()
		WHERE account_id = $1 AND log_date = $2 AND $3::text = ANY(times)`

	ctx, end := database.TraceQuery(ctx, "water.RemoveTime", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, accountID, day, hhmm)
	if err != nil {
		return fmt.Errorf("remove water time: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("water time", day.Format(time.DateOnly)+" "+hhmm)
	}
	return nil
}
