package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/pkg/database"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

const sugarColumns = `id, food_name, sugar_per_pack, pack_count, pack_content, total_sugar, teaspoons, recorded_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SugarRepository implements repository.SugarRepository using PostgreSQL.
type SugarRepository struct {
	db database.DBTX
}

// NewSugarRepository creates a new PostgreSQL-backed sugar log repository.
func NewSugarRepository(db database.DBTX) *SugarRepository {
	return &SugarRepository{db: db}
}

// Create inserts a new sugar entry.
func (r *SugarRepository) Create(ctx context.Context, e *domain.SugarEntry) (err error) {
	query := `
		INSERT INTO sugar_entries (id, account_id, food_name, sugar_per_pack, pack_count, pack_content, total_sugar, teaspoons, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "sugar.Create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		e.ID,
		e.AccountID,
		e.FoodName,
		e.SugarPerPack,
		e.PackCount,
		e.PackContent,
		e.TotalSugar,
		e.Teaspoons,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sugar entry: %w", err)
	}
	return nil
}

// List returns the account's entries matching f, newest first.
func (r *SugarRepository) List(ctx context.Context, accountID string, f domain.SugarFilter) (_ []domain.SugarEntry, err error) {
	conds := []string{"account_id = $1"}
	args := []any{accountID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("recorded_at < $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		conds = append(conds, fmt.Sprintf("food_name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + sugarColumns + ` FROM sugar_entries WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY recorded_at DESC`

	ctx, end := database.TraceQuery(ctx, "sugar.List", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sugar entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.SugarEntry{}
	for rows.Next() {
		e := domain.SugarEntry{AccountID: accountID}
		if err = rows.Scan(
			&e.ID,
			&e.FoodName,
			&e.SugarPerPack,
			&e.PackCount,
			&e.PackContent,
			&e.TotalSugar,
			&e.Teaspoons,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sugar entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sugar entry rows: %w", err)
	}

	return entries, nil
}

// Update rewrites an entry owned by e.AccountID. The recorded time is kept
// and copied back into e.
func (r *SugarRepository) Update(ctx context.Context, e *domain.SugarEntry) (err error) {
	query := `
		UPDATE sugar_entries
		SET food_name = $1, sugar_per_pack = $2, pack_count = $3, pack_content = $4, total_sugar = $5, teaspoons = $6
		WHERE id = $7 AND account_id = $8
		RETURNING recorded_at`

	ctx, end := database.TraceQuery(ctx, "sugar.Update", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		e.FoodName,
		e.SugarPerPack,
		e.PackCount,
		e.PackContent,
		e.TotalSugar,
		e.Teaspoons,
		e.ID,
		e.AccountID,
	).Scan(&e.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("sugar entry", e.ID)
		}
		return fmt.Errorf("update sugar entry: %w", err)
	}
	return nil
}

// Delete removes an entry owned by accountID.
func (r *SugarRepository) Delete(ctx context.Context, accountID, id string) (err error) {
	query := `DELETE FROM sugar_entries WHERE id = $1 AND account_id = $2`

	ctx, end := database.TraceQuery(ctx, "sugar.Delete", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("delete sugar entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("sugar entry", id)
	}
	return nil
}
