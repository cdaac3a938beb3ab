package relations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

// SQLITE_CONSTRAINT_FOREIGNKEY
const sqliteForeignKeyViolation = 787

// SQLiteRepository implements Repository for SQLite. Foreign keys are
// only enforced when the connection enables them (_pragma=foreign_keys(1)).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, originalID, convertedID string) error {
	if err := validate(originalID, convertedID); err != nil {
		return err
	}
	query := `
		INSERT INTO conversion_relations (original_file_id, converted_file_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, originalID, convertedID, time.Now().UTC())
	return created(res, err, originalID, convertedID)
}

func (r *SQLiteRepository) GetConvertedID(ctx context.Context, originalID string) (string, error) {
	query := `SELECT converted_file_id FROM conversion_relations WHERE original_file_id=?`
	return lookup(r.db.QueryRowContext(ctx, query, originalID))
}

func (r *SQLiteRepository) GetOriginalID(ctx context.Context, convertedID string) (string, error) {
	query := `SELECT original_file_id FROM conversion_relations WHERE converted_file_id=?`
	return lookup(r.db.QueryRowContext(ctx, query, convertedID))
}

func (r *SQLiteRepository) DeleteByOriginal(ctx context.Context, originalID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conversion_relations WHERE original_file_id=?`, originalID); err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.ConversionRelation, error) {
	query := `SELECT original_file_id, converted_file_id, created_at FROM conversion_relations ORDER BY created_at, original_file_id`
	return collect(r.db.QueryContext(ctx, query))
}

func isSQLiteForeignKeyViolation(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
