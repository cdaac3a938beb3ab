package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

const pgForeignKeyViolation = "23503"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the relation in a single statement; a conflict on either
// unique column leaves the table untouched and yields ErrInvalidRelation.
func (r *PostgresRepository) Create(ctx context.Context, originalID, convertedID string) error {
	if err := validate(originalID, convertedID); err != nil {
		return err
	}
	query := `
		INSERT INTO conversion_relations (original_file_id, converted_file_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, originalID, convertedID, time.Now().UTC())
	return created(res, err, originalID, convertedID)
}

func (r *PostgresRepository) GetConvertedID(ctx context.Context, originalID string) (string, error) {
	query := `SELECT converted_file_id FROM conversion_relations WHERE original_file_id=$1`
	return lookup(r.db.QueryRowContext(ctx, query, originalID))
}

func (r *PostgresRepository) GetOriginalID(ctx context.Context, convertedID string) (string, error) {
	query := `SELECT original_file_id FROM conversion_relations WHERE converted_file_id=$1`
	return lookup(r.db.QueryRowContext(ctx, query, convertedID))
}

func (r *PostgresRepository) DeleteByOriginal(ctx context.Context, originalID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conversion_relations WHERE original_file_id=$1`, originalID); err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.ConversionRelation, error) {
	query := `SELECT original_file_id, converted_file_id, created_at FROM conversion_relations ORDER BY created_at, original_file_id`
	return collect(r.db.QueryContext(ctx, query))
}

func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
