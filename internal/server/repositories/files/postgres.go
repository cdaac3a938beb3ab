package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts file. A zero CreatedAt is set to the current time.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO files (id, storage_key, original_filename, media_type, extension, size_bytes, sha256_checksum, origin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	res, err := r.db.ExecContext(ctx, query,
		file.ID, file.StorageKey, file.OriginalFilename, file.MediaType, file.Extension,
		file.SizeBytes, file.SHA256Checksum, file.Origin, file.CreatedAt)
	return exactlyOne(res, err, "insert")
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id=$1`
	return getOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	return exactlyOne(res, err, "delete")
}

// List returns all files, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files ORDER BY created_at, id`
	return collect(r.db.QueryContext(ctx, query))
}
