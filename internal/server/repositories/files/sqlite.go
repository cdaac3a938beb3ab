package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

// SQLiteRepository implements Repository for SQLite.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, file *models.File) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO files (id, storage_key, original_filename, media_type, extension, size_bytes, sha256_checksum, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		file.ID, file.StorageKey, file.OriginalFilename, file.MediaType, file.Extension,
		file.SizeBytes, file.SHA256Checksum, file.Origin, file.CreatedAt)
	return exactlyOne(res, err, "insert")
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id=?`
	return getOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=?`, id)
	return exactlyOne(res, err, "delete")
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files ORDER BY created_at, id`
	return collect(r.db.QueryContext(ctx, query))
}
