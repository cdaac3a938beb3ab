// Package files persists file metadata records.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

// Repository stores file records. Get and Delete report
// common.ErrorNotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.File, error)
}

const selectColumns = `id, storage_key, original_filename, media_type, extension, size_bytes, sha256_checksum, origin, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var f models.File
	if err := s.Scan(&f.ID, &f.StorageKey, &f.OriginalFilename, &f.MediaType, &f.Extension,
		&f.SizeBytes, &f.SHA256Checksum, &f.Origin, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func getOne(row *sql.Row) (*models.File, error) {
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func collect(rows *sql.Rows, err error) ([]*models.File, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func exactlyOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s file: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
