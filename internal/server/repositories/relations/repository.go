// Package relations is the ledger pairing original files with their
// converted counterparts. Each original has at most one converted file and
// each converted file exactly one original; the schema enforces both.
package relations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

type Repository interface {
	// Create records originalID -> convertedID. It fails with
	// common.ErrInvalidRelation when either id is empty, both are equal,
	// or either side is already part of a relation.
	Create(ctx context.Context, originalID, convertedID string) error
	GetConvertedID(ctx context.Context, originalID string) (string, error)
	GetOriginalID(ctx context.Context, convertedID string) (string, error)
	// DeleteByOriginal removes the relation row only. Missing rows are not an error.
	DeleteByOriginal(ctx context.Context, originalID string) error
	List(ctx context.Context) ([]models.ConversionRelation, error)
}

func validate(originalID, convertedID string) error {
	o, c := strings.TrimSpace(originalID), strings.TrimSpace(convertedID)
	if o == "" || c == "" {
		return fmt.Errorf("%w: empty file id", common.ErrInvalidRelation)
	}
	if o == c {
		return fmt.Errorf("%w: file %q related to itself", common.ErrInvalidRelation, o)
	}
	return nil
}

func created(res sql.Result, err error, originalID, convertedID string) error {
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown file in %q -> %q", common.ErrInvalidRelation, originalID, convertedID)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: %q or %q is already related", common.ErrInvalidRelation, originalID, convertedID)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func lookup(row *sql.Row) (string, error) {
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("failed to select relation: %w", err)
	}
	return id, nil
}

func collect(rows *sql.Rows, err error) ([]models.ConversionRelation, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to select relations: %w", err)
	}
	defer rows.Close()

	var result []models.ConversionRelation
	for rows.Next() {
		var rel models.ConversionRelation
		if err := rows.Scan(&rel.OriginalFileID, &rel.ConvertedFileID, &rel.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isForeignKeyViolation(err error) bool {
	return isPgForeignKeyViolation(err) || isSQLiteForeignKeyViolation(err)
}
