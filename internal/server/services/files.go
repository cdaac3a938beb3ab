// Package services implements the file lifecycle and conversion
// orchestration on top of the repositories, raw storage and the converter
// registry.
package services

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/logging"
	"github.com/dmitrijs2005/transmute/internal/registry"
	"github.com/dmitrijs2005/transmute/internal/server/models"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/files"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/relations"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/transmute/internal/storage"
)

const (
	uploadsPrefix   = "uploads"
	convertedPrefix = "converted"
	// sniffLen is how much content is inspected for MIME detection.
	sniffLen = 3072
)

// timeNow is a seam for tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// StorageKey builds <prefix>/YYYY/MM/DD/<id><ext>.
func StorageKey(prefix string, t time.Time, id, ext string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", prefix, t.Year(), int(t.Month()), t.Day(), id, ext)
}

type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	registry    *registry.Registry
	log         logging.Logger
}

func NewFileService(db *sql.DB, rm repomanager.RepositoryManager, store storage.Store, reg *registry.Registry, log logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: rm,
		store:       store,
		registry:    reg,
		log:         log.With("module", "files"),
	}
}

// UploadResult is the stored record plus the formats it can be converted to.
type UploadResult struct {
	File              *models.File
	CompatibleFormats []string
}

// Upload streams r into raw storage, computing size and SHA-256 in the same
// pass, and records the file.
func (s *FileService) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	mt := mimetype.Detect(head)

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mt.Extension()
	}

	id := uuid.NewString()
	if name == "" {
		name = id + ext
	}
	key := StorageKey(uploadsPrefix, timeNow(), id, ext)

	hr := filex.NewHashingReader(br)
	if err := s.store.Put(ctx, key, hr); err != nil {
		return nil, err
	}

	rec := &models.File{
		ID:               id,
		StorageKey:       key,
		OriginalFilename: name,
		MediaType:        mt.String(),
		Extension:        ext,
		SizeBytes:        hr.Size(),
		SHA256Checksum:   hr.Sum(),
		Origin:           common.OriginUpload,
		CreatedAt:        timeNow(),
	}
	if err := s.repomanager.Files(s.db).Create(ctx, rec); err != nil {
		s.discardBlob(ctx, key)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	s.log.Info(ctx, "file uploaded", "id", id, "name", name, "size", rec.SizeBytes, "media_type", rec.MediaType)
	return &UploadResult{File: rec, CompatibleFormats: s.registry.CompatibleFormats(rec.Format())}, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*models.File, error) {
	return s.repomanager.Files(s.db).Get(ctx, id)
}

func (s *FileService) List(ctx context.Context) ([]*models.File, error) {
	return s.repomanager.Files(s.db).List(ctx)
}

// Open returns the record and a reader over its bytes. The caller closes it.
func (s *FileService) Open(ctx context.Context, id string) (*models.File, io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rec, rc, nil
}

// Delete removes a file. Deleting an original also removes its converted
// file, and whatever was converted from that in turn, with the relations;
// deleting a converted file keeps its original. Database changes and blob removals happen in one transaction:
// any storage error rolls the records back and matches common.ErrStorageFailure.
func (s *FileService) Delete(ctx context.Context, id string) error {
	var removed []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := s.repomanager.Files(tx)
		relRepo := s.repomanager.Relations(tx)

		rec, err := fileRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		// everything derived from rec, including further conversions of it
		derived, err := dropDerived(ctx, fileRepo, relRepo, id)
		if err != nil {
			return err
		}

		origID, err := relRepo.GetOriginalID(ctx, id)
		switch {
		case err == nil:
			if err := relRepo.DeleteByOriginal(ctx, origID); err != nil {
				return err
			}
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		if err := fileRepo.Delete(ctx, id); err != nil {
			return err
		}
		blobs := append(derived, rec)

		if err := removeBlobs(ctx, s.store, s.log, blobs); err != nil {
			return err
		}
		for _, b := range blobs {
			removed = append(removed, b.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "file deleted", "id", id, "removed", removed)
	return nil
}

// dropDerived removes the conversion chain hanging off id: every relation
// along it and every derived record. It returns the removed records
// deepest first, the order their blobs must be deleted in.
func dropDerived(ctx context.Context, fileRepo files.Repository, relRepo relations.Repository, id string) ([]*models.File, error) {
	var chain []*models.File
	seen := map[string]bool{id: true}

	for cur := id; ; {
		next, err := relRepo.GetConvertedID(ctx, cur)
		if errors.Is(err, common.ErrorNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := relRepo.DeleteByOriginal(ctx, cur); err != nil {
			return nil, err
		}
		if seen[next] {
			// manually related files may loop back
			break
		}
		seen[next] = true

		rec, err := fileRepo.Get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("converted file %s: %w", next, err)
		}
		chain = append(chain, rec)
		cur = next
	}

	slices.Reverse(chain)
	for _, rec := range chain {
		if err := fileRepo.Delete(ctx, rec.ID); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// removeBlobs checks that storage answers for every blob before removing
// any of them, then removes them in order.
func removeBlobs(ctx context.Context, store storage.Store, log logging.Logger, recs []*models.File) error {
	for _, r := range recs {
		ok, err := store.Exists(ctx, r.StorageKey)
		if err != nil {
			return fmt.Errorf("%w: check %s: %w", common.ErrStorageFailure, r.StorageKey, err)
		}
		if !ok {
			log.Warn(ctx, "blob already missing", "id", r.ID, "key", r.StorageKey)
		}
	}
	for _, r := range recs {
		if err := store.Delete(ctx, r.StorageKey); err != nil {
			if !errors.Is(err, common.ErrStorageFailure) {
				err = fmt.Errorf("%w: %w", common.ErrStorageFailure, err)
			}
			return err
		}
	}
	return nil
}

func (s *FileService) discardBlob(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Error(ctx, "failed to remove orphaned blob", "key", key, "error", err)
	}
}
