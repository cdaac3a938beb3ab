package services

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/converters"
	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/formats"
	"github.com/dmitrijs2005/transmute/internal/logging"
	"github.com/dmitrijs2005/transmute/internal/registry"
	"github.com/dmitrijs2005/transmute/internal/server/models"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/transmute/internal/storage"
)

// ConversionOptions bounds conversion execution.
type ConversionOptions struct {
	// WorkDir holds per-job scratch directories; empty means os.TempDir().
	WorkDir string
	// Timeout caps a single converter run; zero disables it.
	Timeout time.Duration
	// MaxParallel caps concurrently running converters; values < 1 mean 1.
	MaxParallel int64
}

type ConversionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	registry    *registry.Registry
	log         logging.Logger

	workDir string
	timeout time.Duration
	sem     *semaphore.Weighted
	flight  singleflight.Group
}

func NewConversionService(db *sql.DB, rm repomanager.RepositoryManager, store storage.Store, reg *registry.Registry, log logging.Logger, opts ConversionOptions) *ConversionService {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	return &ConversionService{
		db:          db,
		repomanager: rm,
		store:       store,
		registry:    reg,
		log:         log.With("module", "conversions"),
		workDir:     opts.WorkDir,
		timeout:     opts.Timeout,
		sem:         semaphore.NewWeighted(opts.MaxParallel),
	}
}

// ConversionResult describes a finished conversion.
type ConversionResult struct {
	Original  *models.File
	Converted *models.File
	Converter string
	// ReplacedID is the converted file this conversion superseded, if any.
	ReplacedID string
}

// ResolveConverter returns the converter for input -> output or an error
// matching common.ErrUnsupportedConversion.
func (s *ConversionService) ResolveConverter(input, output string) (converters.Converter, error) {
	in, out := formats.Normalize(input), formats.Normalize(output)
	if !formats.IsStructurallyConvertible(in, out) {
		return nil, &common.UnsupportedConversionError{Input: in, Output: out, Reason: "formats are structurally incompatible"}
	}
	c, ok := s.registry.Resolve(in, out)
	if !ok {
		return nil, &common.UnsupportedConversionError{Input: in, Output: out, Reason: "no registered converter"}
	}
	return c, nil
}

// Execute runs c synchronously on the calling goroutine, waiting for a free
// slot and enforcing the configured timeout.
func (s *ConversionService) Execute(ctx context.Context, c converters.Converter, job converters.Job) ([]string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	paths, err := c.Convert(ctx, job)
	if err != nil {
		s.log.Warn(ctx, "conversion failed", "converter", c.Name(),
			"input", job.InputFormat, "output", job.OutputFormat, "elapsed", time.Since(start), "error", err)
		return nil, err
	}
	s.log.Debug(ctx, "conversion finished", "converter", c.Name(), "artifacts", len(paths), "elapsed", time.Since(start))
	return paths, nil
}

// Convert converts the stored file fileID to outputFormat, stores the
// result and relates it to the original, replacing an earlier conversion.
// Identical concurrent requests share one execution. The shared work is
// detached from any single caller's cancellation; a caller that gives up
// gets its own ctx error while the others still receive the result.
func (s *ConversionService) Convert(ctx context.Context, fileID, outputFormat, quality string) (*ConversionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := fileID + "\x00" + formats.Normalize(outputFormat) + "\x00" + quality
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.convert(context.WithoutCancel(ctx), fileID, outputFormat, quality)
	})

	select {
	case <-ctx.Done():
		s.log.Debug(ctx, "conversion abandoned by caller", "id", fileID, "output", outputFormat)
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.log.Debug(ctx, "conversion shared", "id", fileID, "output", outputFormat)
		}
		return r.Val.(*ConversionResult), nil
	}
}

func (s *ConversionService) convert(ctx context.Context, fileID, outputFormat, quality string) (*ConversionResult, error) {
	orig, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	in, out := orig.Format(), formats.Normalize(outputFormat)
	c, err := s.ResolveConverter(in, out)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(s.workDir, common.AppName+"-job-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.log.Warn(ctx, "failed to remove scratch dir", "dir", scratch, "error", err)
		}
	}()

	stem := safeStem(orig)
	inputPath := filepath.Join(scratch, stem+orig.Extension)
	if err := s.store.Fetch(ctx, orig.StorageKey, inputPath); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrInputNotFound, orig.StorageKey)
		}
		return nil, err
	}

	paths, err := s.Execute(ctx, c, converters.Job{
		InputPath:    inputPath,
		OutputDir:    filepath.Join(scratch, "out"),
		InputFormat:  in,
		OutputFormat: out,
		Quality:      quality,
	})
	if err != nil {
		return nil, err
	}

	artifact, err := bundle(paths, filepath.Join(scratch, stem+".zip"))
	if err != nil {
		return nil, &common.ConversionError{Converter: c.Name(), Err: err}
	}

	rec, err := s.storeArtifact(ctx, artifact)
	if err != nil {
		return nil, err
	}

	var replaced []*models.File
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := s.repomanager.Files(tx)
		relRepo := s.repomanager.Relations(tx)

		// the previous conversion goes, together with anything converted from it
		var err error
		if replaced, err = dropDerived(ctx, fileRepo, relRepo, orig.ID); err != nil {
			return err
		}

		if err := fileRepo.Create(ctx, rec); err != nil {
			return fmt.Errorf("record converted file: %w", err)
		}
		if err := relRepo.Create(ctx, orig.ID, rec.ID); err != nil {
			return err
		}
		if len(replaced) > 0 {
			return removeBlobs(ctx, s.store, s.log, replaced)
		}
		return nil
	})
	if err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), rec.StorageKey); derr != nil {
			s.log.Error(ctx, "failed to remove orphaned blob", "key", rec.StorageKey, "error", derr)
		}
		return nil, err
	}

	res := &ConversionResult{Original: orig, Converted: rec, Converter: c.Name()}
	if n := len(replaced); n > 0 {
		// deepest first, so the direct predecessor is last
		res.ReplacedID = replaced[n-1].ID
	}
	s.log.Info(ctx, "file converted", "original", orig.ID, "converted", rec.ID,
		"converter", c.Name(), "output", out, "replaced", res.ReplacedID)
	return res, nil
}

// storeArtifact uploads a converter output and builds its record.
func (s *ConversionService) storeArtifact(ctx context.Context, path string) (*models.File, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect media type: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInputNotFound, err)
	}
	defer f.Close()

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(path))
	key := StorageKey(convertedPrefix, timeNow(), id, ext)

	hr := filex.NewHashingReader(f)
	if err := s.store.Put(ctx, key, hr); err != nil {
		return nil, err
	}

	return &models.File{
		ID:               id,
		StorageKey:       key,
		OriginalFilename: filepath.Base(path),
		MediaType:        mt.String(),
		Extension:        ext,
		SizeBytes:        hr.Size(),
		SHA256Checksum:   hr.Sum(),
		Origin:           common.OriginConverted,
		CreatedAt:        timeNow(),
	}, nil
}

// bundle returns the single artifact as is, or zips several into dst.
func bundle(paths []string, dst string) (string, error) {
	switch len(paths) {
	case 0:
		return "", errors.New("converter produced no output")
	case 1:
		return paths[0], nil
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	zw := zip.NewWriter(out)
	for _, p := range paths {
		if err := addToZip(zw, p); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

func addToZip(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// safeStem derives a filesystem-safe base name for scratch files.
func safeStem(f *models.File) string {
	stem := strings.TrimSpace(unsafeName.ReplaceAllString(filex.Stem(f.OriginalFilename), "_"))
	stem = strings.Trim(stem, ".")
	if stem == "" {
		return f.ID
	}
	return stem
}

// RelateFiles records originalID -> convertedID.
func (s *ConversionService) RelateFiles(ctx context.Context, originalID, convertedID string) error {
	return s.repomanager.Relations(s.db).Create(ctx, originalID, convertedID)
}

// RelatedConvertedID returns the converted file of originalID or common.ErrorNotFound.
func (s *ConversionService) RelatedConvertedID(ctx context.Context, originalID string) (string, error) {
	return s.repomanager.Relations(s.db).GetConvertedID(ctx, originalID)
}

// RelatedOriginalID returns the original of convertedID or common.ErrorNotFound.
func (s *ConversionService) RelatedOriginalID(ctx context.Context, convertedID string) (string, error) {
	return s.repomanager.Relations(s.db).GetOriginalID(ctx, convertedID)
}

// Unrelate removes the relation of originalID, leaving both files in place.
func (s *ConversionService) Unrelate(ctx context.Context, originalID string) error {
	return s.repomanager.Relations(s.db).DeleteByOriginal(ctx, originalID)
}

// ListConversions pairs every related original with its converted file.
func (s *ConversionService) ListConversions(ctx context.Context) ([]models.Conversion, error) {
	rels, err := s.repomanager.Relations(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.repomanager.Files(s.db).List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.File, len(all))
	for _, f := range all {
		byID[f.ID] = f
	}

	out := make([]models.Conversion, 0, len(rels))
	for _, r := range rels {
		orig, conv := byID[r.OriginalFileID], byID[r.ConvertedFileID]
		if orig == nil || conv == nil {
			s.log.Warn(ctx, "relation references a missing file", "original", r.OriginalFileID, "converted", r.ConvertedFileID)
			continue
		}
		out = append(out, models.Conversion{Original: orig, Converted: conv})
	}
	return out, nil
}
