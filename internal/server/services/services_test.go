package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/transmute/internal/converters"
	"github.com/dmitrijs2005/transmute/internal/logging"
	"github.com/dmitrijs2005/transmute/internal/registry"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/transmute/internal/storage"
)

// env bundles the services under test over an on-disk SQLite database and
// a local blob store.
type env struct {
	db    *sql.DB
	rm    repomanager.RepositoryManager
	store *storage.LocalStore
	reg   *registry.Registry
	files *FileService
	conv  *ConversionService
}

func newEnv(t *testing.T, cs ...converters.Converter) *env {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, rm, err := repomanager.Open(ctx, repomanager.DriverSQLite, filepath.Join(dir, "transmute.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewLocalStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	reg, err := registry.New(cs...)
	require.NoError(t, err)

	log := logging.NewNop()
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(work, 0o750))

	return &env{
		db:    db,
		rm:    rm,
		store: store,
		reg:   reg,
		files: NewFileService(db, rm, store, reg, log),
		conv:  NewConversionService(db, rm, store, reg, log, ConversionOptions{WorkDir: work, MaxParallel: 2}),
	}
}

func (e *env) withStore(s storage.Store) {
	log := logging.NewNop()
	e.files = NewFileService(e.db, e.rm, s, e.reg, log)
	e.conv = NewConversionService(e.db, e.rm, s, e.reg, log, ConversionOptions{WorkDir: e.conv.workDir, MaxParallel: 2})
}

func (e *env) blobExists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := e.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// flakyStore fails selected operations.
type flakyStore struct {
	storage.Store
	failDelete error
	failPut    error
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	return f.Store.Delete(ctx, key)
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader) error {
	if f.failPut != nil {
		return f.failPut
	}
	return f.Store.Put(ctx, key, r)
}

var errDiskGone = errors.New("disk gone")
