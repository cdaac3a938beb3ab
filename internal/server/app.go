// Package server wires configuration, persistence, raw storage, the
// converter registry and the services into a single App.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/transmute/internal/converters"
	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/logging"
	"github.com/dmitrijs2005/transmute/internal/registry"
	"github.com/dmitrijs2005/transmute/internal/server/config"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/transmute/internal/server/services"
	"github.com/dmitrijs2005/transmute/internal/storage"
)

// seams for tests
var (
	openDatabase = repomanager.Open
	newS3Store   = func(ctx context.Context, opts storage.S3Options) (storage.Store, error) {
		s, err := storage.NewS3Store(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
)

type App struct {
	Config      *config.Config
	Logger      logging.Logger
	Registry    *registry.Registry
	Store       storage.Store
	Files       *services.FileService
	Conversions *services.ConversionService

	db *sql.DB
}

// NewApp builds every component from c. Logs go to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, c.LogLevel, c.LogFormat)

	dataDir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	workDir, err := filex.EnsureDir(c.ScratchDir())
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}

	dsn := c.DatabaseDSN
	if c.DatabaseDriver == config.DriverSQLite && dsn == "" {
		dsn = c.SQLitePath()
	}

	db, rm, err := openDatabase(ctx, c.DatabaseDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := openStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	reg, err := registry.New(converters.Builtins(converters.Options{FFmpegPath: c.FFmpegPath})...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry init error: %w", err)
	}

	fs := services.NewFileService(db, rm, store, reg, logger)
	cs := services.NewConversionService(db, rm, store, reg, logger, services.ConversionOptions{
		WorkDir:     workDir,
		Timeout:     c.ConversionTimeout,
		MaxParallel: int64(c.MaxParallelConversions),
	})

	logger.Debug(ctx, "app initialized",
		"driver", c.DatabaseDriver, "storage", c.StorageBackend, "data_dir", dataDir, "work_dir", workDir)

	return &App{
		Config:      c,
		Logger:      logger,
		Registry:    reg,
		Store:       store,
		Files:       fs,
		Conversions: cs,
		db:          db,
	}, nil
}

func openStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return newS3Store(ctx, storage.S3Options{
			Region:       c.S3Region,
			Endpoint:     c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			UsePathStyle: c.S3UsePathStyle,
			Prefix:       c.S3Prefix,
		})
	case config.StorageLocal, "":
		ls, err := storage.NewLocalStore(c.BlobDir())
		if err != nil {
			return nil, err
		}
		return ls, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
