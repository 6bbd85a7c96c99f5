// Package app wires configuration, storage, catalog and the progress service together
// for the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	dbfs "github.com/garnizeh/preptrack/db"
	"github.com/garnizeh/preptrack/internal/catalog"
	"github.com/garnizeh/preptrack/internal/config"
	"github.com/garnizeh/preptrack/internal/db"
	"github.com/garnizeh/preptrack/internal/progress"
	"github.com/garnizeh/preptrack/internal/repository/sqlite"
)

const seedCatalog = "seed/catalog.yaml"

type App struct {
	DB      *db.DB
	Store   *sqlite.SQLiteRepo
	Catalog *catalog.Static
	Service *progress.Service
}

// Open connects to the database, optionally applies migrations, loads the catalog and
// builds the service. The caller owns Close.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetTxAttempts(cfg.Store.TxAttempts)

	if migrate {
		if err := db.Migrate(ctx, conn, dbfs.Migrations); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	cat, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	store := sqlite.New(conn, logger)
	return &App{
		DB:      conn,
		Store:   store,
		Catalog: cat,
		Service: progress.NewService(store, cat, logger),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// LoadCatalog reads the template catalog from path, or from the embedded seed when path
// is empty.
func LoadCatalog(path string) (*catalog.Static, error) {
	var (
		cat *catalog.Static
		err error
	)
	if path == "" {
		cat, err = catalog.LoadFS(dbfs.SeedFiles, seedCatalog)
	} else {
		cat, err = catalog.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// NewLogger returns the JSON logger used by every binary.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
