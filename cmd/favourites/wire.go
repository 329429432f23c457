package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jeanpaul/favourites/internal/config"
	"github.com/jeanpaul/favourites/internal/contact"
	"github.com/jeanpaul/favourites/internal/enrich"
	"github.com/jeanpaul/favourites/internal/favourites"
	"github.com/jeanpaul/favourites/internal/persist"
	"github.com/jeanpaul/favourites/internal/store"
)

// app is everything a command needs, already started.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.Store
	svc     *favourites.Service
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	adapter, closeAdapter, err := openAdapter(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	st := store.New(adapter, newEnricher(cfg.Enrichment),
		store.WithLogger(logger),
		store.WithKey(cfg.Storage.Key),
		store.WithEnrichTimeout(cfg.Enrichment.Timeout),
		store.WithWriteTimeout(cfg.Storage.WriteTimeout),
	)
	svc := favourites.New(st, contact.NewLoader(newContactSource(cfg.Contacts), logger), logger)

	a := &app{cfg: cfg, log: logger, store: st, svc: svc, closers: []func() error{closeAdapter}}
	if err := svc.Start(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close drains pending writes before releasing the adapter.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Storage.WriteTimeout)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		a.log.Error("favourites: close store", "err", err)
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Error("favourites: close", "err", err)
		}
	}
}

func openAdapter(cfg config.StorageConfig) (persist.Adapter, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendMemory:
		return persist.NewMemory(), noop, nil
	case config.BackendSQLite:
		db, err := persist.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return persist.NewFile(cfg.Path), noop, nil
	}
}

func newEnricher(cfg config.EnrichmentConfig) enrich.Service {
	client := enrich.NewClient(cfg.BaseURL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout})
	return enrich.WithRetry(client, cfg.MaxRetries)
}

func newContactSource(cfg config.ContactsConfig) contact.Source {
	if cfg.Access == config.AccessDenied {
		return contact.Denied{}
	}
	return contact.NewFileSource(cfg.Paths...)
}

// newLogger writes to stderr, or to a log file when the terminal belongs to
// the UI.
func newLogger(cfg config.LogConfig, toFile bool) (*slog.Logger, func() error, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if toFile {
		path := cfg.File
		if path == "" {
			path = filepath.Join(config.Dir(), "favourites.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = f.Close
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}
