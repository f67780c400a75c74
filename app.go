package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/config"
	"github.com/iedon/cms-render-go/site"
	"github.com/iedon/cms-render-go/store"
	"github.com/iedon/cms-render-go/templatex"
)

// app is the wired service plus the resources it must release.
type app struct {
	cfg       *config.Config
	svc       *site.Service
	templates *templatex.Engine
	closers   []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	contentStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	placeholderCache, err := a.openCache()
	if err != nil {
		return nil, err
	}
	if a.templates, err = templatex.Load(cfg.TemplateDir); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	if a.svc, err = site.NewService(cfg, contentStore, placeholderCache, a.templates, logger); err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func (a *app) openStore(ctx context.Context) (site.Store, error) {
	var seed *store.Seed
	if a.cfg.Store.Seed != "" {
		var err error
		if seed, err = store.LoadSeed(a.cfg.Store.Seed); err != nil {
			return nil, err
		}
	}

	switch a.cfg.Store.Driver {
	case "sqlite":
		db, err := store.OpenSQLite(a.cfg.Store.Path, a.cfg.SiteID, a.cfg.FallbackLanguages)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if seed != nil {
			if err := db.Import(ctx, seed); err != nil {
				return nil, fmt.Errorf("import seed: %w", err)
			}
		}
		return db, nil
	default:
		if seed.SiteID != a.cfg.SiteID {
			return nil, fmt.Errorf("seed describes site %d, configured site is %d", seed.SiteID, a.cfg.SiteID)
		}
		return store.NewMemory(seed, a.cfg.FallbackLanguages), nil
	}
}

// openCache returns a nil store when the placeholder cache is disabled.
func (a *app) openCache() (cache.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	switch a.cfg.Cache.Backend {
	case "badger":
		db, err := cache.OpenBadger(a.cfg.Cache.Dir, a.cfg.CacheTTL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	default:
		return cache.NewMemory(a.cfg.CacheTTL(), a.cfg.CacheCleanup()), nil
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
