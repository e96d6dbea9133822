package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/courtneys-list/vendors/internal/db"
	"github.com/courtneys-list/vendors/internal/reconcile"
	"github.com/courtneys-list/vendors/internal/store"
	"github.com/courtneys-list/vendors/internal/survey"
	"github.com/courtneys-list/vendors/pkg/google"
)

// appEnv wires the services every command shares.
type appEnv struct {
	Store    store.Store
	Matcher  *reconcile.Matcher
	Approver *reconcile.Approver
	Bulk     *reconcile.BulkApprover
	Importer *survey.Importer
	Places   google.Client // nil when google.api_key is unset
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "clist.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPlaces() google.Client {
	if cfg.Google.APIKey == "" {
		return nil
	}
	return google.NewClient(cfg.Google.APIKey,
		google.WithBaseURL(cfg.Google.BaseURL),
		google.WithRateLimit(cfg.Google.RatePerSec),
	)
}

func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	m := reconcile.NewMatcher(st, reconcile.MatcherConfig{
		FuzzyThreshold:  cfg.Match.FuzzyThreshold,
		CacheTTL:        time.Duration(cfg.Match.CacheTTLSecs) * time.Second,
		CacheMaxEntries: cfg.Match.CacheMaxEntries,
	})
	a := reconcile.NewApprover(st, m)

	return &appEnv{
		Store:    st,
		Matcher:  m,
		Approver: a,
		Bulk:     reconcile.NewBulkApprover(m, a, cfg.Reconcile.BulkConcurrency),
		Importer: survey.NewImporter(st, survey.WithOnChange(m.Invalidate)),
		Places:   initPlaces(),
	}, nil
}

func (e *appEnv) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}
