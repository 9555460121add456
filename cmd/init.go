package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/internal/extract"
	"github.com/bardavid-law/intake-cli/internal/ingest"
	"github.com/bardavid-law/intake-cli/internal/reconcile"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/internal/store"
	"github.com/bardavid-law/intake-cli/pkg/recordstore"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

// analyzeEnv bundles everything a document analysis needs.
type analyzeEnv struct {
	Loader       *ingest.Loader
	Runner       *extract.Runner
	Orchestrator *extract.Orchestrator
	Registry     *registry.Registry
	Engine       *reconcile.Engine
	Store        store.Store
}

func (e *analyzeEnv) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

func initAnalyzeEnv(ctx context.Context) (*analyzeEnv, error) {
	if err := cfg.Validate("analyze"); err != nil {
		return nil, err
	}
	if err := ingest.CheckRenderer(); err != nil {
		return nil, err
	}

	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	searcher, err := initRecordStore()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	client := vision.RateLimited(vision.NewClient(cfg.Anthropic.Key), cfg.Anthropic.RateLimit)
	runner := extract.NewRunner(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens,
		cfg.Anthropic.Temperature, cfg.Extract.StrategyConcurrency)

	return &analyzeEnv{
		Loader:       ingest.NewLoader(cfg.Ingest),
		Runner:       runner,
		Orchestrator: extract.NewOrchestrator(runner, reg, cfg.Extract),
		Registry:     reg,
		Engine:       reconcile.NewEngine(searcher, reg),
		Store:        st,
	}, nil
}

func loadRegistry() (*registry.Registry, error) {
	if cfg.Extract.RegistryPath != "" {
		return registry.LoadFile(cfg.Extract.RegistryPath)
	}
	return registry.Load()
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initRecordStore() (recordstore.Searcher, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return recordstore.NewSalesforce(sf, recordstore.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}
