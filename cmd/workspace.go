package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/dedup"
	"github.com/sells-group/leadgen-cli/internal/handoff"
	"github.com/sells-group/leadgen-cli/internal/ingest"
	"github.com/sells-group/leadgen-cli/internal/lifecycle"
	"github.com/sells-group/leadgen-cli/internal/monitoring"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/review"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/notion"
)

// workspaceEnv holds the store and the services built on it that the
// commands and the server share.
type workspaceEnv struct {
	Store     store.Store
	Repo      *store.Repository
	Gateway   *ingest.Gateway
	Lifecycle *lifecycle.Service
	Handoff   *handoff.Handoff
	Monitor   *monitoring.Collector
}

// Close releases the store.
func (we *workspaceEnv) Close() {
	if we.Store != nil {
		_ = we.Store.Close()
	}
}

// initWorkspace opens and migrates the configured store and wires the
// services. Callers should defer env.Close().
func initWorkspace(ctx context.Context) (*workspaceEnv, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env, err := newWorkspaceEnv(st, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Debug("workspace ready", zap.String("driver", cfg.Store.Driver))
	return env, nil
}

// newWorkspaceEnv wires the services over an open store.
func newWorkspaceEnv(st store.Store, c *config.Config) (*workspaceEnv, error) {
	policy, err := dedup.ParsePolicy(c.Ingest.DedupKeys)
	if err != nil {
		return nil, eris.Wrap(err, "ingest.dedup_keys")
	}

	queue := review.New(
		c.Review.WebhookURL,
		resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs),
		resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs),
	)

	repo := store.NewRepository(st)
	svc := lifecycle.NewService(repo, lifecycle.WithMaxStaleRetries(c.Ingest.MaxStaleRetries))
	gw := ingest.NewGateway(repo,
		ingest.WithPolicy(policy),
		ingest.WithReviewQueue(queue),
		ingest.WithMaxStaleRetries(c.Ingest.MaxStaleRetries),
		ingest.WithPricing(cost.NewCalculator(pricingRates(c.Pricing))),
	)

	return &workspaceEnv{
		Store:     st,
		Repo:      repo,
		Gateway:   gw,
		Lifecycle: svc,
		Handoff:   handoff.New(repo, svc),
		Monitor:   monitoring.NewCollector(repo),
	}, nil
}

// pricingRates converts the configured pricing, falling back to the
// built-in model rates when none are configured.
func pricingRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	if len(p.Models) > 0 {
		rates.Models = make(map[string]cost.ModelRate, len(p.Models))
		for name, m := range p.Models {
			rates.Models[name] = cost.ModelRate{
				Input:         m.Input,
				Output:        m.Output,
				BatchDiscount: m.BatchDiscount,
				CacheWriteMul: m.CacheWriteMul,
				CacheReadMul:  m.CacheReadMul,
			}
		}
	}
	if p.WebSearch > 0 {
		rates.WebSearch = p.WebSearch
	}
	return rates
}

// poolConfig returns nil when no pool setting is given.
func poolConfig(p config.PoolConfig) *store.PoolConfig {
	if p.MaxConns == 0 && p.MinConns == 0 {
		return nil
	}
	return &store.PoolConfig{MaxConns: p.MaxConns, MinConns: p.MinConns}
}

// initStore opens the backend named by store.driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case config.DriverPostgres:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolConfig(cfg.Store.Pool))
	case config.DriverNotion:
		dbs, err := notionDatabases()
		if err != nil {
			return nil, err
		}
		retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
		return store.NewNotion(initNotion(), dbs, store.WithNotionRetry(retry))
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initNotion() notion.Client {
	return notion.NewClient(cfg.Notion.Token,
		notion.WithVersion(cfg.Notion.Version),
		notion.WithRateLimit(cfg.Notion.RateLimit),
	)
}

// notionDatabases returns the configured database ids, falling back to the
// file written by `leadgen setup` for any that are unset.
func notionDatabases() (map[schema.Collection]string, error) {
	dbs := map[schema.Collection]string{
		schema.Sources: cfg.Notion.SourcesDB,
		schema.Batches: cfg.Notion.BatchesDB,
		schema.Leads:   cfg.Notion.LeadsDB,
	}
	if dbs[schema.Sources] != "" && dbs[schema.Batches] != "" && dbs[schema.Leads] != "" {
		return dbs, nil
	}

	if _, err := os.Stat(cfg.Notion.ConfigFile); errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Errorf("notion database ids are not configured and %s does not exist; run `leadgen setup` first", cfg.Notion.ConfigFile)
	}
	saved, err := notion.ReadConfig(cfg.Notion.ConfigFile)
	if err != nil {
		return nil, err
	}
	for c, id := range saved.IDs() {
		if dbs[c] == "" {
			dbs[c] = id
		}
	}
	return dbs, nil
}
