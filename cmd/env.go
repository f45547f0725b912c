package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/store"
)

// enrichEnv holds the store, the batch runner and the metrics shared by the
// enrich and serve commands.
type enrichEnv struct {
	Store   store.LeadStore
	Runner  *enrich.Runner
	Metrics *enrich.Metrics
}

// Close releases the store connection.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnricher validates credentials, opens and migrates the store and
// builds the batch runner. Callers should defer env.Close().
func initEnricher(ctx context.Context, c *config.Config, opts ...enrich.Option) (*enrichEnv, error) {
	if c == nil {
		return nil, &config.ConfigurationError{Key: "config", Reason: "not loaded"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	metrics := enrich.NewMetrics()
	e, err := enrich.New(c, append([]enrich.Option{enrich.WithMetrics(metrics)}, opts...)...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if c.Search.Key == "" {
		zap.L().Warn("LEADS_SEARCH_KEY not set, search, directory and network layers disabled")
	}
	if c.Places.Key == "" {
		zap.L().Warn("LEADS_PLACES_KEY not set, places lookup and competitors disabled")
	}

	return &enrichEnv{
		Store:   st,
		Runner:  enrich.NewRunner(e, st, c.Batch),
		Metrics: metrics,
	}, nil
}

// openStore connects to the configured backend and applies migrations.
func openStore(ctx context.Context, c *config.Config) (store.LeadStore, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
