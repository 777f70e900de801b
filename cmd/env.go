package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/cost"
	"github.com/sells-group/leadgen/internal/distlock"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/scoring"
	"github.com/sells-group/leadgen/internal/search"
	"github.com/sells-group/leadgen/internal/stats"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/pkg/enrichment"
	"github.com/sells-group/leadgen/pkg/geocode"
	"github.com/sells-group/leadgen/pkg/google"
	sfpkg "github.com/sells-group/leadgen/pkg/salesforce"
)

// appEnv holds the initialized store, clients and services shared by the
// serve, hunt and autopilot commands.
type appEnv struct {
	Store     leads.Store
	Search    *search.Adapter
	Worker    *enrich.Worker
	Leads     *leads.Service
	Campaigns *campaign.Service
	AutoPilot *autopilot.Orchestrator
	Stats     *stats.Aggregator

	guard *distlock.Redis // nil when the in-process guard is used
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.guard != nil {
		_ = e.guard.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens and migrates the store and builds
// every service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
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
	env := &appEnv{Store: st}

	weights := scoring.DefaultWeights()
	if cfg.Scoring.WeightsFile != "" {
		weights, err = scoring.LoadWeights(cfg.Scoring.WeightsFile)
		if err != nil {
			env.Close()
			return nil, err
		}
	}
	engine, err := scoring.NewEngine(weights)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Search = initSearch()
	env.Worker = enrich.NewWorker(
		enrichment.NewClient(cfg.Enrichment.BaseURL, cfg.Enrichment.Key,
			enrichment.WithTimeout(time.Duration(cfg.Enrichment.TimeoutSecs)*time.Second),
		),
		engine,
		enrich.WithLimiter(enrich.NewRateLimiter(time.Duration(cfg.Enrichment.DelayMs)*time.Millisecond)),
		enrich.WithBreaker(resilience.NewCircuitBreaker(resilience.FromEnrichmentConfig(cfg.Enrichment))),
	)

	leadOpts := []leads.Option{
		leads.WithDefaultScore(cfg.Scoring.DefaultScore),
		leads.WithRetry(resilience.FromRetryConfig(cfg.Retry)),
	}
	if cfg.Salesforce.Enabled {
		sf, err := initSalesforce()
		if err != nil {
			env.Close()
			return nil, err
		}
		leadOpts = append(leadOpts, leads.WithSalesforce(sf))
		zap.L().Info("salesforce lead mirror enabled")
	}
	env.Leads = leads.NewService(st, leadOpts...)

	dispatcher, err := campaign.NewDispatcher(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Campaigns = campaign.NewService(dispatcher, st)

	guard, err := initGuard(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	if rg, ok := guard.(*distlock.Redis); ok {
		env.guard = rg
	}

	env.AutoPilot = autopilot.New(env.Search, env.Worker, env.Leads, st,
		autopilot.WithGuard(guard),
		autopilot.WithCampaigner(env.Campaigns),
		autopilot.WithCalculator(cost.NewCalculator(cost.FromConfig(cfg.Pricing))),
		autopilot.WithLimits(cfg.AutoPilot),
	)
	env.Stats = stats.New(st)

	return env, nil
}

func initStore(ctx context.Context) (leads.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSearch() *search.Adapter {
	places := google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
	return search.New(places,
		search.WithGeocoder(geocode.NewClient(cfg.Google.Key, geocode.WithBaseURL(cfg.Google.GeocodeURL))),
		search.WithMaxResults(cfg.Google.MaxResults),
		search.WithLanguage(cfg.Google.Language),
	)
}

// initGuard returns the Redis guard when redis.url is set, otherwise the
// in-process guard.
func initGuard(ctx context.Context) (distlock.Guard, error) {
	if cfg.Redis.URL == "" {
		return distlock.NewLocal(), nil
	}
	ttl := time.Duration(cfg.AutoPilot.LockTTLSecs) * time.Second
	g, err := distlock.NewRedisFromURL(ctx, cfg.Redis.URL, ttl)
	if err != nil {
		return nil, err
	}
	zap.L().Info("autopilot guard using redis", zap.Duration("ttl", ttl))
	return g, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (LEADGEN_SALESFORCE_CLIENT_ID)")
	}

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

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}
