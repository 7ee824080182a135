package app

import (
	"context"
	"net/http"

	"github.com/agentstation/assetsync/internal/config"
	"github.com/agentstation/assetsync/internal/transport"
	"github.com/agentstation/assetsync/pkg/assets"
	"github.com/agentstation/assetsync/pkg/categorizer"
	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/devices"
	"github.com/agentstation/assetsync/pkg/sync"
)

// components are the collaborators of one sync run.
type components struct {
	source  *devices.Source
	catalog *assets.Catalog
	engine  *sync.Engine
}

// build wires every component from cfg. metrics may be nil.
func (a *App) build(ctx context.Context, cfg *config.Config, metrics *sync.Metrics) (*components, error) {
	retry := []transport.Option{
		transport.WithMaxAttempts(cfg.MaxRetries),
		transport.WithRetryDelay(cfg.RetryDelay),
		transport.WithRateLimit(cfg.RequestsPerSecond, 1),
	}
	if metrics != nil {
		retry = append(retry, transport.WithObserver(metrics))
	}

	snipeHTTP := &http.Client{Timeout: cfg.HTTPTimeout}
	a.cleanup = append(a.cleanup, snipeHTTP.CloseIdleConnections)
	snipe, err := transport.New(cfg.EndpointURL, append(retry,
		transport.WithHTTPClient(snipeHTTP),
		transport.WithAuth(&transport.BearerAuth{}, cfg.APIToken),
	)...)
	if err != nil {
		return nil, err
	}

	dirHTTP, dirBase := a.directoryClient, a.directoryBaseURL
	if dirHTTP == nil {
		dirHTTP, err = devices.NewDirectoryHTTPClient(cfg.ServiceAccountFile, cfg.DelegatedAdmin)
		if err != nil {
			return nil, err
		}
		dirHTTP.Timeout = cfg.HTTPTimeout
		a.cleanup = append(a.cleanup, dirHTTP.CloseIdleConnections)
	}
	if dirBase == "" {
		dirBase = constants.DirectoryBaseURL
	}
	directory, err := transport.New(dirBase, append(retry, transport.WithHTTPClient(dirHTTP))...)
	if err != nil {
		return nil, err
	}

	catalogOpts := []assets.CatalogOption{}
	if metrics != nil {
		catalogOpts = append(catalogOpts, assets.WithLookupObserver(metrics))
	}
	catalog := assets.NewCatalog(assets.NewClient(snipe), catalogOpts...)

	gen := a.generator
	if gen == nil {
		gemini, err := categorizer.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gen = gemini
	}
	suggester := categorizer.New(gen,
		categorizer.WithCategories(cfg.Categories...),
		categorizer.WithDefault(cfg.DefaultCategory),
	)

	engine, err := sync.NewEngine(catalog, suggester, syncOptions(cfg, metrics)...)
	if err != nil {
		return nil, err
	}

	source := devices.NewSource(directory,
		devices.WithCustomer(cfg.CustomerID),
		devices.WithOrgUnit(cfg.OrgUnit),
	)
	return &components{source: source, catalog: catalog, engine: engine}, nil
}

func syncOptions(cfg *config.Config, metrics *sync.Metrics) []sync.Option {
	return []sync.Option{
		sync.WithDryRun(cfg.DryRun),
		sync.WithAssetTagPrefix(cfg.AssetTagPrefix),
		sync.WithActiveStatus(cfg.ActiveStatus),
		sync.WithDefaultStatusID(cfg.DefaultStatusID),
		sync.WithDefaultModelID(cfg.DefaultModelID),
		sync.WithDefaultCategoryID(cfg.DefaultCategoryID),
		sync.WithFieldsetID(cfg.FieldsetID),
		sync.WithSkipStatuses(cfg.SkipStatuses...),
		sync.WithResolveUsers(cfg.ResolveUsers),
		sync.WithCustomFields(sync.CustomFields{
			MAC:      cfg.Fields.MAC,
			SyncDate: cfg.Fields.SyncDate,
			IP:       cfg.Fields.IP,
			User:     cfg.Fields.User,
			EOL:      cfg.Fields.EOL,
			Storage:  cfg.Fields.Storage,
		}),
		sync.WithMetrics(metrics),
	}
}
