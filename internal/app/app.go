package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"dividend-recon/internal/config"
	"dividend-recon/internal/override"
	"dividend-recon/internal/quote"
	"dividend-recon/internal/service"
	"dividend-recon/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// loadCurated reads the override registry and blacklist. A malformed file
// aborts the command before any database write can happen.
func (a *App) loadCurated() (*override.Registry, *override.Blacklist, error) {
	registry, err := override.LoadRegistry(a.Config.Overrides.RegistryPath)
	if err != nil {
		return nil, nil, err
	}

	blacklist, err := override.LoadBlacklist(a.Config.Overrides.BlacklistPath)
	if err != nil {
		return nil, nil, err
	}

	a.Logger.Debug().
		Int("overrides", registry.Len()).
		Int("registry_version", registry.Version()).
		Int("blacklisted", blacklist.Len()).
		Msg("curated configuration loaded")
	return registry, blacklist, nil
}

func (a *App) newFetcher() (quote.Fetcher, error) {
	if a.Config.Provider.BaseURL == "" {
		return nil, errors.New("provider.base_url not configured")
	}

	return quote.NewClient(quote.Options{
		BaseURL:         a.Config.Provider.BaseURL,
		Timeout:         a.Config.Provider.RequestTimeout,
		UserAgent:       a.Config.Provider.UserAgent,
		MinCallInterval: a.Config.Provider.MinCallInterval,
		SymbolOverrides: a.Config.Provider.SymbolOverrides,
	}, a.Logger), nil
}

func (a *App) newService(store *storage.Store, fetcher quote.Fetcher, out io.Writer) (*service.Service, error) {
	registry, blacklist, err := a.loadCurated()
	if err != nil {
		return nil, err
	}
	return service.New(a.Config, store, store, fetcher, registry, blacklist, out, a.Logger), nil
}

// RecomputeOptions configure one reconciliation run.
type RecomputeOptions struct {
	DryRun     bool
	Force      bool
	Instrument string
}

// RefreshOptions configure one external-quote refresh run.
type RefreshOptions struct {
	DryRun     bool
	Instrument string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting one instrument's payment
// history.
type ExportOptions struct {
	Instrument string
	From       *time.Time
	To         *time.Time
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}
