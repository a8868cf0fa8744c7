package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"storefront/db/clickhouse"
	"storefront/db/sqlstore"
	"storefront/internal/commerce"
	"storefront/internal/config"
	"storefront/internal/logging"
)

// env is the wired set of services a command runs against.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger

	products  commerce.ProductSource
	upstream  commerce.ProductSource
	regions   *commerce.RegionDirectory
	files     *commerce.FileSource
	snapshots *sqlstore.Store
	history   *clickhouse.Store

	closers []func() error
}

type historyMode int

const (
	historyOff historyMode = iota
	historyOptional
	historyRequired
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-pretty") {
		cfg.Logging.Pretty = c.Bool("log-pretty")
	}
	if c.IsSet("source") {
		cfg.Source.Kind = c.String("source")
	}
	if c.IsSet("catalog-dir") {
		cfg.Source.Dir = c.String("catalog-dir")
	}
	if c.IsSet("backend-url") {
		cfg.Commerce.BaseURL = c.String("backend-url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setup(ctx context.Context, c *cli.Context, history historyMode) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logging.New(cfg.Logging.Level, cfg.Logging.Pretty, c.App.ErrWriter)}

	var lister commerce.RegionLister
	switch cfg.Source.Kind {
	case "file":
		fs, err := commerce.NewFileSource(cfg.Source.Dir, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		e.files, e.products, lister = fs, fs, fs
	default:
		client := commerce.NewClient(cfg.Commerce.BaseURL, cfg.Commerce.PublishableKey,
			cfg.Commerce.Retries, cfg.Commerce.Timeout, e.logger)
		e.products, lister = client, client
	}
	e.upstream = e.products
	e.regions = commerce.NewRegionDirectory(lister, cfg.Regions.TTL, cfg.Regions.MaxEntries)

	if cfg.Snapshots.Driver != "" {
		store, err := sqlstore.Open(cfg.Snapshots.Driver, cfg.Snapshots.DSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			e.Close()
			return nil, err
		}
		e.snapshots = store
		e.products = sqlstore.NewCachedSource(e.products, store, cfg.Snapshots.TTL, e.logger)
	}

	if history == historyRequired || (history == historyOptional && cfg.History.Addr != "") {
		if err := e.openHistory(ctx); err != nil {
			if history == historyRequired {
				e.Close()
				return nil, err
			}
			e.logger.Warn().Err(err).Msg("price history disabled")
		}
	}
	return e, nil
}

func (e *env) openHistory(ctx context.Context) error {
	if e.cfg.History.Addr == "" {
		return fmt.Errorf("price history needs a ClickHouse address (history.addr or CLICKHOUSE_ADDR)")
	}
	store, err := clickhouse.NewStore(&clickhouse.Config{
		Addr:     e.cfg.History.Addr,
		Database: e.cfg.History.Database,
		Username: e.cfg.History.Username,
		Password: e.cfg.History.Password,
	})
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return err
	}
	e.history = store
	e.closers = append(e.closers, store.Close)
	return nil
}

// Close releases database connections.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn().Err(err).Msg("close")
		}
	}
	e.closers = nil
}

// currency resolves the display currency: an explicit code wins, otherwise the region's.
func (e *env) currency(ctx context.Context, regionID, currency string) (string, error) {
	if currency != "" {
		return strings.ToLower(currency), nil
	}
	if regionID == "" {
		regionID = e.cfg.Regions.Default
	}
	if regionID == "" {
		return "", fmt.Errorf("either --region or --currency is required")
	}
	r, err := e.regions.ByID(ctx, regionID)
	if err != nil {
		return "", err
	}
	return strings.ToLower(r.CurrencyCode), nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
