package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"storefront/api"
	"storefront/internal/catalog"
	"storefront/internal/media"
)

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the storefront HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (overrides server.addr)",
			},
			&cli.StringSliceFlag{
				Name:  "cors-origins",
				Usage: "Allowed CORS origins",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the catalog directory on change (file source only)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, c, historyOptional)
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	images, err := media.New(cfg.Media.CloudinaryURL, cfg.Media.Transformation)
	if err != nil {
		return err
	}
	matrices := catalog.NewMatrixCache(cfg.Cache.MatrixEntries)

	deps := api.Deps{
		Products: e.products,
		Regions:  e.regions,
		Matrices: matrices,
		Images:   images,
		Pingers:  map[string]api.Pinger{},
		Logger:   e.logger,
	}
	if e.snapshots != nil {
		deps.Pingers["snapshots"] = e.snapshots
	}
	if e.history != nil {
		deps.History = e.history
		deps.Pingers["clickhouse"] = e.history
	}

	scfg := api.DefaultConfig()
	scfg.Addr = cfg.Server.Addr
	scfg.DefaultRegion = cfg.Regions.Default
	if cfg.Server.ReadTimeout > 0 {
		scfg.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		scfg.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.RequestTimeout > 0 {
		scfg.RequestTimeout = cfg.Server.RequestTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		scfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	if c.IsSet("addr") {
		scfg.Addr = c.String("addr")
	}
	if origins := splitList(c.StringSlice("cors-origins")); len(origins) > 0 {
		scfg.CORSOrigins = origins
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.Bool("watch") {
		if e.files == nil {
			return fmt.Errorf("--watch requires the file source")
		}
		e.files.OnReload(func(ids []string) {
			for _, id := range ids {
				matrices.Invalidate(id)
			}
			e.regions.Purge()
			e.logger.Info().Int("products", len(ids)).Msg("catalog reloaded")
		})
		g.Go(func() error { return e.files.Watch(gctx) })
	}

	srv := api.NewServer(deps, scfg)
	g.Go(func() error { return srv.Run(gctx) })

	e.logger.Info().
		Str("source", cfg.Source.Kind).
		Bool("snapshots", e.snapshots != nil).
		Bool("history", e.history != nil).
		Msg("storefront starting")
	return g.Wait()
}
