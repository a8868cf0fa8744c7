package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"storefront/db/clickhouse"
	"storefront/internal/pricing"
)

// =============================================================================
// SYNC COMMAND
// =============================================================================

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch products from the source into the snapshot store and price history",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "product",
				Aliases: []string{"p"},
				Usage:   "Product ID (repeatable, defaults to the whole catalog for the file source)",
			},
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "Region ID (defaults to regions.default)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Value: 4,
				Usage: "Products fetched in parallel",
			},
		},
		Action: runSync,
	}
}

func runSync(c *cli.Context) error {
	ctx := c.Context
	e, err := setup(ctx, c, historyOptional)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.snapshots == nil && e.history == nil {
		return fmt.Errorf("nothing to sync into: configure snapshots.driver or history.addr")
	}
	ids := splitList(c.StringSlice("product"))
	if len(ids) == 0 && e.files != nil {
		ids = e.files.ProductIDs()
	}
	if len(ids) == 0 {
		return fmt.Errorf("--product is required")
	}
	regionID := c.String("region")
	if regionID == "" {
		regionID = e.cfg.Regions.Default
	}
	currency := ""
	if e.history != nil {
		if currency, err = e.currency(ctx, regionID, ""); err != nil {
			return err
		}
	}

	var (
		mu       sync.Mutex
		failed   int
		observed atomic.Int32
	)
	w := c.App.Writer
	now := time.Now()

	// A failed product does not stop the others; the first error is returned at the end.
	var g errgroup.Group
	g.SetLimit(max(c.Int("concurrency"), 1))
	for _, id := range ids {
		g.Go(func() error {
			p, err := e.upstream.GetProduct(ctx, id, regionID)
			if err == nil && e.snapshots != nil {
				err = e.snapshots.PutProduct(ctx, regionID, p, now)
			}
			if err == nil && e.history != nil {
				obs := clickhouse.ObservationsFor(p, regionID, currency, now)
				observed.Add(int32(len(obs)))
				err = e.history.RecordObservations(ctx, obs)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				e.logger.Error().Err(err).Str("product_id", id).Msg("sync failed")
				fmt.Fprintf(w, "❌ %s: %v\n", id, err)
				return fmt.Errorf("%s: %w", id, err)
			}
			fmt.Fprintf(w, "✅ %s (%d variants)\n", id, len(p.Variants))
			return nil
		})
	}
	err = g.Wait()

	fmt.Fprintf(w, "\nSynced %d/%d products, %d price observations\n",
		len(ids)-failed, len(ids), observed.Load())
	return err
}

// =============================================================================
// HISTORY COMMAND
// =============================================================================

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show the recorded price history of a variant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "variant",
				Usage:    "Variant ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "currency",
				Usage:    "Currency code",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "days",
				Value: 30,
				Usage: "Days of history",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runHistory,
	}
}

func runHistory(c *cli.Context) error {
	ctx := c.Context
	if c.Int("days") <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	e, err := setup(ctx, c, historyRequired)
	if err != nil {
		return err
	}
	defer e.Close()

	currency, err := e.currency(ctx, "", c.String("currency"))
	if err != nil {
		return err
	}
	report := &HistoryReport{
		VariantID: c.String("variant"),
		Currency:  currency,
		Since:     time.Now().AddDate(0, 0, -c.Int("days")).UTC(),
	}

	low, found, err := e.history.LowestPrice(ctx, report.VariantID, currency, report.Since)
	if err != nil {
		return err
	}
	if found {
		report.Lowest = pricing.FormatAmount(low, currency)
		if report.Days, err = e.history.DailyLows(ctx, report.VariantID, currency, report.Since); err != nil {
			return err
		}
	}

	if c.String("format") == "json" {
		return outputJSON(c.App.Writer, report)
	}
	return outputHistoryTable(c.App.Writer, report)
}
