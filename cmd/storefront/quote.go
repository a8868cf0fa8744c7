package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"

	"storefront/internal/catalog"
	"storefront/internal/pricing"
	"storefront/pkg/errors"
)

func productFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "product",
			Aliases:  []string{"p"},
			Usage:    "Product ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "Region ID (defaults to regions.default)",
		},
	}
}

func (e *env) product(ctx context.Context, c *cli.Context) (*catalog.Product, string, error) {
	regionID := c.String("region")
	if regionID == "" {
		regionID = e.cfg.Regions.Default
	}
	p, err := e.products.GetProduct(ctx, c.String("product"), regionID)
	if err != nil {
		return nil, "", err
	}
	return p, regionID, nil
}

// =============================================================================
// MATRIX COMMAND
// =============================================================================

func matrixCommand() *cli.Command {
	return &cli.Command{
		Name:  "matrix",
		Usage: "Show a product's variant matrix",
		Flags: append(productFlags(),
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Dump the full matrix structure",
			},
		),
		Action: runMatrix,
	}
}

func runMatrix(c *cli.Context) error {
	ctx := c.Context
	e, err := setup(ctx, c, historyOff)
	if err != nil {
		return err
	}
	defer e.Close()

	p, _, err := e.product(ctx, c)
	if err != nil {
		return err
	}
	m := catalog.BuildMatrix(p)
	w := c.App.Writer

	if c.Bool("dump") {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(w, m)
		return nil
	}

	titles := make([]string, len(p.Options))
	for i, o := range p.Options {
		titles[i] = o.Title
	}
	fmt.Fprintf(w, "%s (%s)\n", p.Title, p.ID)
	fmt.Fprintf(w, "Options: %s\n", strings.Join(titles, " x "))
	fmt.Fprintf(w, "Combinations: %d, resolvable: %d\n\n", len(m.Combinations()), m.Len())
	for _, combo := range m.Combinations() {
		key := catalog.MatrixKey(combo)
		v, ok := m.Lookup(key)
		switch {
		case !ok:
			fmt.Fprintf(w, "  %-30s  -\n", key)
		case catalog.InStock(v):
			fmt.Fprintf(w, "  %-30s  %-20s  in stock\n", key, v.ID)
		default:
			fmt.Fprintf(w, "  %-30s  %-20s  out of stock\n", key, v.ID)
		}
	}
	return nil
}

// =============================================================================
// QUOTE COMMAND
// =============================================================================

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Resolve prices and option availability for a product",
		Flags: append(productFlags(),
			&cli.StringFlag{
				Name:  "currency",
				Usage: "Currency code (defaults to the region's)",
			},
			&cli.StringSliceFlag{
				Name:    "option",
				Aliases: []string{"o"},
				Usage:   "Selected option as id=value or title=value (repeatable)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
		),
		Action: runQuote,
	}
}

// Quote is a product's resolved prices under a partial or complete option selection.
type Quote struct {
	ProductID string              `json:"product_id"`
	Title     string              `json:"title"`
	Currency  string              `json:"currency_code"`
	Selection map[string]string   `json:"selection,omitempty"`
	Selected  *QuoteLine          `json:"selected,omitempty"`
	Available map[string][]string `json:"available"`
	Variants  []QuoteLine         `json:"variants"`
	From      string              `json:"from,omitempty"`
	To        string              `json:"to,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`

	optionOrder []string
}

// QuoteLine is one variant's display price.
type QuoteLine struct {
	VariantID     string `json:"variant_id"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	Original      string `json:"original_price"`
	OnSale        bool   `json:"on_sale"`
	PercentageOff int    `json:"percentage_off,omitempty"`
	InStock       bool   `json:"in_stock"`
}

func runQuote(c *cli.Context) error {
	ctx := c.Context
	e, err := setup(ctx, c, historyOff)
	if err != nil {
		return err
	}
	defer e.Close()

	p, regionID, err := e.product(ctx, c)
	if err != nil {
		return err
	}
	currency, err := e.currency(ctx, regionID, c.String("currency"))
	if err != nil {
		return err
	}
	selected, err := parseSelection(p, c.StringSlice("option"))
	if err != nil {
		return err
	}
	q, err := buildQuote(p, currency, selected)
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		return outputQuoteJSON(c.App.Writer, q)
	case "markdown":
		return outputQuoteMarkdown(c.App.Writer, q)
	default:
		return outputQuoteTable(c.App.Writer, q)
	}
}

// parseSelection turns key=value pairs into a selection keyed by option ID. Keys may be option
// IDs or, case-insensitively, option titles.
func parseSelection(p *catalog.Product, pairs []string) (map[string]string, error) {
	selected := make(map[string]string)
	for _, pair := range splitList(pairs) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", pair)
		}
		opt, found := p.Option(key)
		if !found {
			opt, found = p.OptionByTitle(key)
		}
		if !found {
			return nil, errors.NewInvalidSelectionError(p.ID, "unknown option "+key)
		}
		selected[opt.ID] = value
	}
	return selected, nil
}

func buildQuote(p *catalog.Product, currency string, selected map[string]string) (*Quote, error) {
	resolved := pricing.ResolveProduct(p, currency)
	q := &Quote{
		ProductID: p.ID,
		Title:     p.Title,
		Currency:  currency,
		Selection: selected,
		Available: make(map[string][]string, len(p.Options)),
		Warnings:  resolved.Warnings,
	}

	for _, o := range p.Options {
		q.optionOrder = append(q.optionOrder, o.Title)
		for _, v := range catalog.FilteredOptionValues(p, selected, o.ID) {
			q.Available[o.Title] = append(q.Available[o.Title], v.Value)
		}
	}

	for _, vp := range resolved.Variants {
		v, _ := p.Variant(vp.VariantID)
		q.Variants = append(q.Variants, quoteLine(v, vp))
	}
	if resolved.Range != nil {
		q.From = pricing.FormatAmount(resolved.Range.Min.Effective(), currency)
		q.To = pricing.FormatAmount(resolved.Range.Max.Effective(), currency)
	}

	if len(selected) > 0 {
		m := catalog.BuildMatrix(p)
		if _, complete := m.OrderedSelection(selected); complete {
			v, ok := m.SelectByOption(selected)
			if !ok {
				return nil, errors.NewInvalidSelectionError(p.ID, "no variant matches the selected options")
			}
			line := quoteLine(v, pricing.GetVariantPrices(v, currency))
			q.Selected = &line
		}
	}
	return q, nil
}

func quoteLine(v *catalog.Variant, vp pricing.VariantPrice) QuoteLine {
	line := QuoteLine{
		VariantID:     vp.VariantID,
		Price:         pricing.FormatAmount(vp.Effective(), vp.CurrencyCode),
		Original:      pricing.FormatAmount(vp.Original, vp.CurrencyCode),
		OnSale:        vp.OnSale,
		PercentageOff: vp.PercentageOff,
	}
	if v != nil {
		line.Title = v.Title
		line.InStock = catalog.InStock(v)
	}
	return line
}
