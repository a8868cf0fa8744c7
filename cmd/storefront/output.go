package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"storefront/db/clickhouse"
	"storefront/internal/pricing"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputQuoteJSON(w io.Writer, q *Quote) error {
	return outputJSON(w, q)
}

func outputQuoteTable(w io.Writer, q *Quote) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-59s ║\n", truncate(q.Title+" ("+q.ProductID+")", 59))
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Currency:              %-37s ║\n", strings.ToUpper(q.Currency))
	if q.From != "" {
		price := q.From
		if q.To != q.From {
			price = q.From + " - " + q.To
		}
		fmt.Fprintf(w, "║  Price:                 %-37s ║\n", price)
	}
	if q.Selected != nil {
		fmt.Fprintf(w, "║  Selected:              %-37s ║\n", truncate(q.Selected.VariantID, 37))
		fmt.Fprintf(w, "║  Selected price:        %-37s ║\n", selectedPrice(q.Selected))
		fmt.Fprintf(w, "║  Availability:          %-37s ║\n", stockLabel(q.Selected.InStock))
	}
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(w, "║  AVAILABLE OPTIONS                                            ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	for _, title := range q.optionOrder {
		values := strings.Join(q.Available[title], ", ")
		if values == "" {
			values = "-"
		}
		fmt.Fprintf(w, "║  %-20s  %-37s ║\n", truncate(title, 20), truncate(values, 37))
	}
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(w, "║  VARIANTS                                                     ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	for _, line := range q.Variants {
		fmt.Fprintf(w, "║  %-24s  %-14s  %-17s ║\n",
			truncate(line.VariantID, 24), truncate(line.Price, 14), stockLabel(line.InStock))
	}
	for _, warning := range q.Warnings {
		fmt.Fprintf(w, "║  ⚠️  %-56s ║\n", truncate(warning, 56))
	}
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func outputQuoteMarkdown(w io.Writer, q *Quote) error {
	fmt.Fprintf(w, "## %s\n\n", q.Title)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Product** | `%s` |\n", q.ProductID)
	fmt.Fprintf(w, "| **Currency** | %s |\n", strings.ToUpper(q.Currency))
	if q.From != "" {
		fmt.Fprintf(w, "| **From** | %s |\n", q.From)
		fmt.Fprintf(w, "| **To** | %s |\n", q.To)
	}
	if q.Selected != nil {
		fmt.Fprintf(w, "| **Selected** | `%s` %s |\n", q.Selected.VariantID, selectedPrice(q.Selected))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Variants")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Variant | Title | Price | Original | Stock |")
	fmt.Fprintln(w, "|---------|-------|-------|----------|-------|")
	for _, line := range q.Variants {
		fmt.Fprintf(w, "| `%s` | %s | %s | %s | %s |\n",
			line.VariantID, line.Title, line.Price, line.Original, stockLabel(line.InStock))
	}

	if len(q.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ⚠️ Warnings")
		fmt.Fprintln(w)
		for _, warning := range q.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
	}
	return nil
}

// HistoryReport is the price history of one variant.
type HistoryReport struct {
	VariantID string                `json:"variant_id"`
	Currency  string                `json:"currency_code"`
	Since     time.Time             `json:"since"`
	Lowest    string                `json:"lowest,omitempty"`
	Days      []clickhouse.DailyLow `json:"days"`
}

func outputHistoryTable(w io.Writer, r *HistoryReport) error {
	fmt.Fprintf(w, "%s in %s since %s\n", r.VariantID, strings.ToUpper(r.Currency), r.Since.Format("2006-01-02"))
	if r.Lowest == "" {
		fmt.Fprintln(w, "No observations.")
		return nil
	}
	fmt.Fprintf(w, "Lowest: %s\n\n", r.Lowest)
	for _, d := range r.Days {
		fmt.Fprintf(w, "  %s  %s\n", d.Day.Format("2006-01-02"), pricing.FormatAmount(d.Amount, r.Currency))
	}
	return nil
}

func selectedPrice(l *QuoteLine) string {
	if l.OnSale {
		return fmt.Sprintf("%s (was %s, -%d%%)", l.Price, l.Original, l.PercentageOff)
	}
	return l.Price
}

func stockLabel(inStock bool) string {
	if inStock {
		return "✅ in stock"
	}
	return "❌ out of stock"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
