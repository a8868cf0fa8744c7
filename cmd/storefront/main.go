// Storefront CLI - product variant matrix, price resolution and checkout API
//
// Usage:
//
//	storefront serve [--addr :8080] [--watch]
//	storefront matrix --product prod_tshirt [--dump]
//	storefront quote --product prod_tshirt --region reg_eu [--option opt_size=M] [--format table|json|markdown]
//	storefront sync --product prod_tshirt --product prod_mug --region reg_eu
//	storefront history --variant var_m_black --currency eur [--days 30]
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "storefront",
		Usage:     "Storefront backend - variant selection, pricing and checkout",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Writer:    stdout,
		ErrWriter: stderr,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"STOREFRONT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-pretty",
				Usage: "Human-readable console logs",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Product source (api, file)",
			},
			&cli.StringFlag{
				Name:  "catalog-dir",
				Usage: "Catalog directory for the file source",
			},
			&cli.StringFlag{
				Name:  "backend-url",
				Usage: "Commerce store API base URL",
			},
		},

		Commands: []*cli.Command{
			serveCommand(),
			matrixCommand(),
			quoteCommand(),
			syncCommand(),
			historyCommand(),
		},
	}
}
