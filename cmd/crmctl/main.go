// Command crmctl runs the CRM engine over JSON exports without a server:
// reconciling orders onto sales, merging order batches, and printing
// profiles, period segments and alias suggestions.
package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/lavanderia-crm-go/internal/config"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/observability"
)

const usage = `usage: crmctl <command> [flags]

commands:
  reconcile  attach orders to sales          (-sales, -orders, -out)
  merge      fuzzy-merge an order batch      (-orders, -incoming, -out)
  profiles   build customer profiles         (-sales, -orders, -customers, -out)
  segments   segment a period                (-sales, -orders, -customers, -start, -end, -out)
  aliases    suggest name spelling variants  (-sales, -customers, -max-distance)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	app := &cli{
		opts:     cfg.EngineOptions(),
		stdout:   os.Stdout,
		logger:   logger,
		progress: true,
	}
	if err := app.run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "crmctl:", err)
		if err == errUsage {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}
