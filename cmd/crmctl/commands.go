package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
)

var errUsage = errors.New("unknown command")

type cli struct {
	opts     engine.Options
	stdout   io.Writer
	logger   *zap.Logger
	progress bool
}

func (c *cli) run(cmd string, args []string) error {
	switch cmd {
	case "reconcile":
		return c.reconcile(args)
	case "merge":
		return c.merge(args)
	case "profiles":
		return c.profiles(args)
	case "segments":
		return c.segments(args)
	case "aliases":
		return c.aliases(args)
	}
	return errUsage
}

func (c *cli) reconcile(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	salesPath := fs.String("sales", "", "sales JSON file")
	ordersPath := fs.String("orders", "", "orders JSON file")
	out := fs.String("out", "", "write the enriched sales here instead of the report to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *salesPath == "" || *ordersPath == "" {
		return errors.New("reconcile: -sales and -orders are required")
	}

	var sales []domain.Sale
	if err := readJSON(*salesPath, &sales); err != nil {
		return err
	}
	var orders []domain.Order
	if err := readJSON(*ordersPath, &orders); err != nil {
		return err
	}

	opts := c.opts
	if c.progress && len(orders) > 0 {
		bar := progressbar.Default(int64(len(orders)), "reconciling")
		opts.Progress = func(done, _ int) { _ = bar.Set(done) }
	}

	start := time.Now()
	res := engine.ReconcileOrders(sales, orders, opts)
	c.logger.Info("orders reconciled",
		zap.Int("sales", len(sales)),
		zap.Int("orders", len(orders)),
		zap.Int("enriched", res.Enriched),
		zap.Int("unenriched", res.Unenriched),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	if *out != "" {
		if err := writeJSONFile(*out, res.Sales); err != nil {
			return err
		}
	}
	return c.print(res)
}

func (c *cli) merge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	ordersPath := fs.String("orders", "", "existing orders JSON file (may be missing)")
	incomingPath := fs.String("incoming", "", "incoming order batch JSON file")
	out := fs.String("out", "", "write the merged collection here")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *incomingPath == "" {
		return errors.New("merge: -incoming is required")
	}

	var existing []domain.Order
	if *ordersPath != "" {
		if err := readJSON(*ordersPath, &existing); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	var incoming []domain.Order
	if err := readJSON(*incomingPath, &incoming); err != nil {
		return err
	}

	res := engine.MergeOrders(existing, incoming)
	c.logger.Info("orders merged",
		zap.Int("existing", len(existing)),
		zap.Int("incoming", len(incoming)),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
	)

	if *out != "" {
		if err := writeJSONFile(*out, res.Orders); err != nil {
			return err
		}
	}
	return c.print(res)
}

type profilesOutput struct {
	Summary     domain.CrmSummary        `json:"summary"`
	Profiles    []domain.CustomerProfile `json:"profiles"`
	Diagnostics domain.Diagnostics       `json:"diagnostics"`
}

func (c *cli) profiles(args []string) error {
	fs := flag.NewFlagSet("profiles", flag.ContinueOnError)
	salesPath := fs.String("sales", "", "sales JSON file")
	ordersPath := fs.String("orders", "", "optional orders JSON file, reconciled first")
	customersPath := fs.String("customers", "", "optional customer registry JSON file")
	out := fs.String("out", "", "write the report here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sales, err := c.loadSales(*salesPath, *ordersPath)
	if err != nil {
		return err
	}
	var customers []domain.Customer
	if *customersPath != "" {
		if err := readJSON(*customersPath, &customers); err != nil {
			return err
		}
	}

	report := engine.BuildProfiles(sales, customers, c.opts)
	c.logger.Info("profiles built",
		zap.Int("profiles", len(report.Profiles)),
		zap.Int("unclassified", report.Diagnostics.UnclassifiedTotal),
		zap.Int("skipped", report.Diagnostics.SkippedRecords),
	)

	output := profilesOutput{Summary: report.Summary, Profiles: report.Profiles, Diagnostics: report.Diagnostics}
	if *out != "" {
		return writeJSONFile(*out, output)
	}
	return c.print(output)
}

func (c *cli) segments(args []string) error {
	fs := flag.NewFlagSet("segments", flag.ContinueOnError)
	salesPath := fs.String("sales", "", "sales JSON file")
	ordersPath := fs.String("orders", "", "optional orders JSON file, reconciled first")
	customersPath := fs.String("customers", "", "optional customer registry JSON file")
	startArg := fs.String("start", "", "period start (YYYY-MM-DD or RFC 3339)")
	endArg := fs.String("end", "", "period end, exclusive")
	out := fs.String("out", "", "write the report here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start, err := parseTime(*startArg)
	if err != nil {
		return fmt.Errorf("segments: -start: %w", err)
	}
	end, err := parseTime(*endArg)
	if err != nil {
		return fmt.Errorf("segments: -end: %w", err)
	}
	if !end.After(start) {
		return errors.New("segments: -end must be after -start")
	}

	sales, err := c.loadSales(*salesPath, *ordersPath)
	if err != nil {
		return err
	}
	var customers []domain.Customer
	if *customersPath != "" {
		if err := readJSON(*customersPath, &customers); err != nil {
			return err
		}
	}
	period := domain.Period{Start: start, End: end}
	stats := engine.SegmentPeriod(period, engine.FilterPeriod(sales, period), sales, customers, c.opts)
	c.logger.Info("period segmented",
		zap.Int("active_customers", stats.ActiveCustomers),
		zap.Int("new_customers", stats.NewCustomers),
		zap.Int("unclassified", stats.Diagnostics.UnclassifiedTotal),
	)

	if *out != "" {
		return writeJSONFile(*out, stats)
	}
	return c.print(stats)
}

func (c *cli) aliases(args []string) error {
	fs := flag.NewFlagSet("aliases", flag.ContinueOnError)
	salesPath := fs.String("sales", "", "sales JSON file")
	customersPath := fs.String("customers", "", "optional customer registry JSON file")
	maxDistance := fs.Int("max-distance", 2, "maximum Levenshtein distance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *salesPath == "" {
		return errors.New("aliases: -sales is required")
	}

	var sales []domain.Sale
	if err := readJSON(*salesPath, &sales); err != nil {
		return err
	}
	names := make([]string, 0, len(sales))
	for _, s := range sales {
		names = append(names, s.CustomerName)
	}
	if *customersPath != "" {
		var customers []domain.Customer
		if err := readJSON(*customersPath, &customers); err != nil {
			return err
		}
		for _, cu := range customers {
			names = append(names, cu.Name)
		}
	}

	suggestions := engine.SuggestAliases(names, *maxDistance)
	if suggestions == nil {
		suggestions = []domain.AliasSuggestion{}
	}
	return c.print(suggestions)
}

// loadSales reads sales and, when an orders file is given, reconciles it in.
func (c *cli) loadSales(salesPath, ordersPath string) ([]domain.Sale, error) {
	if salesPath == "" {
		return nil, errors.New("-sales is required")
	}
	var sales []domain.Sale
	if err := readJSON(salesPath, &sales); err != nil {
		return nil, err
	}
	if ordersPath == "" {
		return sales, nil
	}
	var orders []domain.Order
	if err := readJSON(ordersPath, &orders); err != nil {
		return nil, err
	}
	return engine.ReconcileOrders(sales, orders, c.opts).Sales, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
