package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hurttlocker/queueinsight/internal/config"
	"github.com/hurttlocker/queueinsight/internal/observe"
	"github.com/hurttlocker/queueinsight/internal/report"
	"github.com/hurttlocker/queueinsight/internal/risk"
	"github.com/hurttlocker/queueinsight/internal/roster"
	"github.com/hurttlocker/queueinsight/internal/scrape"
	"github.com/hurttlocker/queueinsight/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "scrape":
		if err := runScrape(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "load":
		if err := runLoad(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "risk":
		if err := runRisk(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("queueinsight %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	cluster    string
	phase      string
	configPath string
	dbPath     string
	verbose    bool
	chainLoad  bool
	rest       []string
}

func parseFlags(args []string) (*commonFlags, error) {
	f := &commonFlags{phase: "PHASE_1"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			return args[i], nil
		}

		var err error
		switch {
		case arg == "--cluster" || arg == "-c":
			f.cluster, err = next()
		case arg == "--phase" || arg == "-p":
			f.phase, err = next()
		case arg == "--config":
			f.configPath, err = next()
		case arg == "--db":
			f.dbPath, err = next()
		case arg == "--verbose":
			f.verbose = true
		case arg == "--load":
			f.chainLoad = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			f.rest = append(f.rest, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *commonFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	return cfg, nil
}

// logger returns a nop logger unless --verbose is set; subcommand output
// goes through fmt and structured logs would drown it.
func (f *commonFlags) logger() (*zap.Logger, error) {
	if !f.verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runScrape(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(f.rest) != 1 || f.cluster == "" {
		return fmt.Errorf("usage: queueinsight scrape <roster.csv> --cluster <name> [--phase PHASE_1] [--config path]")
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	log, err := f.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	entries, warnings, err := roster.Load(f.rest[0], f.cluster, f.phase)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no scrapeable projects for cluster %s %s", f.cluster, f.phase)
	}
	fmt.Printf("Scraping %d reports for %s %s...\n", len(entries), f.cluster, f.phase)

	scraper := scrape.NewScraper(cfg.Scrape, log)
	batch, err := scraper.RunBatch(context.Background(), entries)
	if err != nil {
		return err
	}

	path, err := scrape.WriteBatch(cfg.Scrape.OutputDir, batch)
	if err != nil {
		return err
	}

	fmt.Printf("Scraped %d reports (%d failed)\n", batch.Succeeded, batch.Failed)
	fmt.Printf("Batch written to %s\n", path)

	if f.chainLoad {
		fmt.Println()
		return loadAndScore(cfg, log, [][]*report.ScrapedReport{batch.Reports})
	}
	return nil
}

func runLoad(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(f.rest) == 0 {
		return fmt.Errorf("usage: queueinsight load <batch.json> [more batches...] [--db path]")
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	log, err := f.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	var groups [][]*report.ScrapedReport
	for _, path := range f.rest {
		batch, err := scrape.ReadBatch(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("Read %d reports from %s\n", len(batch.Reports), path)
		groups = append(groups, batch.Reports)
	}
	if len(groups) == 0 {
		return fmt.Errorf("no readable batches")
	}
	return loadAndScore(cfg, log, groups)
}

// loadAndScore loads report batches and recomputes risk for every cluster
// they touched. Scores are relative to the cluster, so any load invalidates
// the cluster's previous scores.
func loadAndScore(cfg config.Config, log *zap.Logger, groups [][]*report.ScrapedReport) error {
	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	loader := store.NewLoader(s, log)
	ctx := context.Background()
	total := &store.LoadResult{}

	type clusterKey struct{ cluster, phase string }
	var touched []clusterKey
	seen := map[clusterKey]bool{}

	for _, reports := range groups {
		result, err := loader.LoadBatch(ctx, reports)
		if err != nil {
			return err
		}
		total.Add(result)
		for _, r := range reports {
			key := clusterKey{r.Cluster, r.Phase}
			if !seen[key] {
				seen[key] = true
				touched = append(touched, key)
			}
		}
	}

	fmt.Printf("Loaded %d projects, %d upgrades, %d links (%d failed)\n",
		total.Loaded, total.Upgrades, total.Links, total.Failed)
	for _, e := range total.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", e.ProjectID, e.Err)
	}

	engine := risk.NewEngine(s, cfg.Weights, log)
	for _, key := range touched {
		summary, err := engine.ScoreCluster(ctx, key.cluster, key.phase)
		if err != nil {
			return err
		}
		fmt.Printf("Scored %d projects in %s %s (%d ranked by cost)\n",
			summary.Projects, summary.Cluster, summary.Phase, summary.Ranked)
	}
	return nil
}

func runRisk(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.cluster == "" {
		return fmt.Errorf("usage: queueinsight risk --cluster <name> [--phase PHASE_1] [--db path]")
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	log, err := f.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	engine := risk.NewEngine(s, cfg.Weights, log)
	summary, err := engine.ScoreCluster(context.Background(), f.cluster, f.phase)
	if err != nil {
		return err
	}

	fmt.Printf("Scored %d projects in %s %s (%d ranked by cost, %d upgrades)\n",
		summary.Projects, summary.Cluster, summary.Phase, summary.Ranked, summary.Upgrades)
	return nil
}

func runStats(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.cluster == "" {
		return fmt.Errorf("usage: queueinsight stats --cluster <name> [--phase PHASE_1] [--db path]")
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	summary, err := observe.Summarize(context.Background(), s, cfg.Thresholds, f.cluster, f.phase)
	if err != nil {
		return err
	}
	fmt.Print(observe.Format(summary))
	return nil
}

func printUsage() {
	fmt.Println(`queueinsight — interconnection queue cost scraper and risk scorer

Usage:
  queueinsight scrape <roster.csv> --cluster <name> [--phase PHASE_1] [--config path] [--load]
  queueinsight load <batch.json> [more batches...] [--db path]
  queueinsight risk --cluster <name> [--phase PHASE_1] [--db path] [--config path]
  queueinsight stats --cluster <name> [--phase PHASE_1] [--db path]
  queueinsight version
  queueinsight help

Flags:
  --cluster, -c   cluster (cycle) name, e.g. TC1
  --phase, -p     study phase tag (default PHASE_1)
  --config        YAML config file (or QUEUEINSIGHT_CONFIG)
  --db            SQLite database path (or QUEUEINSIGHT_DB)
  --load          after scraping, load the batch and score it
  --verbose       structured debug logging

The pipeline runs in three steps: scrape a cluster's reports to a JSON
batch, load batches into the database (risk scores recompute on load),
then inspect with stats. The risk command rescores without loading.`)
}
