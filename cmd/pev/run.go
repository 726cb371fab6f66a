package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yankesswang/PE-valuation/pkg/pev/blob"
	"github.com/yankesswang/PE-valuation/pkg/pev/columns"
	"github.com/yankesswang/PE-valuation/pkg/pev/config"
	"github.com/yankesswang/PE-valuation/pkg/pev/enrich"
	"github.com/yankesswang/PE-valuation/pkg/pev/filter"
	"github.com/yankesswang/PE-valuation/pkg/pev/logger"
	"github.com/yankesswang/PE-valuation/pkg/pev/pipeline"
	"github.com/yankesswang/PE-valuation/pkg/pev/render"
	"github.com/yankesswang/PE-valuation/pkg/pev/scrape"
	"github.com/yankesswang/PE-valuation/pkg/pev/source"
	"github.com/yankesswang/PE-valuation/pkg/pev/store"
)

const minColWidth = 10

func newValueCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value <catalog>",
		Short: "Value a catalog from saved ratio, forecast and P/E snapshot files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			snap, err := source.LoadSnapshot(cfg.Snapshot.Ratio, cfg.Snapshot.Forecast, cfg.Snapshot.PE)
			if err != nil {
				return err
			}
			if snap.Empty() {
				return errors.New("value needs at least one of --ratio, --forecast or --pe")
			}
			coll := &source.SnapshotCollector{Snapshot: snap, Logger: log}
			if cfg.Quotes.Enabled {
				coll.Quotes = newQuoteService(cfg)
			}
			return execute(cmd, cfg, log, args[0], coll)
		},
	}
	addRunFlags(cmd)
	cmd.Flags().String("ratio", "", "ratio snapshot JSON file")
	cmd.Flags().String("forecast", "", "forecast snapshot JSON file")
	cmd.Flags().String("pe", "", "P/E snapshot JSON file")
	cmd.Flags().Bool("quotes", true, "fetch missing prices from Yahoo Finance")
	return cmd
}

func newScrapeCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <catalog>",
		Short: "Collect live metrics and value a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			return execute(cmd, cfg, log, args[0], newScrapeCollector(cfg, log))
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("lenient", false, "repair malformed page data instead of failing")
	cmd.Flags().Bool("quotes", true, "fetch current prices from Yahoo Finance")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}

func newQuoteService(cfg *config.Config) enrich.QuoteService {
	return enrich.NewCacheService(enrich.NewYFService(cfg.Quotes.Timeout), cfg.Quotes.CacheTTL, cfg.Quotes.CacheSize)
}

func newScrapeCollector(cfg *config.Config, log zerolog.Logger) *scrape.Collector {
	f := scrape.NewFetcher(
		scrape.WithTimeout(cfg.Scrape.Timeout),
		scrape.WithRateLimit(cfg.Scrape.RateLimit, cfg.Scrape.Burst),
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
		scrape.WithRetries(cfg.Scrape.MaxRetries, cfg.Scrape.RetryDelay),
		scrape.WithLogger(log),
	)
	c := &scrape.Collector{
		StockAnalysis: &scrape.StockAnalysis{
			Fetcher:  f,
			BaseURL:  cfg.Scrape.StockAnalysisURL,
			Decoder:  blob.Decoder{Lenient: cfg.Blob.Lenient},
			RatioIDs: cfg.Scrape.RatioIDs,
			Logger:   log,
		},
		Macrotrends: &scrape.Macrotrends{Fetcher: f, BaseURL: cfg.Scrape.MacrotrendsURL},
		FiscalYear:  cfg.FiscalYear,
		Logger:      log,
	}
	if cfg.Quotes.Enabled {
		c.Quotes = newQuoteService(cfg)
	}
	return c
}

// execute wires the catalog, renderer and sink around coll and runs once.
func execute(cmd *cobra.Command, cfg *config.Config, log zerolog.Logger, spec string, coll pipeline.Collector) error {
	ctx := cmd.Context()

	cat, closeCat, err := openCatalog(ctx, spec)
	if err != nil {
		return err
	}
	defer closeCat()

	sink, closeSink, err := openSink(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer closeSink()

	runner, opts, err := newRunner(cmd, cfg, log, cat, coll, sink, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = runner.Execute(ctx, spec, opts)
	return err
}

func newRunner(cmd *cobra.Command, cfg *config.Config, log zerolog.Logger, cat source.Catalog, coll pipeline.Collector, sink store.Sink, w io.Writer) (*pipeline.Runner, pipeline.ExecuteOptions, error) {
	renderer, err := render.ForFormat(cfg.Output.Format)
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, err
	}
	cols, err := selectColumns(cfg.Output)
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, err
	}
	industry, err := filterFlag(cmd, "industry")
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, err
	}
	ticker, err := filterFlag(cmd, "ticker")
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, err
	}

	maxWidth := cfg.Output.MaxColWidth
	if maxWidth <= 0 {
		if tw := detectTerminalWidth(); tw > 0 {
			maxWidth = max(minColWidth, tw/max(len(columns.Compute(cols)), 1))
		}
	}

	runner := &pipeline.Runner{
		Catalog:   cat,
		Collector: coll,
		Renderer:  renderer,
		Writer:    w,
		Sink:      sink,
		Logger:    log,
	}
	return runner, pipeline.ExecuteOptions{
		Industry:    industry,
		Ticker:      ticker,
		Columns:     cols,
		Color:       cfg.Output.Color,
		PrettyJSON:  cfg.Output.PrettyJSON,
		MaxColWidth: maxWidth,
		Workers:     cfg.Workers,
		FiscalYear:  cfg.FiscalYear,
		MaxPECount:  cfg.MaxPECount,
	}, nil
}

// selectColumns joins the expanded sets with the explicit columns. Nil
// means the default set.
func selectColumns(out config.OutputConfig) ([]string, error) {
	cols, err := columns.ExpandSets(out.Sets)
	if err != nil {
		return nil, err
	}
	cols = append(cols, out.Columns...)
	if len(cols) == 0 {
		return nil, nil
	}
	return columns.Compute(cols), nil
}

func filterFlag(cmd *cobra.Command, name string) (filter.Filter, error) {
	expr, _ := cmd.Flags().GetString(name)
	f, err := filter.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return f, nil
}

func isDSN(spec string) bool {
	return strings.HasPrefix(spec, "postgres://") || strings.HasPrefix(spec, "postgresql://")
}

// openCatalog picks the catalog backend: a postgres DSN reads the
// catalog_tickers table, anything else is a YAML file or directory.
func openCatalog(ctx context.Context, spec string) (source.Catalog, func(), error) {
	if !isDSN(spec) {
		return source.YAMLCatalog{}, func() {}, nil
	}
	pool, err := pgxpool.New(ctx, spec)
	if err != nil {
		return nil, nil, fmt.Errorf("connect catalog: %w", err)
	}
	return source.DBCatalog{DB: pool}, pool.Close, nil
}

func openSink(ctx context.Context, dsn string) (store.Sink, func(), error) {
	if dsn == "" {
		return store.NopSink{}, func() {}, nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect store: %w", err)
	}
	s := store.PostgresSink{DB: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
