package main

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yankesswang/PE-valuation/pkg/pev/filter"
	"github.com/yankesswang/PE-valuation/pkg/pev/pipeline"
	"github.com/yankesswang/PE-valuation/pkg/pev/source"
)

func newCatalogCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or store the industry catalog",
	}

	show := &cobra.Command{
		Use:   "show <catalog>",
		Short: "List the industries and tickers of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeCat, err := openCatalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeCat()
			inds, err := cat.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			industry, err := filterFlag(cmd, "industry")
			if err != nil {
				return err
			}
			inds = pipeline.Select(inds, industry, filter.Always(true))

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleDefault)
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.AppendHeader(table.Row{"INDUSTRY", "TICKER", "SLUG"})
			for _, ind := range inds {
				for _, t := range ind.Tickers {
					tw.AppendRow(table.Row{ind.Name, t.Sym, t.Slug})
				}
			}
			tw.Render()
			return nil
		},
	}
	show.Flags().String("industry", "", "industry filter")

	push := &cobra.Command{
		Use:   "push <file.yaml>",
		Short: "Replace the catalog stored at store.dsn with a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.DSN == "" {
				return errors.New("push needs --store or store.dsn")
			}
			log := newLogger(cfg)

			inds, err := source.YAMLCatalog{}.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pool, err := pgxpool.New(cmd.Context(), cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer pool.Close()

			db := source.DBCatalog{DB: pool}
			if err := db.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := db.Put(cmd.Context(), inds); err != nil {
				return err
			}
			n := 0
			for _, ind := range inds {
				n += len(ind.Tickers)
			}
			log.Info().Int("industries", len(inds)).Int("tickers", n).Msg("catalog stored")
			return nil
		},
	}
	push.Flags().String("store", "", "postgres DSN")
	push.Flags().String("log-level", "info", "log level")

	cmd.AddCommand(show, push)
	return cmd
}
