package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yankesswang/PE-valuation/pkg/pev/columns"
	"github.com/yankesswang/PE-valuation/pkg/pev/config"
	"github.com/yankesswang/PE-valuation/pkg/pev/normalize"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "pev",
		Short:        "Estimate fair values from P/E multiples and analyst forecasts",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./pev.yaml or ~/.config/pev/pev.yaml)")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return nil, err
		}
		if f := cmd.Flags().Lookup("no-color"); f != nil && f.Changed {
			v.Set("output.color", false)
		}
		return config.Load(v, cfgFile)
	}

	rootCmd.AddCommand(
		newValueCmd(load),
		newScrapeCmd(load),
		newScheduleCmd(load),
		newCatalogCmd(load),
		newNormalizeCmd(),
	)
	return rootCmd
}

type loadFunc func(cmd *cobra.Command) (*config.Config, error)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"output":    "output.format",
	"columns":   "output.columns",
	"sets":      "output.sets",
	"workers":   "workers",
	"year":      "fiscal_year",
	"store":     "store.dsn",
	"log-level": "log.level",
	"ratio":     "snapshot.ratio",
	"forecast":  "snapshot.forecast",
	"pe":        "snapshot.pe",
	"cron":      "schedule.cron",
	"lenient":   "blob.lenient",
	"quotes":    "quotes.enabled",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// addRunFlags registers the flags shared by every command that values a catalog.
func addRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("industry", "", "industry filter: names, glob, /regex/ or !negation")
	fs.String("ticker", "", "ticker filter: names, glob, /regex/ or !negation")
	fs.StringP("output", "o", "table", "output format: table|json|syms")
	fs.StringSlice("columns", nil, "columns to show: "+strings.Join(columnKeys(), ","))
	fs.StringSlice("sets", nil, "column sets to show")
	fs.Bool("no-color", false, "disable colored output")
	fs.Int("workers", 4, "tickers valued in parallel")
	fs.Int("year", 0, "current fiscal year (default this year)")
	fs.String("store", "", "postgres DSN to save the run to")
	fs.String("log-level", "info", "log level: debug|info|warn|error")
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <token>...",
		Short: "Print the number a scraped token normalizes to",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("requires at least 1 token")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleDefault)
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.AppendHeader(table.Row{"TOKEN", "VALUE"})
			for _, a := range args {
				val := "null"
				if v := normalize.Normalize(a); v != nil {
					val = fmt.Sprint(*v)
				}
				tw.AppendRow(table.Row{a, val})
			}
			tw.Render()
			return nil
		},
	}
}

func columnKeys() []string {
	keys := make([]string, 0, len(columns.Registry))
	for k := range columns.Registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
