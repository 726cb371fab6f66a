package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newScheduleCmd(load loadFunc) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule <catalog>",
		Short: "Run scrape on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			coll := newScrapeCollector(cfg, log)

			runOnce := func() {
				log.Info().Str("catalog", args[0]).Msg("scheduled run starting")
				if err := execute(cmd, cfg, log, args[0], coll); err != nil {
					log.Error().Err(err).Msg("scheduled run failed")
				}
			}

			c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))
			if _, err := c.AddFunc(cfg.Schedule.Cron, runOnce); err != nil {
				return fmt.Errorf("schedule %q: %w", cfg.Schedule.Cron, err)
			}
			if runNow {
				runOnce()
			}
			c.Start()
			log.Info().Str("cron", cfg.Schedule.Cron).Msg("scheduler started")

			<-cmd.Context().Done()
			<-c.Stop().Done()
			log.Info().Msg("scheduler stopped")
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().String("cron", "", "cron spec (default from schedule.cron)")
	cmd.Flags().Bool("lenient", false, "repair malformed page data instead of failing")
	cmd.Flags().Bool("quotes", true, "fetch current prices from Yahoo Finance")
	cmd.Flags().BoolVar(&runNow, "now", false, "run once immediately before waiting for the schedule")
	return cmd
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
