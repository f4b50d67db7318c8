package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DemandCast/internal/di"
	"DemandCast/internal/domain/models"
	"DemandCast/pkg/config"
	"DemandCast/pkg/logger"
	xutil "DemandCast/pkg/util"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "demandcast",
		Short:         "Per item and store demand forecasting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(accuracyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// serveCmd runs the HTTP API, the run queue worker and the Kafka trigger consumer.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast API and execute queued runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, cleanup, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			defer cleanup()
			return app.Run(cmd.Context())
		},
	}
}

// runCmd executes one forecast run in the foreground and prints its summary.
func runCmd() *cobra.Command {
	var (
		horizon     int
		storeIDs    []int64
		source      string
		initiatedBy string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a forecast synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, cleanup, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("runner initialization failed: %w", err)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			id, summary, err := runner.Runs.RunNow(ctx, models.RunRequest{
				HorizonDays: horizon,
				StoreIDs:    storeIDs,
				SourceTag:   source,
				InitiatedBy: initiatedBy,
			})
			if err != nil {
				runner.Log.Error("forecast run failed", logger.String("run_id", id), logger.Error(err))
				return err
			}
			runner.Log.Info("forecast run finished",
				logger.String("run_id", id),
				logger.Int("successful", summary.Successful),
				logger.Int("failed", summary.Failed),
				logger.Int("skipped", summary.Skipped),
				logger.Int("rows", summary.RowsPersisted),
				logger.Float64("success_rate", summary.SuccessRate()))
			return printJSON(summary)
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast horizon in days (default from config)")
	cmd.Flags().Int64SliceVar(&storeIDs, "stores", nil, "restrict the run to these store ids")
	cmd.Flags().StringVar(&source, "source", "cli", "run source tag")
	cmd.Flags().StringVar(&initiatedBy, "initiated-by", "system", "who started the run")
	return cmd
}

// accuracyCmd prints forecast accuracy against realized sales.
func accuracyCmd() *cobra.Command {
	var (
		from, to string
		days     int
	)
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Report forecast accuracy over a date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			end := xutil.TruncateDay(time.Now()).AddDate(0, 0, -1)
			if to != "" {
				t, ok := xutil.ParseDate(to)
				if !ok {
					return fmt.Errorf("invalid --to %q", to)
				}
				end = t
			}
			start := end.AddDate(0, 0, -(days - 1))
			if from != "" {
				t, ok := xutil.ParseDate(from)
				if !ok {
					return fmt.Errorf("invalid --from %q", from)
				}
				start = t
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, cleanup, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("runner initialization failed: %w", err)
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			rep, err := runner.Accuracy.Report(ctx, start, end)
			if err != nil {
				return err
			}
			if rep.DriftDetected {
				runner.Log.Warn("forecast accuracy drift",
					logger.Float64("recent_mape", rep.RecentMAPE),
					logger.Float64("baseline_mape", rep.BaselineMAPE))
			}
			return printJSON(rep)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default yesterday)")
	cmd.Flags().IntVar(&days, "days", 30, "window length when --from is not given")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
