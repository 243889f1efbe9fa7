// Command macrotracker fetches macro indicators and economic news, scores a
// market bias and serves or prints the results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deusflow/macrotracker/internal/app"
	"github.com/deusflow/macrotracker/internal/config"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	debug   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "macrotracker",
	Short: "Macro indicators, economic news and a rule-based gold bias",
	Long: `macrotracker aggregates CPI, yields, the Fed funds rate, payrolls, gold
and the dollar index, filters economic headlines and scores a market bias.

Provider keys are read from the environment (FRED_API_KEY, BLS_API_KEY,
NEWS_API_KEY). See configs/ for the feed list and refresh schedule.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if debug {
			cfg.Debug = true
		}
		return logger.Init(cfg.Debug, cfg.LogFile)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and the HTTP API",
	RunE:  runServe,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch every macro source once and print the bias",
	RunE:  runSnapshot,
}

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Run the news pipeline once and print the feed",
	RunE:  runNews,
}

var articleCmd = &cobra.Command{
	Use:   "article <url>",
	Short: "Extract the readable text of an article",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticle,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (or set DEBUG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of formatted text")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(articleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp wires the application for one command and releases it after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
