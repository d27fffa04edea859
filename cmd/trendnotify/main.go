package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	// Values already in the environment win over .env entries.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trendnotify",
		Short: "Watch Google Trends and push newly trending topics to webhooks",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(trendsCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(testCmd())

	return root
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the polling daemon with the health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "health server port (default: from config)")
	return cmd
}

func trendsCmd() *cobra.Command {
	var (
		jsonOutput bool
		region     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show recently stored trend events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrends(jsonOutput, region, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&region, "region", "", "filter by region code (e.g. US)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max events to show")
	return cmd
}

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired dedupe entries now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep()
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest()
		},
	}
}
