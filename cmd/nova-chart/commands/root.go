package commands

import (
	"context"

	"novawatch/internal/config"
	"novawatch/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "nova-chart",
	Short: "nova-chart renders the NOVA group distribution of the tracked brands.",
	Long: `nova-chart queries the NOVA group counts of every configured brand, converts
them to percentages and saves a horizontal stacked bar chart sorted by the
share of ultra-processed (NOVA 4) products.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "where to save the chart, overrides chart_output")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("render chart", err)
	}
}
