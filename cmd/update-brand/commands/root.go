package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"novawatch/internal/config"
	"novawatch/internal/offapi"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "update-brand [brand]",
	Short: "update-brand appends newly modified products of a brand to its CSV table.",
	Long: `update-brand fetches every product of a brand sold in the configured country
that was modified after the date cutoff, appends the ones not yet present to
the brand's CSV table and stamps the status file with today's date.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUpdate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func ExecuteContext(ctx context.Context) {
	code, message := exitStatus(rootCmd.ExecuteContext(ctx))
	if code == 0 {
		return
	}
	slog.Debug("update brand failed", "code", code)
	fmt.Fprintln(os.Stderr, message)
	os.Exit(code)
}

// exitStatus maps the outcome of a run to the process exit code and the
// message printed on stderr. A run that found nothing new is a success.
func exitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var statusErr *offapi.StatusError
	if errors.As(err, &statusErr) {
		return 1, fmt.Sprintf("Failed to fetch data: %d", statusErr.Code)
	}
	return 1, err.Error()
}
