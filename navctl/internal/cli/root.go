// Package cli implements the navctl commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nav-nms/nav/navctl/internal/client"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:           "navctl",
	Short:         "operator CLI for the NAV daemons",
	Long:          "navctl talks to navd's JSON API and manages the NAV database and configuration.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Errors print to stderr and exit non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "navctl:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("NAV_SERVER", "http://localhost:8080"), "navd base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key",
		os.Getenv("NAV_API_KEY"), "API key for navd (or NAV_API_KEY)")
}

func api() *client.Client {
	return client.New(serverURL, apiKey)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
