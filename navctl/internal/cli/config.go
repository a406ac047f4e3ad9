package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "query NAV configuration",
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "find and report the location of nav.conf",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		locations := configLocations()
		path, ok := findConfigFile("nav.conf", locations)
		if !ok {
			return fmt.Errorf("could not find nav.conf in any of these locations:\n%s",
				strings.Join(locations, "\n"))
		}
		fmt.Println(path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "print the locations NAV searches for configuration files",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, loc := range configLocations() {
			fmt.Println(loc)
		}
	},
}

// configLocations is the search order for configuration files: an explicit
// override, the working directory, the user's own config dir, then the
// system-wide one.
func configLocations() []string {
	var locations []string
	if dir := os.Getenv("NAV_CONFIG_DIR"); dir != "" {
		locations = append(locations, dir)
	}
	locations = append(locations, ".")
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".nav"))
	}
	return append(locations, "/etc/nav")
}

func findConfigFile(name string, locations []string) (string, bool) {
	for _, dir := range locations {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func init() {
	configCmd.AddCommand(configWhereCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
