package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nav-nms/nav/pkg/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "manage the NAV database",
}

var dbConfPath string

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "create the NAV tables",
	Long:  "Creates all NAV tables from the embedded schema. Safe to run against an existing database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := db.ConfigFromFile(dbConfPath)
		if err != nil {
			return err
		}
		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.InitSchema(cmd.Context(), conn); err != nil {
			return err
		}
		fmt.Println("schema initialized")
		return nil
	},
}

func init() {
	dbInitCmd.Flags().StringVar(&dbConfPath, "nav-config", "/etc/nav/nav.conf",
		"path to nav.conf (database settings)")

	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(dbCmd)
}
