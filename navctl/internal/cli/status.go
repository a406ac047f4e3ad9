package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show the network status summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := api().Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("boxes:       %d\n", s.Boxes)
		fmt.Printf("up:          %d\n", s.Up)
		fmt.Printf("down:        %d\n", s.Down)
		fmt.Printf("shadow:      %d\n", s.Shadow)
		fmt.Printf("open alerts: %d\n", s.OpenAlerts)
		fmt.Printf("maintenance: %d\n", s.Maintenance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
