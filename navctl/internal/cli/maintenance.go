package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "work with maintenance tasks",
}

var maintenanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "list maintenance tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := api().MaintenanceTasks(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tSTART\tEND\tDESCRIPTION")
		for _, t := range tasks {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				t.ID, t.State,
				t.Start.Format("2006-01-02 15:04"),
				t.End.Format("2006-01-02 15:04"),
				t.Description)
		}
		return w.Flush()
	},
}

func init() {
	maintenanceCmd.AddCommand(maintenanceListCmd)
	rootCmd.AddCommand(maintenanceCmd)
}
