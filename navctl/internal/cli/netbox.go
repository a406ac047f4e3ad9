package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nav-nms/nav/navctl/internal/client"
)

var netboxCmd = &cobra.Command{
	Use:   "netbox",
	Short: "manage netboxes",
}

var netboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all netboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		boxes, err := api().Netboxes(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYSNAME\tIP\tROOM\tCAT\tUP")
		for _, n := range boxes {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				n.ID, n.Sysname, n.IP, n.Room, n.Category, n.Up)
		}
		return w.Flush()
	},
}

var addReq client.NetboxRequest

var netboxAddCmd = &cobra.Command{
	Use:   "add",
	Short: "add a netbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := api().AddNetbox(cmd.Context(), addReq)
		if err != nil {
			return err
		}
		fmt.Printf("created netbox %d (%s)\n", n.ID, n.Sysname)
		return nil
	},
}

var netboxDelCmd = &cobra.Command{
	Use:   "del <id>",
	Short: "delete a netbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad netbox id %q", args[0])
		}
		if err := api().DeleteNetbox(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted netbox %d\n", id)
		return nil
	},
}

func init() {
	netboxAddCmd.Flags().StringVar(&addReq.IP, "ip", "", "management IP address (required)")
	netboxAddCmd.Flags().StringVar(&addReq.Sysname, "sysname", "", "sysname (defaults to the IP)")
	netboxAddCmd.Flags().StringVar(&addReq.Room, "room", "", "room id (required)")
	netboxAddCmd.Flags().StringVar(&addReq.Category, "category", "", "category id, e.g. GW or SW (required)")
	netboxAddCmd.Flags().StringVar(&addReq.Org, "org", "", "organization id")
	netboxAddCmd.MarkFlagRequired("ip")       //nolint:errcheck
	netboxAddCmd.MarkFlagRequired("room")     //nolint:errcheck
	netboxAddCmd.MarkFlagRequired("category") //nolint:errcheck

	netboxCmd.AddCommand(netboxListCmd, netboxAddCmd, netboxDelCmd)
	rootCmd.AddCommand(netboxCmd)
}
