package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nav-nms/nav/navctl/internal/client"
	"github.com/nav-nms/nav/pkg/models"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "work with the event queue",
}

var postEv client.Event
var postVars []string

var eventPostCmd = &cobra.Command{
	Use:   "post",
	Short: "inject an event on the queue, mainly for testing alert routing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch postEv.State {
		case models.StateStateless, models.StateStart, models.StateEnd:
		default:
			return fmt.Errorf("state must be one of x (stateless), s (start), e (end)")
		}
		postEv.Vars = map[string]string{}
		for _, kv := range postVars {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("bad var %q, want key=value", kv)
			}
			postEv.Vars[k] = v
		}
		if err := api().PostEvent(cmd.Context(), postEv); err != nil {
			return err
		}
		fmt.Println("event queued")
		return nil
	},
}

func init() {
	eventPostCmd.Flags().Int64Var(&postEv.NetboxID, "netbox", 0, "netbox id (required)")
	eventPostCmd.Flags().StringVar(&postEv.EventType, "type", models.EventBoxState, "event type")
	eventPostCmd.Flags().StringVar(&postEv.State, "state", models.StateStart, "event state: x, s or e")
	eventPostCmd.Flags().StringVar(&postEv.SubID, "subid", "", "subcomponent id")
	eventPostCmd.Flags().IntVar(&postEv.Severity, "severity", models.SeverityMedium, "severity 0 (critical) to 4 (debug)")
	eventPostCmd.Flags().StringArrayVar(&postVars, "var", nil, "extra event variable, key=value (repeatable)")
	eventPostCmd.MarkFlagRequired("netbox") //nolint:errcheck

	eventCmd.AddCommand(eventPostCmd)
	rootCmd.AddCommand(eventCmd)
}
