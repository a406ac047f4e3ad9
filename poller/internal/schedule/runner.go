package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/config"
	"github.com/nav-nms/nav/poller/internal/plugins"
	"github.com/nav-nms/nav/pkg/snmp"
)

// PluginRunner is the production Runner: it opens an SNMP session against
// the netbox and runs the job's plugins in order.
type PluginRunner struct {
	registry *plugins.Registry
	store    plugins.Store
	snmpOpts snmp.Options
}

func NewPluginRunner(registry *plugins.Registry, store plugins.Store, snmpOpts snmp.Options) *PluginRunner {
	return &PluginRunner{registry: registry, store: store, snmpOpts: snmpOpts}
}

// RunJob runs every applicable plugin of the job against the netbox. The
// first plugin error aborts the run; a job where no plugin applies is a
// successful no-op.
func (r *PluginRunner) RunJob(ctx context.Context, job config.Job, netbox *models.Netbox) error {
	applicable := make([]plugins.Plugin, 0, len(job.Plugins))
	for _, name := range job.Plugins {
		plugin, err := r.registry.Get(name)
		if err != nil {
			return err
		}
		if plugin.CanHandle(netbox) {
			applicable = append(applicable, plugin)
		}
	}
	if len(applicable) == 0 {
		slog.Debug("no applicable plugins", "job", job.Name, "netbox", netbox.Sysname)
		return nil
	}

	sess, err := snmp.ForNetbox(netbox, false, r.snmpOpts)
	if err != nil {
		return fmt.Errorf("job %s on %s: %w", job.Name, netbox.Sysname, err)
	}
	defer sess.Close()

	for _, plugin := range applicable {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := plugin.Handle(ctx, sess, netbox, r.store); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("job %s on %s: %w", job.Name, netbox.Sysname, err)
		}
	}
	return nil
}
