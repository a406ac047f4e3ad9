// Package plugins holds the collection plugins ipdevpolld jobs run against
// netboxes. Each plugin walks a slice of the MIB tree and persists what it
// finds through the Store.
package plugins

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/pkg/snmp"
)

// Store is what plugins are allowed to do to the database, kept as an
// interface so plugin tests run against an in-memory fake.
type Store interface {
	SaveCollected(ctx context.Context, netboxID int64, sysname string, data map[string]string) error
	TypeBySysObjectID(ctx context.Context, sysObjectID string) (*models.NetboxType, error)
	SetType(ctx context.Context, netboxID int64, typeID *int64) error

	Interfaces(ctx context.Context, netboxID int64) ([]models.Interface, error)
	UpsertInterface(ctx context.Context, ifc *models.Interface) error

	EnsureVlan(ctx context.Context, vlan int, netType string) (int64, error)
	UpsertPrefix(ctx context.Context, netAddress string, vlanID *int64, netType string) (int64, error)
	SetGwPortPrefix(ctx context.Context, netboxID int64, ifindex int, prefixID int64, gwIP string) error

	SyncArp(ctx context.Context, netboxID int64, sysname string, sightings []db.ArpSighting, now time.Time) error

	PostEvent(ctx context.Context, ev *models.Event) error
}

// Plugin is one unit of collection work. CanHandle filters which netboxes a
// plugin applies to; Handle runs one collection pass.
type Plugin interface {
	Name() string
	CanHandle(n *models.Netbox) bool
	Handle(ctx context.Context, sess snmp.Walker, n *models.Netbox, store Store) error
}

// Registry maps plugin names to instances.
type Registry struct {
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin; registering the same name twice is a programming
// error and panics during startup.
func (r *Registry) Register(p Plugin) {
	if _, dup := r.plugins[p.Name()]; dup {
		panic(fmt.Sprintf("plugins: duplicate registration of %q", p.Name()))
	}
	r.plugins[p.Name()] = p
}

// Get returns the named plugin.
func (r *Registry) Get(name string) (Plugin, error) {
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugins: unknown plugin %q", name)
	}
	return p, nil
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snmpBox reports whether a netbox is expected to answer SNMP at all.
func snmpBox(n *models.Netbox) bool {
	return len(n.Profiles) > 0 && n.PreferredSNMPProfile(false) != nil
}
