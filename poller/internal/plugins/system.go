package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/smi"
	"github.com/nav-nms/nav/pkg/snmp"
)

const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysUpTime   = "1.3.6.1.2.1.1.3.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
)

// System collects the system group: canonical sysname, description, uptime,
// and the sysObjectID that identifies the device type. The optional resolver
// translates sysObjectIDs to MIB names for events and logs.
type System struct {
	names *smi.Resolver
}

func NewSystem(names *smi.Resolver) *System { return &System{names: names} }

func (p *System) Name() string { return "system" }

func (p *System) CanHandle(n *models.Netbox) bool { return snmpBox(n) }

func (p *System) Handle(ctx context.Context, sess snmp.Walker, n *models.Netbox, store Store) error {
	values := make(map[string]string)
	err := sess.Get([]string{
		oidSysDescr, oidSysObjectID, oidSysUpTime, oidSysName,
	}, func(pdu gosnmp.SnmpPDU) error {
		switch oidOf(pdu) {
		case oidSysDescr:
			values["sysDescr"] = snmp.PduString(pdu)
		case oidSysObjectID:
			values["sysObjectID"] = snmp.PduString(pdu)
		case oidSysUpTime:
			values["sysUpTime"] = fmt.Sprintf("%d", snmp.PduInt(pdu))
		case oidSysName:
			values["sysName"] = snmp.PduString(pdu)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("system plugin: %w", err)
	}

	sysname := values["sysName"]
	if sysname == "" {
		sysname = n.Sysname
	}
	delete(values, "sysName")
	if err := store.SaveCollected(ctx, n.ID, sysname, values); err != nil {
		return fmt.Errorf("system plugin: %w", err)
	}

	if oid := values["sysObjectID"]; oid != "" {
		if err := p.resolveType(ctx, n, oid, store); err != nil {
			return err
		}
	}
	return nil
}

// resolveType binds the netbox to the type registered for its sysObjectID,
// posting a deviceTypeChanged event when it differs from the current one.
func (p *System) resolveType(ctx context.Context, n *models.Netbox, sysObjectID string, store Store) error {
	typ, err := store.TypeBySysObjectID(ctx, sysObjectID)
	if errors.Is(err, db.ErrNotFound) {
		slog.Debug("system plugin: unregistered sysObjectID",
			"netbox", n.Sysname, "sysobjectid", p.nameOf(sysObjectID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("system plugin: %w", err)
	}
	if n.TypeID != nil && *n.TypeID == typ.ID {
		return nil
	}

	if err := store.SetType(ctx, n.ID, &typ.ID); err != nil {
		return fmt.Errorf("system plugin: %w", err)
	}
	ev := &models.Event{
		Source:    "ipdevpoll",
		Target:    "eventEngine",
		NetboxID:  n.ID,
		EventType: models.EventTypeChanged,
		State:     models.StateStateless,
		Severity:  models.SeverityLow,
		Vars: map[string]string{
			"sysname":     n.Sysname,
			"newtype":     typ.Name,
			"sysobjectid": p.nameOf(sysObjectID),
		},
	}
	if err := store.PostEvent(ctx, ev); err != nil {
		return fmt.Errorf("system plugin: %w", err)
	}
	n.TypeID = &typ.ID
	return nil
}

// nameOf renders an OID through the MIB resolver when one is wired.
func (p *System) nameOf(oid string) string {
	if p.names == nil {
		return oid
	}
	return p.names.Name(oid)
}

// oidOf normalizes the PDU name to a dotless OID for comparison.
func oidOf(pdu gosnmp.SnmpPDU) string {
	if len(pdu.Name) > 0 && pdu.Name[0] == '.' {
		return pdu.Name[1:]
	}
	return pdu.Name
}
