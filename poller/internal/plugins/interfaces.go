package plugins

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/pkg/snmp"
)

// ifTable and ifXTable columns.
const (
	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfType        = "1.3.6.1.2.1.2.2.1.3"
	oidIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	oidIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	oidIfName        = "1.3.6.1.2.1.31.1.1.1.1"
	oidIfHighSpeed   = "1.3.6.1.2.1.31.1.1.1.15"
)

// Interfaces walks IF-MIB and keeps the interface table current. Operational
// status flips produce linkState events.
type Interfaces struct{}

func NewInterfaces() *Interfaces { return &Interfaces{} }

func (p *Interfaces) Name() string { return "interfaces" }

func (p *Interfaces) CanHandle(n *models.Netbox) bool { return snmpBox(n) }

func (p *Interfaces) Handle(ctx context.Context, sess snmp.Walker, n *models.Netbox, store Store) error {
	known, err := store.Interfaces(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("interfaces plugin: %w", err)
	}
	prevOper := make(map[int]int, len(known))
	for _, ifc := range known {
		prevOper[ifc.Ifindex] = ifc.OperStatus
	}

	collected := make(map[int]*models.Interface)
	at := func(ifindex int) *models.Interface {
		ifc, ok := collected[ifindex]
		if !ok {
			ifc = &models.Interface{NetboxID: n.ID, Ifindex: ifindex}
			collected[ifindex] = ifc
		}
		return ifc
	}

	columns := map[string]func(ifc *models.Interface, pdu gosnmp.SnmpPDU){
		oidIfDescr: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			ifc.Ifdescr = snmp.PduString(pdu)
		},
		oidIfType: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			ifc.IfType = int(snmp.PduInt(pdu))
		},
		oidIfSpeed: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			if ifc.Speed == 0 {
				ifc.Speed = snmp.PduInt(pdu)
			}
		},
		oidIfAdminStatus: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			ifc.AdminStatus = int(snmp.PduInt(pdu))
		},
		oidIfOperStatus: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			ifc.OperStatus = int(snmp.PduInt(pdu))
		},
		oidIfName: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			ifc.Ifname = snmp.PduString(pdu)
		},
		oidIfHighSpeed: func(ifc *models.Interface, pdu gosnmp.SnmpPDU) {
			// ifHighSpeed is Mbit/s and wins over the 32-bit ifSpeed.
			if mbit := snmp.PduInt(pdu); mbit > 0 {
				ifc.Speed = mbit * 1_000_000
			}
		},
	}
	for column, apply := range columns {
		column, apply := column, apply
		err := sess.BulkWalk(column, func(pdu gosnmp.SnmpPDU) error {
			ifindex, err := strconv.Atoi(snmp.IndexOf(column, pdu))
			if err != nil {
				return nil
			}
			apply(at(ifindex), pdu)
			return nil
		})
		if err != nil {
			// ifXTable is optional equipment; the base table is not.
			if strings.HasPrefix(column, "1.3.6.1.2.1.31.") {
				continue
			}
			return fmt.Errorf("interfaces plugin: %w", err)
		}
	}

	indexes := make([]int, 0, len(collected))
	for ifindex := range collected {
		indexes = append(indexes, ifindex)
	}
	sort.Ints(indexes)

	for _, ifindex := range indexes {
		ifc := collected[ifindex]
		if ifc.Ifname == "" {
			ifc.Ifname = ifc.Ifdescr
		}
		if err := store.UpsertInterface(ctx, ifc); err != nil {
			return fmt.Errorf("interfaces plugin: %w", err)
		}
		if err := p.noteLinkChange(ctx, n, ifc, prevOper, store); err != nil {
			return err
		}
	}
	return nil
}

func (p *Interfaces) noteLinkChange(ctx context.Context, n *models.Netbox, ifc *models.Interface, prevOper map[int]int, store Store) error {
	prev, seen := prevOper[ifc.Ifindex]
	if !seen || prev == ifc.OperStatus {
		return nil
	}
	// Only up<->down flips are eventworthy; ignore testing/dormant noise.
	var state string
	switch {
	case ifc.OperStatus == models.StatusDown && prev == models.StatusUp:
		state = models.StateStart
	case ifc.OperStatus == models.StatusUp && prev == models.StatusDown:
		state = models.StateEnd
	default:
		return nil
	}
	ev := &models.Event{
		Source:    "ipdevpoll",
		Target:    "eventEngine",
		NetboxID:  n.ID,
		SubID:     strconv.Itoa(ifc.Ifindex),
		EventType: models.EventLinkState,
		State:     state,
		Severity:  models.SeverityMedium,
		Vars: map[string]string{
			"sysname": n.Sysname,
			"ifname":  ifc.Ifname,
		},
	}
	if err := store.PostEvent(ctx, ev); err != nil {
		return fmt.Errorf("interfaces plugin: %w", err)
	}
	return nil
}
