package models

import (
	"time"
)

// Netbox up-state values. "shadow" means the box is unreachable because
// something between it and the monitor is down, not the box itself.
const (
	UpUp     = "y"
	UpDown   = "n"
	UpShadow = "s"
)

// Netbox is a managed IP device — the central record of the whole system.
type Netbox struct {
	ID         int64
	IP         string
	Sysname    string
	RoomID     string
	CategoryID string
	OrgID      string
	TypeID     *int64

	Up         string
	UpSince    time.Time
	Discovered time.Time
	DeletedAt  *time.Time

	// Data holds free-form key/value attributes collected by plugins
	// (chassis serial, software version, ...).
	Data map[string]string

	Profiles []ManagementProfile
}

// ShortSysname returns the sysname with the domain part chopped off, falling
// back to the IP address when no sysname has been collected yet.
func (n *Netbox) ShortSysname() string {
	name := n.Sysname
	if name == "" {
		return n.IP
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

// Deleted reports whether the box has been soft-deleted from the inventory.
func (n *Netbox) Deleted() bool {
	return n.DeletedAt != nil
}

// Management protocols supported by a ManagementProfile.
const (
	ProtocolSNMP   = "snmp"   // v1 or v2c, community based
	ProtocolSNMPv3 = "snmpv3" // USM based
)

// ManagementProfile holds the credentials used to talk to a netbox. Profiles
// are shared between boxes; a box may carry several and the poller picks the
// best one for the task at hand.
type ManagementProfile struct {
	ID       int64
	Name     string
	Protocol string

	// SNMP v1/v2c fields.
	Community string
	Version   int // 1 or 2

	// SNMPv3 fields.
	SecLevel     string // noAuthNoPriv | authNoPriv | authPriv
	SecName      string
	AuthProtocol string
	AuthPassword string
	PrivProtocol string
	PrivPassword string

	Port  int
	Write bool
}

// SNMPVersion returns the effective SNMP version of the profile: 1, 2 or 3.
func (p *ManagementProfile) SNMPVersion() int {
	if p.Protocol == ProtocolSNMPv3 {
		return 3
	}
	if p.Version == 1 {
		return 1
	}
	return 2
}

// PreferredSNMPProfile picks the SNMP profile with the highest available
// version. Read-only profiles are preferred unless requireWrite is set, in
// which case only write-enabled profiles are considered. Returns nil when no
// suitable profile exists.
func (n *Netbox) PreferredSNMPProfile(requireWrite bool) *ManagementProfile {
	var best *ManagementProfile
	for i := range n.Profiles {
		p := &n.Profiles[i]
		if p.Protocol != ProtocolSNMP && p.Protocol != ProtocolSNMPv3 {
			continue
		}
		if requireWrite && !p.Write {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		if p.SNMPVersion() > best.SNMPVersion() {
			best = p
			continue
		}
		// Same version: prefer read-only unless writing was asked for.
		if p.SNMPVersion() == best.SNMPVersion() && !requireWrite && best.Write && !p.Write {
			best = p
		}
	}
	return best
}

// Category classifies a netbox (GW, SW, SRV, ...). ReqSNMP marks categories
// whose members are expected to answer SNMP; the poller skips the rest.
type Category struct {
	ID          string
	Description string
	ReqSNMP     bool
}

// Vendor is an equipment manufacturer.
type Vendor struct {
	ID string
}

// NetboxType is a specific product, recognised by its sysObjectID.
type NetboxType struct {
	ID          int64
	VendorID    string
	Name        string
	SysObjectID string
	Description string
}
