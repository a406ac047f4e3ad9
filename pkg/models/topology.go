package models

import "time"

// Interface is a physical or virtual network interface on a netbox,
// as collected from IF-MIB.
type Interface struct {
	ID          int64
	NetboxID    int64
	Ifindex     int
	Ifname      string
	Ifdescr     string
	IfType      int
	Speed       int64 // bits per second
	AdminStatus int   // 1 up, 2 down, 3 testing
	OperStatus  int
}

// Interface status values from IF-MIB.
const (
	StatusUp   = 1
	StatusDown = 2
)

// Prefix is an IP prefix (CIDR) known to the system, always tied to a vlan
// record even when the vlan number is unknown.
type Prefix struct {
	ID         int64
	NetAddress string // CIDR form
	VlanID     *int64
}

// GwPortPrefix is a router port address: the gateway IP an interface holds
// within a prefix.
type GwPortPrefix struct {
	InterfaceID int64
	PrefixID    int64
	GwIP        string
}

// Vlan is an IP broadcast domain. Vlan 0 on the wire means "unknown".
type Vlan struct {
	ID          int64
	Vlan        *int
	NetType     string // lan, core, link, elink, loopback, ...
	OrgID       *string
	Description string
}

// Arp is one (ip, mac) sighting interval on a router. EndTime is nil while
// the record is still open, i.e. the address was present in the last
// collection run.
type Arp struct {
	ID        int64
	NetboxID  int64
	Sysname   string
	IP        string
	Mac       string
	StartTime time.Time
	EndTime   *time.Time
}

// Open reports whether the sighting is still current.
func (a *Arp) Open() bool { return a.EndTime == nil }

// Cam is one (switch port, mac) sighting interval, the switch-side twin of
// Arp. Together they drive the machine tracker.
type Cam struct {
	ID        int64
	NetboxID  int64
	Sysname   string
	Ifindex   int
	Port      string
	Mac       string
	StartTime time.Time
	EndTime   *time.Time
}

// Open reports whether the sighting is still current.
func (c *Cam) Open() bool { return c.EndTime == nil }
