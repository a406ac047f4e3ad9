package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/pkg/snmp"
)

// IP-MIB address tables: the version-agnostic ipAddressTable first, with the
// old IPv4-only ipAddrTable as fallback for equipment that lacks it.
const (
	oidIPAddressIfIndex = "1.3.6.1.2.1.4.34.1.3"
	oidIPAddressPrefix  = "1.3.6.1.2.1.4.34.1.5"
	oidIPAdEntIfIndex   = "1.3.6.1.2.1.4.20.1.2"
	oidIPAdEntNetMask   = "1.3.6.1.2.1.4.20.1.3"
)

// vlanPattern matches interface names carrying a VLAN number, like "Vlan42"
// or "Vl42". Routing switches from several vendors name interfaces this way.
var vlanPattern = regexp.MustCompile(`(?i)^Vl(an)?(\d+)`)

// Prefix collects router port addresses and the prefixes they live in. A
// prefix found on an interface whose name matches vlanPattern is bound to
// that VLAN.
type Prefix struct {
	ignored []*net.IPNet
}

// NewPrefix builds the plugin with the configured ignore list: a comma or
// space separated list of CIDRs whose prefixes are never recorded. Invalid
// entries are logged and skipped.
func NewPrefix(ignored string) *Prefix {
	p := &Prefix{}
	for _, item := range strings.FieldsFunc(ignored, func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		_, ipnet, err := net.ParseCIDR(item)
		if err != nil {
			slog.Error("prefix plugin: ignoring invalid prefix in ignore list",
				"prefix", item)
			continue
		}
		p.ignored = append(p.ignored, ipnet)
	}
	return p
}

func (p *Prefix) Name() string { return "prefix" }

func (p *Prefix) CanHandle(n *models.Netbox) bool { return snmpBox(n) }

// portAddress is one collected (interface, address, prefix) triple.
type portAddress struct {
	ifindex int
	ip      string
	cidr    string
}

func (p *Prefix) Handle(ctx context.Context, sess snmp.Walker, n *models.Netbox, store Store) error {
	addrs, err := collectIPAddressTable(sess)
	if err != nil || len(addrs) == 0 {
		if err != nil {
			slog.Debug("prefix plugin: ipAddressTable failed, falling back",
				"netbox", n.Sysname, "err", err)
		}
		addrs, err = collectIPAddrTable(sess)
		if err != nil {
			return fmt.Errorf("prefix plugin: %w", err)
		}
	}

	vlans, err := p.vlanInterfaces(ctx, n, store)
	if err != nil {
		return err
	}

	for _, addr := range addrs {
		if p.shouldIgnore(addr.cidr) {
			slog.Debug("prefix plugin: ignoring prefix as configured",
				"prefix", addr.cidr)
			continue
		}
		var vlanID *int64
		if v, ok := vlans[addr.ifindex]; ok {
			id, err := store.EnsureVlan(ctx, v, "lan")
			if err != nil {
				return fmt.Errorf("prefix plugin: %w", err)
			}
			vlanID = &id
		}
		prefixID, err := store.UpsertPrefix(ctx, addr.cidr, vlanID, "lan")
		if err != nil {
			return fmt.Errorf("prefix plugin: %w", err)
		}
		if err := store.SetGwPortPrefix(ctx, n.ID, addr.ifindex, prefixID, addr.ip); err != nil {
			return fmt.Errorf("prefix plugin: %w", err)
		}
	}
	return nil
}

// vlanInterfaces returns {ifindex: vlan} for the stored interfaces whose
// names match the VLAN naming convention.
func (p *Prefix) vlanInterfaces(ctx context.Context, n *models.Netbox, store Store) (map[int]int, error) {
	known, err := store.Interfaces(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("prefix plugin: %w", err)
	}
	vlans := make(map[int]int)
	for _, ifc := range known {
		m := vlanPattern.FindStringSubmatch(ifc.Ifname)
		if m == nil {
			m = vlanPattern.FindStringSubmatch(ifc.Ifdescr)
		}
		if m == nil {
			continue
		}
		if vlan, err := strconv.Atoi(m[2]); err == nil {
			vlans[ifc.Ifindex] = vlan
		}
	}
	return vlans, nil
}

func (p *Prefix) shouldIgnore(cidr string) bool {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	for _, ignored := range p.ignored {
		if ignored.Contains(ip) {
			return true
		}
	}
	return false
}

// collectIPAddressTable walks the version-agnostic ipAddressTable. The row
// index encodes the address; ipAddressPrefix points at the prefix row whose
// last OID component is the prefix length.
func collectIPAddressTable(sess snmp.Walker) ([]portAddress, error) {
	ifindexes := make(map[string]int)
	err := sess.BulkWalk(oidIPAddressIfIndex, func(pdu gosnmp.SnmpPDU) error {
		if ip := parseInetAddressIndex(snmp.IndexOf(oidIPAddressIfIndex, pdu)); ip != nil {
			ifindexes[ip.String()] = int(snmp.PduInt(pdu))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []portAddress
	err = sess.BulkWalk(oidIPAddressPrefix, func(pdu gosnmp.SnmpPDU) error {
		ip := parseInetAddressIndex(snmp.IndexOf(oidIPAddressPrefix, pdu))
		if ip == nil {
			return nil
		}
		prefixLen, ok := lastOIDComponent(snmp.PduString(pdu))
		if !ok {
			return nil
		}
		ifindex, ok := ifindexes[ip.String()]
		if !ok {
			return nil
		}
		cidr := prefixOf(ip, prefixLen)
		if cidr == "" {
			return nil
		}
		out = append(out, portAddress{ifindex: ifindex, ip: ip.String(), cidr: cidr})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collectIPAddrTable walks the legacy IPv4 ipAddrTable, deriving the prefix
// from the interface netmask.
func collectIPAddrTable(sess snmp.Walker) ([]portAddress, error) {
	ifindexes := make(map[string]int)
	err := sess.BulkWalk(oidIPAdEntIfIndex, func(pdu gosnmp.SnmpPDU) error {
		if ip := net.ParseIP(snmp.IndexOf(oidIPAdEntIfIndex, pdu)); ip != nil {
			ifindexes[ip.String()] = int(snmp.PduInt(pdu))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []portAddress
	err = sess.BulkWalk(oidIPAdEntNetMask, func(pdu gosnmp.SnmpPDU) error {
		ip := net.ParseIP(snmp.IndexOf(oidIPAdEntNetMask, pdu))
		if ip == nil {
			return nil
		}
		mask := net.ParseIP(snmp.PduString(pdu))
		if mask == nil {
			return nil
		}
		ones, _ := net.IPMask(mask.To4()).Size()
		ifindex, ok := ifindexes[ip.String()]
		if !ok {
			return nil
		}
		cidr := prefixOf(ip, ones)
		if cidr == "" {
			return nil
		}
		out = append(out, portAddress{ifindex: ifindex, ip: ip.String(), cidr: cidr})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseInetAddressIndex decodes an InetAddressType.InetAddress row index
// ("1.4.a.b.c.d" for IPv4, "2.16.<16 octets>" for IPv6).
func parseInetAddressIndex(index string) net.IP {
	parts := strings.Split(index, ".")
	if len(parts) < 2 {
		return nil
	}
	addrType := parts[0]
	octets := parts[2:]

	var want int
	switch addrType {
	case "1":
		want = 4
	case "2":
		want = 16
	default:
		return nil
	}
	if len(octets) != want {
		return nil
	}
	ip := make(net.IP, want)
	for i, o := range octets {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 || v > 255 {
			return nil
		}
		ip[i] = byte(v)
	}
	return ip
}

// lastOIDComponent parses the trailing number of an OID value.
func lastOIDComponent(oid string) (int, bool) {
	oid = strings.TrimSuffix(oid, ".")
	i := strings.LastIndex(oid, ".")
	if i < 0 {
		return 0, false
	}
	v, err := strconv.Atoi(oid[i+1:])
	if err != nil {
		return 0, false
	}
	return v, true
}

// prefixOf masks an address down to its network in CIDR form.
func prefixOf(ip net.IP, prefixLen int) string {
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	if prefixLen < 0 || prefixLen > bits {
		return ""
	}
	mask := net.CIDRMask(prefixLen, bits)
	return fmt.Sprintf("%s/%d", ip.Mask(mask), prefixLen)
}
