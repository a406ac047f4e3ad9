package snmp

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/models"
)

// ForNetbox opens a session against a netbox using its preferred read
// profile. requireWrite selects a write-enabled profile instead.
func ForNetbox(n *models.Netbox, requireWrite bool, opts Options) (*Session, error) {
	profile := n.PreferredSNMPProfile(requireWrite)
	if profile == nil {
		return nil, fmt.Errorf("snmp: %s has no snmp profile", n.Sysname)
	}
	return NewSession(n.IP, profile, opts)
}

// PduString renders a PDU value as a string. Octet strings arrive as byte
// slices; object identifiers keep their leading dot stripped.
func PduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		if pdu.Type == gosnmp.ObjectIdentifier {
			return strings.TrimPrefix(v, ".")
		}
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// PduInt renders a numeric PDU value, 0 when it is not numeric.
func PduInt(pdu gosnmp.SnmpPDU) int64 {
	return gosnmp.ToBigInt(pdu.Value).Int64()
}

// IndexOf returns the table index part of a walked OID: the part of pdu.Name
// after the column root. Empty when the OID is not under root.
func IndexOf(root string, pdu gosnmp.SnmpPDU) string {
	name := strings.TrimPrefix(pdu.Name, ".")
	root = strings.TrimPrefix(root, ".")
	if !strings.HasPrefix(name, root+".") {
		return ""
	}
	return strings.TrimPrefix(name, root+".")
}
