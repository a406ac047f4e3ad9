package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/pkg/snmp"
)

const (
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"

	// entPhysicalSerialNum of the first chassis entry.
	oidSerial = "1.3.6.1.2.1.47.1.1.1.1.11.1"
)

// TypeStore resolves a sysObjectID to a registered device type.
type TypeStore interface {
	TypeBySysObjectID(ctx context.Context, sysObjectID string) (*models.NetboxType, error)
}

// NewSnmpChecker returns the live connectivity check used by the snmpcheck
// endpoint. The read check fetches the system group plus the chassis serial;
// the write check sets sysLocation to its current value, which proves write
// access without changing anything on the device.
func NewSnmpChecker(types TypeStore, opts snmp.Options) SnmpChecker {
	return func(ctx context.Context, n *models.Netbox) SnmpCheckResponse {
		resp := SnmpCheckResponse{Sysname: n.Sysname}

		sess, err := snmp.ForNetbox(n, false, opts)
		if err != nil {
			resp.SnmpWriteFeedback = err.Error()
			return resp
		}
		defer sess.Close()

		profile := n.PreferredSNMPProfile(false)
		resp.SnmpVersion = profile.SNMPVersion()

		var location string
		err = sess.Get([]string{oidSysName, oidSysObjectID, oidSysLocation, oidSerial},
			func(pdu gosnmp.SnmpPDU) error {
				switch strings.TrimPrefix(pdu.Name, ".") {
				case oidSysName:
					resp.Sysname = snmp.PduString(pdu)
				case oidSysObjectID:
					resp.NetboxType = typeName(ctx, types, snmp.PduString(pdu))
				case oidSysLocation:
					location = snmp.PduString(pdu)
				case oidSerial:
					resp.Serial = snmp.PduString(pdu)
				}
				return nil
			})
		if err != nil {
			resp.SnmpWriteFeedback = fmt.Sprintf("read check failed: %v", err)
			return resp
		}

		resp.SnmpWriteSuccessful, resp.SnmpWriteFeedback = writeCheck(n, opts, location)
		return resp
	}
}

// writeCheck opens a write session and sets sysLocation back to the value
// just read.
func writeCheck(n *models.Netbox, opts snmp.Options, location string) (bool, string) {
	wsess, err := snmp.ForNetbox(n, true, opts)
	if err != nil {
		return false, fmt.Sprintf("no write profile: %v", err)
	}
	defer wsess.Close()

	if err := wsess.Set(oidSysLocation, location); err != nil {
		return false, fmt.Sprintf("write check failed: %v", err)
	}
	return true, "write access verified"
}

func typeName(ctx context.Context, types TypeStore, sysObjectID string) string {
	if types == nil || sysObjectID == "" {
		return ""
	}
	typ, err := types.TypeBySysObjectID(ctx, sysObjectID)
	if errors.Is(err, db.ErrNotFound) {
		return ""
	}
	if err != nil {
		slog.Warn("type lookup failed during snmpcheck", "sysobjectid", sysObjectID, "err", err)
		return ""
	}
	return typ.Name
}
