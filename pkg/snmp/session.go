// Package snmp wraps gosnmp sessions built from management profiles.
package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/models"
)

// Options are the session-wide SNMP settings from the [snmp] config section.
type Options struct {
	Timeout        time.Duration
	Retries        int
	MaxRepetitions int
}

// Walker is the subset of Session the plugins use, so they can be tested
// against canned PDUs.
type Walker interface {
	Get(oids []string, cb func(pdu gosnmp.SnmpPDU) error) error
	BulkWalk(root string, cb func(pdu gosnmp.SnmpPDU) error) error
	Set(oid string, value string) error
}

// Session is one connected SNMP session against a netbox.
type Session struct {
	conn    *gosnmp.GoSNMP
	maxReps uint32
}

// NewSession connects to target using the given management profile. The
// profile decides version and credentials; opts carry the shared timeout,
// retry and bulk settings.
func NewSession(target string, profile *models.ManagementProfile, opts Options) (*Session, error) {
	if profile == nil {
		return nil, fmt.Errorf("snmp %s: no management profile", target)
	}
	conn := &gosnmp.GoSNMP{
		Target:             target,
		Port:               uint16(profile.Port),
		Transport:          "udp",
		Timeout:            opts.Timeout,
		Retries:            opts.Retries,
		ExponentialTimeout: true,
		MaxOids:            gosnmp.MaxOids,
	}
	if conn.Port == 0 {
		conn.Port = 161
	}

	switch profile.SNMPVersion() {
	case 1:
		conn.Version = gosnmp.Version1
		conn.Community = profile.Community
	case 2:
		conn.Version = gosnmp.Version2c
		conn.Community = profile.Community
	case 3:
		conn.Version = gosnmp.Version3
		conn.SecurityModel = gosnmp.UserSecurityModel
		usm, level, err := usmFromProfile(profile)
		if err != nil {
			return nil, fmt.Errorf("snmp %s: %w", target, err)
		}
		conn.SecurityParameters = usm
		conn.MsgFlags = level
	default:
		return nil, fmt.Errorf("snmp %s: profile %q has no usable version", target, profile.Name)
	}

	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("snmp %s: connect: %w", target, err)
	}
	maxReps := uint32(opts.MaxRepetitions)
	if maxReps == 0 {
		maxReps = 10
	}
	return &Session{conn: conn, maxReps: maxReps}, nil
}

func usmFromProfile(p *models.ManagementProfile) (*gosnmp.UsmSecurityParameters, gosnmp.SnmpV3MsgFlags, error) {
	usm := &gosnmp.UsmSecurityParameters{UserName: p.SecName}
	var flags gosnmp.SnmpV3MsgFlags

	switch strings.ToLower(p.SecLevel) {
	case "noauthnopriv", "":
		flags = gosnmp.NoAuthNoPriv
		return usm, flags, nil
	case "authnopriv":
		flags = gosnmp.AuthNoPriv
	case "authpriv":
		flags = gosnmp.AuthPriv
	default:
		return nil, 0, fmt.Errorf("unknown security level %q", p.SecLevel)
	}

	switch strings.ToUpper(p.AuthProtocol) {
	case "MD5":
		usm.AuthenticationProtocol = gosnmp.MD5
	case "SHA", "":
		usm.AuthenticationProtocol = gosnmp.SHA
	case "SHA-256", "SHA256":
		usm.AuthenticationProtocol = gosnmp.SHA256
	case "SHA-512", "SHA512":
		usm.AuthenticationProtocol = gosnmp.SHA512
	default:
		return nil, 0, fmt.Errorf("unknown auth protocol %q", p.AuthProtocol)
	}
	usm.AuthenticationPassphrase = p.AuthPassword

	if flags == gosnmp.AuthPriv {
		switch strings.ToUpper(p.PrivProtocol) {
		case "DES":
			usm.PrivacyProtocol = gosnmp.DES
		case "AES", "":
			usm.PrivacyProtocol = gosnmp.AES
		case "AES-256", "AES256":
			usm.PrivacyProtocol = gosnmp.AES256
		default:
			return nil, 0, fmt.Errorf("unknown priv protocol %q", p.PrivProtocol)
		}
		usm.PrivacyPassphrase = p.PrivPassword
	}
	return usm, flags, nil
}

// Close shuts down the underlying connection.
func (s *Session) Close() {
	if s.conn != nil && s.conn.Conn != nil {
		s.conn.Conn.Close()
	}
}

// Get fetches exact OIDs, splitting into multiple requests when there are
// more than the protocol allows per PDU. NoSuchObject/NoSuchInstance
// variables are skipped; the callback only sees real values.
func (s *Session) Get(oids []string, cb func(pdu gosnmp.SnmpPDU) error) error {
	if len(oids) == 0 {
		return fmt.Errorf("snmp get: no oids")
	}
	for i := 0; i < len(oids); i += s.conn.MaxOids {
		end := i + s.conn.MaxOids
		if end > len(oids) {
			end = len(oids)
		}
		if err := s.get(oids[i:end], cb); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) get(oids []string, cb func(pdu gosnmp.SnmpPDU) error) error {
	result, err := s.conn.Get(oids)
	if err != nil {
		return fmt.Errorf("snmp get: %w", err)
	}
	if result.Error != gosnmp.NoError {
		return fmt.Errorf("snmp get: response error: %s", result.Error)
	}
	for _, pdu := range result.Variables {
		switch pdu.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
			continue
		}
		if err := cb(pdu); err != nil {
			return err
		}
	}
	return nil
}

// BulkWalk walks the subtree under root with GetBulk, calling cb for each
// PDU. On SNMPv1 sessions it falls back to a plain Walk.
func (s *Session) BulkWalk(root string, cb func(pdu gosnmp.SnmpPDU) error) error {
	walk := s.conn.BulkWalk
	if s.conn.Version == gosnmp.Version1 {
		walk = s.conn.Walk
	}
	s.conn.MaxRepetitions = s.maxReps
	err := walk(root, func(pdu gosnmp.SnmpPDU) error {
		switch pdu.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
			return nil
		}
		return cb(pdu)
	})
	if err != nil {
		return fmt.Errorf("snmp walk %s: %w", root, err)
	}
	return nil
}

// Set writes a string value to an OID. Used by the readonly/write
// connectivity check, which sets an object to its current value.
func (s *Session) Set(oid string, value string) error {
	result, err := s.conn.Set([]gosnmp.SnmpPDU{{
		Name:  oid,
		Type:  gosnmp.OctetString,
		Value: value,
	}})
	if err != nil {
		return fmt.Errorf("snmp set %s: %w", oid, err)
	}
	if result.Error != gosnmp.NoError {
		return fmt.Errorf("snmp set %s: response error: %s", oid, result.Error)
	}
	return nil
}
