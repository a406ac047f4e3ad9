package plugins

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/arpcache"
	"github.com/nav-nms/nav/pkg/snmp"
)

// ipNetToPhysicalTable (version-agnostic) with the deprecated
// ipNetToMediaTable as fallback.
const (
	oidIPNetToPhysical = "1.3.6.1.2.1.4.35.1.4"
	oidIPNetToMedia    = "1.3.6.1.2.1.4.22.1.2"
)

// Arp collects the router's neighbor table and keeps the arp sighting
// intervals current. A fingerprint cache skips the database sync when the
// neighbor set is identical to the previous run's.
type Arp struct {
	cache *arpcache.Cache
	now   func() time.Time
}

func NewArp(cache *arpcache.Cache) *Arp {
	return &Arp{cache: cache, now: time.Now}
}

func (p *Arp) Name() string { return "arp" }

// CanHandle limits neighbor collection to routers.
func (p *Arp) CanHandle(n *models.Netbox) bool {
	return snmpBox(n) && (n.CategoryID == "GW" || n.CategoryID == "GSW")
}

func (p *Arp) Handle(ctx context.Context, sess snmp.Walker, n *models.Netbox, store Store) error {
	sightings, err := collectNeighbors(sess)
	if err != nil {
		return fmt.Errorf("arp plugin: %w", err)
	}

	fingerprint := fingerprintOf(sightings)
	if p.cache != nil && p.cache.Unchanged(ctx, n.ID, fingerprint) {
		slog.Debug("arp plugin: neighbor set unchanged, skipping sync",
			"netbox", n.Sysname, "count", len(sightings))
		return nil
	}

	if err := store.SyncArp(ctx, n.ID, n.Sysname, sightings, p.now()); err != nil {
		return fmt.Errorf("arp plugin: %w", err)
	}
	if p.cache != nil {
		if err := p.cache.Remember(ctx, n.ID, fingerprint); err != nil {
			slog.Warn("arp plugin: neighbor cache write failed", "err", err)
		}
	}
	return nil
}

func collectNeighbors(sess snmp.Walker) ([]db.ArpSighting, error) {
	var out []db.ArpSighting
	err := sess.BulkWalk(oidIPNetToPhysical, func(pdu gosnmp.SnmpPDU) error {
		ip := parseNetToPhysicalIndex(snmp.IndexOf(oidIPNetToPhysical, pdu))
		mac := macOf(pdu)
		if ip != nil && mac != "" {
			out = append(out, db.ArpSighting{IP: ip.String(), Mac: mac})
		}
		return nil
	})
	if err == nil && len(out) > 0 {
		return out, nil
	}

	// Old equipment only speaks the deprecated IPv4 table.
	out = nil
	err = sess.BulkWalk(oidIPNetToMedia, func(pdu gosnmp.SnmpPDU) error {
		index := snmp.IndexOf(oidIPNetToMedia, pdu)
		// Index is ifIndex.a.b.c.d; drop the interface part.
		dot := strings.Index(index, ".")
		if dot < 0 {
			return nil
		}
		ip := net.ParseIP(index[dot+1:])
		mac := macOf(pdu)
		if ip != nil && mac != "" {
			out = append(out, db.ArpSighting{IP: ip.String(), Mac: mac})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseNetToPhysicalIndex decodes ifIndex.InetAddressType.InetAddress.
func parseNetToPhysicalIndex(index string) net.IP {
	dot := strings.Index(index, ".")
	if dot < 0 {
		return nil
	}
	return parseInetAddressIndex(index[dot+1:])
}

// macOf renders a physical-address PDU as the usual colon form.
func macOf(pdu gosnmp.SnmpPDU) string {
	raw, ok := pdu.Value.([]byte)
	if !ok || len(raw) != 6 {
		return ""
	}
	return net.HardwareAddr(raw).String()
}

// fingerprintOf hashes the sorted sighting set so two runs with the same
// neighbors produce the same value regardless of walk order.
func fingerprintOf(sightings []db.ArpSighting) string {
	keys := make([]string, 0, len(sightings))
	for _, s := range sightings {
		keys = append(keys, s.IP+"|"+s.Mac)
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}
