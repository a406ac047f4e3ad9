package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/arpcache"
)

// fakeWalker answers Get and BulkWalk from canned PDUs.
type fakeWalker struct {
	values map[string]gosnmp.SnmpPDU   // exact OID -> pdu
	trees  map[string][]gosnmp.SnmpPDU // walk root -> pdus
	sets   []string
}

func (f *fakeWalker) Get(oids []string, cb func(pdu gosnmp.SnmpPDU) error) error {
	for _, oid := range oids {
		if pdu, ok := f.values[oid]; ok {
			if err := cb(pdu); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeWalker) BulkWalk(root string, cb func(pdu gosnmp.SnmpPDU) error) error {
	for _, pdu := range f.trees[root] {
		if err := cb(pdu); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWalker) Set(oid string, value string) error {
	f.sets = append(f.sets, oid+"="+value)
	return nil
}

func pduStr(oid, value string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.OctetString, Value: []byte(value)}
}

func pduInt(oid string, value int) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.Integer, Value: value}
}

// fakeStore records everything the plugins write.
type fakeStore struct {
	sysnames   map[int64]string
	collected  map[int64]map[string]string
	types      map[string]*models.NetboxType
	setTypes   map[int64]int64
	interfaces map[int64][]models.Interface
	vlans      map[string]int64
	prefixes   map[string]int64
	anonVlans  int
	gwports    []string
	arpSyncs   int
	sightings  []db.ArpSighting
	events     []*models.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sysnames:   make(map[int64]string),
		collected:  make(map[int64]map[string]string),
		types:      make(map[string]*models.NetboxType),
		setTypes:   make(map[int64]int64),
		interfaces: make(map[int64][]models.Interface),
		vlans:      make(map[string]int64),
		prefixes:   make(map[string]int64),
	}
}

func (f *fakeStore) SaveCollected(ctx context.Context, netboxID int64, sysname string, data map[string]string) error {
	f.sysnames[netboxID] = sysname
	f.collected[netboxID] = data
	return nil
}

func (f *fakeStore) TypeBySysObjectID(ctx context.Context, sysObjectID string) (*models.NetboxType, error) {
	if t, ok := f.types[sysObjectID]; ok {
		return t, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) SetType(ctx context.Context, netboxID int64, typeID *int64) error {
	f.setTypes[netboxID] = *typeID
	return nil
}

func (f *fakeStore) Interfaces(ctx context.Context, netboxID int64) ([]models.Interface, error) {
	return f.interfaces[netboxID], nil
}

func (f *fakeStore) UpsertInterface(ctx context.Context, ifc *models.Interface) error {
	for i, known := range f.interfaces[ifc.NetboxID] {
		if known.Ifindex == ifc.Ifindex {
			f.interfaces[ifc.NetboxID][i] = *ifc
			return nil
		}
	}
	f.interfaces[ifc.NetboxID] = append(f.interfaces[ifc.NetboxID], *ifc)
	return nil
}

func (f *fakeStore) EnsureVlan(ctx context.Context, vlan int, netType string) (int64, error) {
	key := fmt.Sprintf("%d", vlan)
	if id, ok := f.vlans[key]; ok {
		return id, nil
	}
	id := int64(len(f.vlans) + 1)
	f.vlans[key] = id
	return id, nil
}

func (f *fakeStore) UpsertPrefix(ctx context.Context, netAddress string, vlanID *int64, netType string) (int64, error) {
	if id, ok := f.prefixes[netAddress]; ok {
		return id, nil
	}
	if vlanID == nil {
		f.anonVlans++
	}
	id := int64(len(f.prefixes) + 100)
	f.prefixes[netAddress] = id
	return id, nil
}

func (f *fakeStore) SetGwPortPrefix(ctx context.Context, netboxID int64, ifindex int, prefixID int64, gwIP string) error {
	f.gwports = append(f.gwports, fmt.Sprintf("%d/%d/%s", ifindex, prefixID, gwIP))
	return nil
}

func (f *fakeStore) SyncArp(ctx context.Context, netboxID int64, sysname string, sightings []db.ArpSighting, now time.Time) error {
	f.arpSyncs++
	f.sightings = sightings
	return nil
}

func (f *fakeStore) PostEvent(ctx context.Context, ev *models.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func testNetbox() *models.Netbox {
	return &models.Netbox{
		ID:         1,
		IP:         "10.0.0.1",
		Sysname:    "gw.example.org",
		CategoryID: "GW",
		Profiles: []models.ManagementProfile{
			{ID: 1, Protocol: models.ProtocolSNMP, Version: 2, Community: "public"},
		},
	}
}

func TestSystemPluginCollectsAndResolvesType(t *testing.T) {
	walker := &fakeWalker{values: map[string]gosnmp.SnmpPDU{
		oidSysDescr:    pduStr(oidSysDescr, "Cisco IOS"),
		oidSysObjectID: {Name: "." + oidSysObjectID, Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.9.1.122"},
		oidSysUpTime:   pduInt(oidSysUpTime, 4711),
		oidSysName:     pduStr(oidSysName, "gw1.example.org"),
	}}
	store := newFakeStore()
	store.types["1.3.6.1.4.1.9.1.122"] = &models.NetboxType{ID: 9, Name: "catalyst"}

	n := testNetbox()
	if err := NewSystem(nil).Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if store.sysnames[1] != "gw1.example.org" {
		t.Errorf("sysname = %q", store.sysnames[1])
	}
	if store.collected[1]["sysDescr"] != "Cisco IOS" {
		t.Errorf("collected = %v", store.collected[1])
	}
	if store.setTypes[1] != 9 {
		t.Errorf("type = %d, want 9", store.setTypes[1])
	}
	if len(store.events) != 1 || store.events[0].EventType != models.EventTypeChanged {
		t.Fatalf("events = %+v", store.events)
	}
	if store.events[0].Vars["newtype"] != "catalyst" {
		t.Errorf("event vars = %v", store.events[0].Vars)
	}
}

func TestSystemPluginNoEventWhenTypeUnchanged(t *testing.T) {
	walker := &fakeWalker{values: map[string]gosnmp.SnmpPDU{
		oidSysObjectID: {Name: "." + oidSysObjectID, Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.9.1.122"},
	}}
	store := newFakeStore()
	store.types["1.3.6.1.4.1.9.1.122"] = &models.NetboxType{ID: 9, Name: "catalyst"}

	n := testNetbox()
	typeID := int64(9)
	n.TypeID = &typeID

	if err := NewSystem(nil).Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.events) != 0 {
		t.Errorf("unexpected events: %+v", store.events)
	}
}

func TestInterfacesPluginUpsertsAndSignalsLinkChange(t *testing.T) {
	walker := &fakeWalker{trees: map[string][]gosnmp.SnmpPDU{
		oidIfDescr:       {pduStr(oidIfDescr+".1", "GigabitEthernet0/1")},
		oidIfOperStatus:  {pduInt(oidIfOperStatus+".1", models.StatusDown)},
		oidIfAdminStatus: {pduInt(oidIfAdminStatus+".1", models.StatusUp)},
		oidIfName:        {pduStr(oidIfName+".1", "Gi0/1")},
		oidIfHighSpeed:   {pduInt(oidIfHighSpeed+".1", 1000)},
	}}
	store := newFakeStore()
	store.interfaces[1] = []models.Interface{
		{NetboxID: 1, Ifindex: 1, Ifname: "Gi0/1", OperStatus: models.StatusUp},
	}

	n := testNetbox()
	if err := NewInterfaces().Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ifc := store.interfaces[1][0]
	if ifc.Speed != 1_000_000_000 {
		t.Errorf("Speed = %d, want 1Gbit", ifc.Speed)
	}
	if ifc.OperStatus != models.StatusDown {
		t.Errorf("OperStatus = %d", ifc.OperStatus)
	}
	if len(store.events) != 1 {
		t.Fatalf("events = %+v", store.events)
	}
	ev := store.events[0]
	if ev.EventType != models.EventLinkState || ev.State != models.StateStart || ev.SubID != "1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPrefixPluginBindsVlanAndIgnores(t *testing.T) {
	// Legacy ipAddrTable only: 10.0.42.1/24 on ifindex 3, 127.0.0.1/8 ignored.
	walker := &fakeWalker{trees: map[string][]gosnmp.SnmpPDU{
		oidIPAdEntIfIndex: {
			pduInt(oidIPAdEntIfIndex+".10.0.42.1", 3),
			pduInt(oidIPAdEntIfIndex+".127.0.0.1", 1),
		},
		oidIPAdEntNetMask: {
			pduStr(oidIPAdEntNetMask+".10.0.42.1", "255.255.255.0"),
			pduStr(oidIPAdEntNetMask+".127.0.0.1", "255.0.0.0"),
		},
	}}
	store := newFakeStore()
	store.interfaces[1] = []models.Interface{
		{NetboxID: 1, Ifindex: 3, Ifname: "Vlan42"},
	}

	n := testNetbox()
	plugin := NewPrefix("127.0.0.0/8, fe80::/16")
	if err := plugin.Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if _, ok := store.prefixes["10.0.42.0/24"]; !ok {
		t.Errorf("prefixes = %v, want 10.0.42.0/24", store.prefixes)
	}
	if _, ok := store.prefixes["127.0.0.0/8"]; ok {
		t.Errorf("ignored prefix was recorded: %v", store.prefixes)
	}
	if _, ok := store.vlans["42"]; !ok {
		t.Errorf("vlans = %v, want 42", store.vlans)
	}
	if len(store.gwports) != 1 || !strings.HasPrefix(store.gwports[0], "3/") {
		t.Errorf("gwports = %v", store.gwports)
	}
}

func TestPrefixPluginUnresolvedVlanStaysAnonymous(t *testing.T) {
	walker := &fakeWalker{trees: map[string][]gosnmp.SnmpPDU{
		oidIPAdEntIfIndex: {pduInt(oidIPAdEntIfIndex+".10.1.0.1", 4)},
		oidIPAdEntNetMask: {pduStr(oidIPAdEntNetMask+".10.1.0.1", "255.255.0.0")},
	}}
	store := newFakeStore()
	store.interfaces[1] = []models.Interface{
		{NetboxID: 1, Ifindex: 4, Ifname: "GigabitEthernet0/1"},
	}

	n := testNetbox()
	plugin := NewPrefix("")
	for i := 0; i < 3; i++ {
		if err := plugin.Handle(context.Background(), walker, n, store); err != nil {
			t.Fatalf("Handle run %d: %v", i, err)
		}
	}

	if len(store.vlans) != 0 {
		t.Errorf("vlans = %v, want none for an unresolvable interface", store.vlans)
	}
	if store.anonVlans != 1 {
		t.Errorf("anonymous vlan records = %d, want exactly 1 across re-syncs", store.anonVlans)
	}
}

func TestPrefixVlanPattern(t *testing.T) {
	tests := []struct {
		ifname string
		vlan   int
		match  bool
	}{
		{"Vlan42", 42, true},
		{"Vl3", 3, true},
		{"vlan100", 100, true},
		{"GigabitEthernet0/1", 0, false},
		{"Loopback0", 0, false},
	}
	for _, tt := range tests {
		m := vlanPattern.FindStringSubmatch(tt.ifname)
		if (m != nil) != tt.match {
			t.Errorf("%q: match = %v, want %v", tt.ifname, m != nil, tt.match)
			continue
		}
		if m != nil && m[2] != fmt.Sprintf("%d", tt.vlan) {
			t.Errorf("%q: vlan = %s, want %d", tt.ifname, m[2], tt.vlan)
		}
	}
}

func TestArpPluginSyncsAndCaches(t *testing.T) {
	walker := &fakeWalker{trees: map[string][]gosnmp.SnmpPDU{
		oidIPNetToPhysical: {
			{
				Name:  "." + oidIPNetToPhysical + ".3.1.4.10.0.0.5",
				Type:  gosnmp.OctetString,
				Value: []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			},
		},
	}}
	store := newFakeStore()
	cache := arpcache.New(arpcache.NewMemKV(), time.Hour)
	plugin := NewArp(cache)

	n := testNetbox()
	if err := plugin.Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if store.arpSyncs != 1 {
		t.Fatalf("arpSyncs = %d, want 1", store.arpSyncs)
	}
	want := db.ArpSighting{IP: "10.0.0.5", Mac: "00:11:22:33:44:55"}
	if len(store.sightings) != 1 || store.sightings[0] != want {
		t.Errorf("sightings = %v", store.sightings)
	}

	// Identical second run hits the fingerprint cache and skips the sync.
	if err := plugin.Handle(context.Background(), walker, n, store); err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if store.arpSyncs != 1 {
		t.Errorf("arpSyncs = %d after unchanged run, want 1", store.arpSyncs)
	}
}

func TestArpPluginFallsBackToMediaTable(t *testing.T) {
	walker := &fakeWalker{trees: map[string][]gosnmp.SnmpPDU{
		oidIPNetToMedia: {
			{
				Name:  "." + oidIPNetToMedia + ".2.10.0.0.9",
				Type:  gosnmp.OctetString,
				Value: []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			},
		},
	}}
	store := newFakeStore()
	plugin := NewArp(nil)

	if err := plugin.Handle(context.Background(), walker, testNetbox(), store); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.sightings) != 1 || store.sightings[0].IP != "10.0.0.9" {
		t.Errorf("sightings = %v", store.sightings)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewSystem(nil))
	reg.Register(NewInterfaces())

	if _, err := reg.Get("system"); err != nil {
		t.Errorf("Get(system): %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Errorf("Get(nope) succeeded")
	}
	names := reg.Names()
	if !sort.StringsAreSorted(names) || len(names) != 2 {
		t.Errorf("Names = %v", names)
	}
}
