// Package smi resolves MIB object names to OIDs and back. It is a thin veil
// over gosmi; when no MIB modules are loadable the resolver degrades to the
// built-in table of well-known OIDs so collection keeps working.
package smi

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/sleepinggenius2/gosmi"
	"github.com/sleepinggenius2/gosmi/types"
)

// Well-known OIDs the shipped plugins rely on. Present so the poller works
// without any MIB files installed.
var wellKnown = map[string]string{
	"sysDescr":                   "1.3.6.1.2.1.1.1.0",
	"sysObjectID":                "1.3.6.1.2.1.1.2.0",
	"sysUpTime":                  "1.3.6.1.2.1.1.3.0",
	"sysName":                    "1.3.6.1.2.1.1.5.0",
	"sysLocation":                "1.3.6.1.2.1.1.6.0",
	"ifTable":                    "1.3.6.1.2.1.2.2",
	"ifName":                     "1.3.6.1.2.1.31.1.1.1.1",
	"ifHighSpeed":                "1.3.6.1.2.1.31.1.1.1.15",
	"ipAdEntIfIndex":             "1.3.6.1.2.1.4.20.1.2",
	"ipAdEntNetMask":             "1.3.6.1.2.1.4.20.1.3",
	"ipAddressIfIndex":           "1.3.6.1.2.1.4.34.1.3",
	"ipAddressPrefix":            "1.3.6.1.2.1.4.34.1.5",
	"ipNetToMediaPhysAddress":    "1.3.6.1.2.1.4.22.1.2",
	"ipNetToPhysicalPhysAddress": "1.3.6.1.2.1.4.35.1.4",
	"dot1dTpFdbPort":             "1.3.6.1.2.1.17.4.3.1.2",
}

var numericPattern = regexp.MustCompile(`^[0-9.]+$`)

// Resolver maps between object names and numeric OIDs.
type Resolver struct {
	loaded bool

	mu    sync.Mutex
	cache map[string]string
}

// New initializes gosmi with the given module search paths and modules.
// Failures to load modules are logged and leave the resolver in fallback
// mode rather than stopping the poller.
func New(paths, modules []string) *Resolver {
	r := &Resolver{cache: make(map[string]string)}
	if len(modules) == 0 {
		return r
	}

	gosmi.Init()
	for _, path := range paths {
		gosmi.AppendPath(path)
	}
	for _, module := range modules {
		if _, err := gosmi.LoadModule(module); err != nil {
			slog.Warn("smi: module load failed, name lookups limited to built-ins",
				"module", module, "err", err)
			continue
		}
		r.loaded = true
	}
	return r
}

// Lookup resolves an object name (or numeric OID) to its numeric OID,
// without a leading dot. Lookups are cached; misses on names are errors.
func (r *Resolver) Lookup(item string) (string, error) {
	if numericPattern.MatchString(item) {
		return item, nil
	}

	r.mu.Lock()
	cached, ok := r.cache[item]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	numeric, err := r.resolve(item)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.cache[item] = numeric
	r.mu.Unlock()
	return numeric, nil
}

func (r *Resolver) resolve(item string) (string, error) {
	if oid, ok := wellKnown[item]; ok {
		return oid, nil
	}
	if !r.loaded {
		return "", fmt.Errorf("smi: unknown object %q and no MIB modules loaded", item)
	}
	node, err := gosmi.GetNode(item)
	if err != nil {
		return "", fmt.Errorf("smi: lookup %q: %w", item, err)
	}
	return node.RenderNumeric(), nil
}

// Name renders a numeric OID back to a human name when MIBs are loaded,
// otherwise the OID itself.
func (r *Resolver) Name(oid string) string {
	if !r.loaded {
		return oid
	}
	parsed, err := types.OidFromString(oid)
	if err != nil {
		return oid
	}
	node, err := gosmi.GetNodeByOID(parsed)
	if err != nil {
		return oid
	}
	return node.Render(types.RenderName)
}
