// Package checker implements the service checks servicemond runs: each
// checker probes one protocol and reports whether the service answers.
package checker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// DefaultTimeout bounds a single probe unless the service sets its own
// "timeout" property.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of one probe.
type Result struct {
	Up   bool
	Info string

	// Version is whatever version string the protocol exposes (greeting
	// banner, server header). Empty when the protocol has none.
	Version string
}

// Checker probes one service type. Implementations must respect ctx.
type Checker interface {
	Type() string
	Check(ctx context.Context, netbox *models.Netbox, service *models.Service) Result
}

// Registry maps handler names to checkers.
type Registry struct {
	checkers map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a checker; duplicate registration is a programming error.
func (r *Registry) Register(c Checker) {
	if _, dup := r.checkers[c.Type()]; dup {
		panic(fmt.Sprintf("checker: duplicate registration of %q", c.Type()))
	}
	r.checkers[c.Type()] = c
}

// Get returns the checker for a service handler name.
func (r *Registry) Get(handler string) (Checker, error) {
	c, ok := r.checkers[handler]
	if !ok {
		return nil, fmt.Errorf("checker: no checker for handler %q", handler)
	}
	return c, nil
}

// Types returns the registered handler names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.checkers))
	for t := range r.checkers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// timeoutOf reads the per-service timeout property, falling back to the
// default.
func timeoutOf(s *models.Service) time.Duration {
	if v := s.Property("timeout", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// down renders an error into a DOWN result.
func down(err error) Result {
	return Result{Up: false, Info: err.Error()}
}
