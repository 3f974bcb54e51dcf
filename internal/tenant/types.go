// internal/tenant/types.go
//
// Tenant descriptor and the frozen tenant set.
//
// Context
// -------
// A Descriptor is one hosted app found by discovery: its name (which is
// also its URL segment), the entry point that builds its handler chain,
// the public domains it answers for, and the environment variables scoped
// to it.  Descriptors are gathered once at boot and handed to NewSet,
// which applies the configured default app, checks names, and freezes the
// result.  The Set is then shared by every request without locking.
//
// Notes
// -----
//   - Set order is the order discovery supplied.  Every first-match rule in
//     the resolver depends on it, so it must never be re-sorted.
//   - Env is copied on the way in and on the way out.
package tenant

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

var (
	// ErrInvalidName is returned for names that are not a single URL segment.
	ErrInvalidName = errors.New("invalid tenant name")

	// ErrDuplicateName is returned when two descriptors share a name.
	ErrDuplicateName = errors.New("duplicate tenant name")
)

//
// Descriptor
//

// Descriptor describes one hosted app.
type Descriptor struct {
	Name          string     // URL segment, unique within a Set
	Entry         EntryPoint // Builds the handler chain; nil means unloadable
	IsDefault     bool       // Serves requests no other strategy claims
	PublicDomains []string   // Exact Host header values, in priority order
	CrossAccess   bool       // Domain match does not claim exclusive authority
	Path          string     // App directory on disk, informational

	env map[string]string
}

// NewDescriptor builds a Descriptor carrying a private copy of env.
func NewDescriptor(name string, entry EntryPoint, env map[string]string) *Descriptor {
	return &Descriptor{Name: name, Entry: entry, env: maps.Clone(env)}
}

// Env returns a copy of the tenant's scoped environment.
func (d *Descriptor) Env() map[string]string {
	if d.env == nil {
		return map[string]string{}
	}
	return maps.Clone(d.env)
}

// Prefix is the mount point of the tenant, "/<name>".
func (d *Descriptor) Prefix() string { return "/" + d.Name }

// ServesDomain reports whether host is one of the tenant's public domains.
func (d *Descriptor) ServesDomain(host string) bool {
	for _, dom := range d.PublicDomains {
		if dom == host {
			return true
		}
	}
	return false
}

//
// Set
//

// Set is the immutable, ordered collection of tenants served by one process.
type Set struct {
	list   []*Descriptor
	byName map[string]*Descriptor
}

// NewSet validates descs and freezes them into a Set.
//
// When defaultApp is non-empty it becomes the only default: every
// IsDefault flag is cleared first and then set on the matching name.  An
// unknown defaultApp is logged and leaves the set without a default.  When
// defaultApp is empty the flags already on the descriptors are kept.
func NewSet(descs []*Descriptor, defaultApp string, log *zap.Logger) (*Set, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Set{
		list:   make([]*Descriptor, 0, len(descs)),
		byName: make(map[string]*Descriptor, len(descs)),
	}
	for _, d := range descs {
		if d == nil {
			continue
		}
		if err := validName(d.Name); err != nil {
			return nil, err
		}
		if _, dup := s.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}

		cp := *d
		cp.PublicDomains = append([]string(nil), d.PublicDomains...)
		cp.env = maps.Clone(d.env)

		s.list = append(s.list, &cp)
		s.byName[cp.Name] = &cp
	}

	if defaultApp != "" {
		found := false
		for _, d := range s.list {
			d.IsDefault = d.Name == defaultApp
			found = found || d.IsDefault
		}
		if !found {
			log.Error("error setting the default app",
				zap.String("default_app", defaultApp),
				zap.String("reason", "no app with that name"))
		}
	}

	return s, nil
}

// Tenants returns the descriptors in set order.  Callers must not mutate them.
func (s *Set) Tenants() []*Descriptor {
	return append([]*Descriptor(nil), s.list...)
}

// Lookup returns the descriptor named name, or nil.
func (s *Set) Lookup(name string) *Descriptor { return s.byName[name] }

// Len reports the number of tenants.
func (s *Set) Len() int { return len(s.list) }

// Names returns tenant names in set order.
func (s *Set) Names() []string {
	out := make([]string, len(s.list))
	for i, d := range s.list {
		out[i] = d.Name
	}
	return out
}

// validName accepts one non-empty URL segment without whitespace.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/?#%\\") || strings.IndexFunc(name, unicode.IsSpace) != -1 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
