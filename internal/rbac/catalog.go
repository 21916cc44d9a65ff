// Package rbac holds the desk permission catalog and derives per-user
// capabilities from it.
package rbac

import (
	"sort"
	"strings"
	"sync"
)

// Catalog maps permission keys to the roles allowed to use them. A Catalog
// is immutable once built.
type Catalog struct {
	rules map[string]roleSet
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the process-wide desk catalog.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = &Catalog{rules: defaultRules()}
	})
	return defaultCatalog
}

// NewCatalog builds a catalog from explicit rules. Keys are normalized and
// unknown roles are ignored.
func NewCatalog(rules map[string][]Role) *Catalog {
	c := &Catalog{rules: make(map[string]roleSet, len(rules))}
	for key, roles := range rules {
		key = normalizeKey(key)
		if key == "" {
			continue
		}
		c.rules[key] |= setOf(roles...)
	}
	return c
}

// Allowed reports whether role may use key. Unknown keys deny.
func (c *Catalog) Allowed(key string, role Role) bool {
	if c == nil {
		return false
	}
	set, ok := c.rules[normalizeKey(key)]
	return ok && set.has(role)
}

// Roles returns the roles allowed for key in hierarchy order.
func (c *Catalog) Roles(key string) []Role {
	if c == nil {
		return nil
	}
	set := c.rules[normalizeKey(key)]
	var out []Role
	for _, r := range Roles() {
		if set.has(r) {
			out = append(out, r)
		}
	}
	return out
}

// PermissionsFor lists the keys granted to role, sorted.
func (c *Catalog) PermissionsFor(role Role) []string {
	if c == nil || !role.Valid() {
		return nil
	}
	out := make([]string, 0, len(c.rules))
	for key, set := range c.rules {
		if set.has(role) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Keys lists every permission key in the catalog, sorted.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.rules))
	for key := range c.rules {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// NormalizePermissions lowercases, trims and deduplicates keys, dropping
// empty entries. Order of first appearance is kept.
func NormalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = normalizeKey(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizeKey(key string) string {
	return strings.TrimSpace(strings.ToLower(key))
}
