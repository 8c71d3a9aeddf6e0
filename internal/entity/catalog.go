package entity

// Package entity provides the Entity Catalog and the regex-driven Entity
// Extractor used by the tool library.
//
// Responsibilities:
//   - Load entity-type definitions (patterns, aliases, relationships) from a
//     declarative YAML document, or fall back to the built-in catalog
//   - Compile every pattern once at load; malformed regex is a fatal
//     startup error, never a query-time one
//   - Extract typed values from row payloads, deduplicated in first-seen
//     order, with per-value row indices
//
// Patterns for strict formats are anchored so they cannot bleed across
// formats: a six-pair colon-separated MAC must never match inside an IPv6
// literal, and IPv6 patterns require the full colon/hex shape. Extraction
// scans only the configured payload columns — infrastructure metadata
// columns (pod names, node names, pod IPs) are never scanned; that
// exclusion is a correctness invariant, not an optimization.

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Type is one configured entity type: compiled patterns, user-facing
// aliases (first entry is the canonical surface form), and the names of
// related types used to hint the reasoner.
type Type struct {
	Name     string
	Patterns []*regexp.Regexp
	Aliases  []string
	Related  []string
}

// Catalog is the process-wide, read-only entity-type configuration. It is
// loaded once at startup and safe for concurrent readers.
type Catalog struct {
	types       map[string]*Type
	order       []string
	scanColumns []string
}

// boundary guards shared by the strict-format default patterns. Go's RE2
// has no lookaround, so the guards are non-capturing context classes and
// the value itself is always capture group 1.
const (
	hexBoundaryL = `(?:^|[^0-9A-Fa-f:.])`
	hexBoundaryR = `(?:[^0-9A-Fa-f:.]|$)`

	macPattern  = `((?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2})`
	ipv6Pattern = `((?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4})`
	ipv4Pattern = `((?:(?:25[0-5]|2[0-4][0-9]|1?[0-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1?[0-9]?[0-9]))`
)

// defaultDefinitions is the built-in catalog for the cable-access log
// domain. A YAML catalog file replaces it wholesale when provided.
var defaultDefinitions = []struct {
	name     string
	patterns []string
	aliases  []string
	related  []string
}{
	{
		name: "cm_mac",
		patterns: []string{
			`"CmMacAddress"\s*:\s*"` + macPattern + `"`,
			hexBoundaryL + macPattern + hexBoundaryR,
		},
		aliases: []string{"cm", "cable modem", "modem", "cm mac"},
		related: []string{"rpdname", "cpe_ip", "cpe_mac"},
	},
	{
		name: "cpe_mac",
		patterns: []string{
			`"CpeMacAddress"\s*:\s*"` + macPattern + `"`,
		},
		aliases: []string{"cpe mac", "customer device mac"},
		related: []string{"cm_mac", "cpe_ip"},
	},
	{
		name: "cpe_ip",
		patterns: []string{
			`"CpeIpAddress"\s*:\s*"([0-9A-Fa-f:.]+)"`,
			hexBoundaryL + ipv6Pattern + hexBoundaryR,
		},
		aliases: []string{"cpe", "cpe ip", "customer ip"},
		related: []string{"cm_mac", "rpdname"},
	},
	{
		name: "rpdname",
		patterns: []string{
			`"rpdname"\s*:\s*"([^"]+)"`,
		},
		aliases: []string{"rpd", "remote phy device", "rpd name"},
		related: []string{"cm_mac"},
	},
	{
		name: "ip_address",
		patterns: []string{
			`(?:^|[^0-9.])` + ipv4Pattern + `(?:[^0-9.]|$)`,
		},
		aliases: []string{"ip", "ipv4", "ip address"},
		related: []string{"cpe_ip"},
	},
}

// DefaultCatalog returns the built-in catalog scanning the given payload
// columns. Built-in patterns are known-good; compilation cannot fail.
func DefaultCatalog(scanColumns []string) *Catalog {
	c := &Catalog{types: make(map[string]*Type), scanColumns: scanColumns}
	for _, def := range defaultDefinitions {
		t := &Type{Name: def.name, Aliases: def.aliases, Related: def.related}
		for _, p := range def.patterns {
			t.Patterns = append(t.Patterns, regexp.MustCompile(p))
		}
		c.types[def.name] = t
		c.order = append(c.order, def.name)
	}
	return c
}

// LoadCatalog reads a YAML entity configuration with top-level sections
// `patterns`, `aliases`, and `relationships`, each mapping type names to
// string lists. Every type must declare at least one pattern and one
// alias; any malformed regex aborts the load.
func LoadCatalog(path string, scanColumns []string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read entity config: %w", err)
	}

	patterns := v.GetStringMapStringSlice("patterns")
	aliases := v.GetStringMapStringSlice("aliases")
	relationships := v.GetStringMapStringSlice("relationships")

	if len(patterns) == 0 {
		return nil, fmt.Errorf("entity config %s: patterns section is empty", path)
	}

	c := &Catalog{types: make(map[string]*Type), scanColumns: scanColumns}

	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		exprs := patterns[name]
		if len(exprs) == 0 {
			return nil, fmt.Errorf("entity type %q: pattern list is empty", name)
		}
		t := &Type{
			Name:    name,
			Aliases: aliases[name],
			Related: relationships[name],
		}
		if len(t.Aliases) == 0 {
			return nil, fmt.Errorf("entity type %q: alias list is empty", name)
		}
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("entity type %q: compile pattern %q: %w", name, expr, err)
			}
			t.Patterns = append(t.Patterns, re)
		}
		c.types[name] = t
		c.order = append(c.order, name)
	}

	return c, nil
}

// Get returns the named type, or false when unknown.
func (c *Catalog) Get(name string) (*Type, bool) {
	t, ok := c.types[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// TypeNames returns all configured type names in catalog order.
func (c *Catalog) TypeNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Types returns all configured types in catalog order.
func (c *Catalog) Types() []*Type {
	out := make([]*Type, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.types[name])
	}
	return out
}

// Related returns the names of types related to the given one.
func (c *Catalog) Related(name string) []string {
	if t, ok := c.Get(name); ok {
		return t.Related
	}
	return nil
}

// ScanColumns returns the columns extraction is allowed to read.
func (c *Catalog) ScanColumns() []string {
	return c.scanColumns
}
