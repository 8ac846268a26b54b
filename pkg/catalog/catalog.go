// Package catalog holds the set of instance type names the runner accepts.
//
// The set is configuration rather than a compiled-in enum: Lambda adds SKUs
// over time, and a config file can extend the list without a rebuild.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultNames are the instance types accepted when no config overrides them.
var DefaultNames = []string{
	"gpu_1x_a10",
	"gpu_1x_a100",
	"gpu_1x_a100_sxm4",
	"gpu_1x_a6000",
	"gpu_1x_h100_pcie",
	"gpu_1x_rtx6000",
	"gpu_2x_a100",
	"gpu_2x_a6000",
	"gpu_4x_a100",
	"gpu_4x_a6000",
	"gpu_8x_a100",
	"gpu_8x_a100_80gb_sxm4",
	"gpu_8x_v100",
}

var namePattern = regexp.MustCompile(`^gpu_[0-9]+x_[a-z0-9_]+$`)

// Catalog is a closed set of instance type names.
type Catalog struct {
	names map[string]struct{}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultNames)
	if err != nil {
		panic(err)
	}
	return c
}

// New builds a catalog from names. Names must be unique and look like Lambda
// instance type names (gpu_<count>x_<model>).
func New(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one instance type")
	}
	c := &Catalog{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if !namePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid instance type name %q", name)
		}
		if _, dup := c.names[name]; dup {
			return nil, fmt.Errorf("duplicate instance type name %q", name)
		}
		c.names[name] = struct{}{}
	}
	return c, nil
}

// Contains reports whether name is in the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Validate returns an error naming the accepted values if name is unknown.
func (c *Catalog) Validate(name string) error {
	if name == "" {
		return fmt.Errorf("instance type name is required")
	}
	if !c.Contains(name) {
		return fmt.Errorf("unknown instance type %q (valid: %s)", name, strings.Join(c.Names(), ", "))
	}
	return nil
}

// Names returns the catalog contents in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
