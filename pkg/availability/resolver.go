// Package availability decides where a requested instance type can launch.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

var (
	// ErrNoCapacity means no region currently has the requested type.
	ErrNoCapacity = errors.New("no capacity for requested instance type")

	// ErrDuplicateCatalogEntry means the provider listed a type more than once.
	ErrDuplicateCatalogEntry = errors.New("duplicate catalog entry")
)

// NoCapacityError reports the requested type together with every type that
// does have capacity, so an operator can pick an alternative.
type NoCapacityError struct {
	Requested string
	Available []lambda.CapacityEntry
}

func (e *NoCapacityError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no capacity for %s; no instance types are available in any region", e.Requested)
	}
	return fmt.Sprintf("no capacity for %s; available: %s", e.Requested, FormatAvailable(e.Available))
}

func (e *NoCapacityError) Unwrap() error {
	return ErrNoCapacity
}

// AvailableNames returns the names of the alternative types.
func (e *NoCapacityError) AvailableNames() []string {
	names := make([]string, 0, len(e.Available))
	for _, entry := range e.Available {
		names = append(names, entry.InstanceType.Name)
	}
	return names
}

// DuplicateEntryError is returned when the catalog has the requested type
// under more than one entry.
type DuplicateEntryError struct {
	Requested string
	Count     int
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("instance type %s appears %d times in the catalog", e.Requested, e.Count)
}

func (e *DuplicateEntryError) Unwrap() error {
	return ErrDuplicateCatalogEntry
}

// Selection is the catalog entry to launch from and the region to use.
type Selection struct {
	Entry  lambda.CapacityEntry
	Region lambda.Region
}

// Resolve finds the catalog entry for name and picks the first region with
// capacity, in the order the provider returned them.
func Resolve(catalog lambda.Catalog, name string) (*Selection, error) {
	var available, matching []lambda.CapacityEntry

	for _, key := range catalog.Names() {
		entry := catalog[key]
		if entry.InstanceType.Name == "" {
			entry.InstanceType.Name = key
		}
		if !entry.Available() {
			continue
		}
		available = append(available, entry)
		if entry.InstanceType.Name == name {
			matching = append(matching, entry)
		}
	}

	switch len(matching) {
	case 0:
		return nil, &NoCapacityError{Requested: name, Available: available}
	case 1:
		entry := matching[0]
		return &Selection{Entry: entry, Region: entry.RegionsWithCapacityAvailable[0]}, nil
	default:
		return nil, &DuplicateEntryError{Requested: name, Count: len(matching)}
	}
}

// FormatAvailable renders entries as "type (region, region); type (region)".
func FormatAvailable(entries []lambda.CapacityEntry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, fmt.Sprintf("%s (%s)", entry.InstanceType.Name, strings.Join(entry.RegionNames(), ", ")))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
