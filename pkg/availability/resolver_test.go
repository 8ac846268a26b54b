package availability

import (
	"errors"
	"strings"
	"testing"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

func entry(name string, regions ...string) lambda.CapacityEntry {
	e := lambda.CapacityEntry{
		InstanceType:                 lambda.InstanceType{Name: name},
		RegionsWithCapacityAvailable: []lambda.Region{},
	}
	for _, r := range regions {
		e.RegionsWithCapacityAvailable = append(e.RegionsWithCapacityAvailable, lambda.Region{Name: r})
	}
	return e
}

func TestResolve_PicksFirstRegionInProviderOrder(t *testing.T) {
	catalog := lambda.Catalog{
		"gpu_1x_a100": entry("gpu_1x_a100", "us-west-2", "us-east-1"),
		"gpu_8x_v100": entry("gpu_8x_v100", "asia-south-1"),
	}

	sel, err := Resolve(catalog, "gpu_1x_a100")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sel.Region.Name != "us-west-2" {
		t.Errorf("Region = %s, want us-west-2 (first listed, not sorted)", sel.Region.Name)
	}
	if sel.Entry.InstanceType.Name != "gpu_1x_a100" {
		t.Errorf("Entry = %s, want gpu_1x_a100", sel.Entry.InstanceType.Name)
	}
}

func TestResolve_NoCapacity(t *testing.T) {
	catalog := lambda.Catalog{
		"gpu_1x_a100":  entry("gpu_1x_a100"),
		"gpu_8x_v100":  entry("gpu_8x_v100", "us-east-1"),
		"gpu_1x_a10":   entry("gpu_1x_a10", "us-west-1", "us-west-2"),
		"gpu_2x_a6000": entry("gpu_2x_a6000"),
	}

	_, err := Resolve(catalog, "gpu_1x_a100")
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}

	var noCap *NoCapacityError
	if !errors.As(err, &noCap) {
		t.Fatalf("expected *NoCapacityError, got %T", err)
	}
	names := noCap.AvailableNames()
	if len(names) != 2 || names[0] != "gpu_1x_a10" || names[1] != "gpu_8x_v100" {
		t.Errorf("AvailableNames() = %v, want exactly [gpu_1x_a10 gpu_8x_v100]", names)
	}
	if !strings.Contains(err.Error(), "gpu_1x_a10 (us-west-1, us-west-2)") {
		t.Errorf("error should list alternatives with regions: %v", err)
	}
}

func TestResolve_NoCapacityAnywhere(t *testing.T) {
	_, err := Resolve(lambda.Catalog{"gpu_1x_a100": entry("gpu_1x_a100")}, "gpu_1x_a100")

	var noCap *NoCapacityError
	if !errors.As(err, &noCap) {
		t.Fatalf("expected *NoCapacityError, got %v", err)
	}
	if len(noCap.Available) != 0 {
		t.Errorf("Available = %v, want empty", noCap.Available)
	}
}

func TestResolve_UnknownType(t *testing.T) {
	catalog := lambda.Catalog{"gpu_1x_a10": entry("gpu_1x_a10", "us-west-1")}

	if _, err := Resolve(catalog, "gpu_8x_h100_sxm5"); !errors.Is(err, ErrNoCapacity) {
		t.Errorf("expected ErrNoCapacity for a type missing from the catalog, got %v", err)
	}
}

func TestResolve_DuplicateEntry(t *testing.T) {
	catalog := lambda.Catalog{
		"gpu_1x_a100":        entry("gpu_1x_a100", "us-west-2"),
		"gpu_1x_a100_legacy": entry("gpu_1x_a100", "us-east-1"),
	}

	_, err := Resolve(catalog, "gpu_1x_a100")
	if !errors.Is(err, ErrDuplicateCatalogEntry) {
		t.Fatalf("expected ErrDuplicateCatalogEntry, got %v", err)
	}
	var dup *DuplicateEntryError
	if !errors.As(err, &dup) || dup.Count != 2 {
		t.Errorf("expected DuplicateEntryError with Count 2, got %v", err)
	}
}

func TestResolve_FallsBackToCatalogKey(t *testing.T) {
	catalog := lambda.Catalog{"gpu_1x_a100": entry("", "us-west-2")}

	sel, err := Resolve(catalog, "gpu_1x_a100")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sel.Entry.InstanceType.Name != "gpu_1x_a100" {
		t.Errorf("Entry name = %q, want catalog key", sel.Entry.InstanceType.Name)
	}
}
