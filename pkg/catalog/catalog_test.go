package catalog

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()

	if got := len(c.Names()); got != len(DefaultNames) {
		t.Errorf("len(Names()) = %d, want %d", got, len(DefaultNames))
	}
	for _, name := range []string{"gpu_1x_a100", "gpu_8x_v100", "gpu_8x_a100_80gb_sxm4"} {
		if !c.Contains(name) {
			t.Errorf("default catalog should contain %s", name)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr string
	}{
		{name: "valid", names: []string{"gpu_1x_h100_sxm5", "gpu_1x_a100"}},
		{name: "empty", names: nil, wantErr: "at least one"},
		{name: "duplicate", names: []string{"gpu_1x_a100", "gpu_1x_a100"}, wantErr: "duplicate"},
		{name: "malformed", names: []string{"p4d.24xlarge"}, wantErr: "invalid instance type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.names)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("New() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	c, err := New([]string{"gpu_1x_a10", "gpu_1x_a100"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Validate("gpu_1x_a100"); err != nil {
		t.Errorf("Validate(gpu_1x_a100) error = %v", err)
	}
	if err := c.Validate(""); err == nil {
		t.Error("Validate(\"\") should fail")
	}

	err = c.Validate("gpu_8x_v100")
	if err == nil {
		t.Fatal("Validate(gpu_8x_v100) should fail for a catalog without it")
	}
	if !strings.Contains(err.Error(), "gpu_1x_a10, gpu_1x_a100") {
		t.Errorf("error should list valid names: %v", err)
	}
}
