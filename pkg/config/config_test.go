package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()
	if c.QuorumSize != 3 {
		t.Fatalf("default quorum %d, want 3", c.QuorumSize)
	}
	if c.MultiplierNum != 3 || c.MultiplierDen != 2 {
		t.Fatalf("default multiplier %d/%d, want 3/2", c.MultiplierNum, c.MultiplierDen)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SURETY_QUORUM", "5")
	t.Setenv("SURETY_LABEL_SPACE", "16")
	c := Load()
	if c.QuorumSize != 5 {
		t.Fatalf("quorum %d, want 5", c.QuorumSize)
	}
	if c.LabelSpace != 16 {
		t.Fatalf("label space %d, want 16", c.LabelSpace)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	bad := []func(c *Config){
		func(c *Config) { c.QuorumSize = 0 },
		func(c *Config) { c.MultiplierDen = 0 },
		func(c *Config) { c.MultiplierNum, c.MultiplierDen = 1, 2 },
		func(c *Config) { c.LabelSpace = 2 },
		func(c *Config) { c.PremiumCapMinor = 0 },
	}
	for i, mutate := range bad {
		c := Load()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation failure", i)
		}
	}
}

func TestLoadProfileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	profile := []byte("quorum_size: 7\npayout_expression: 'status == \"LATE_AIRLINE\" || status == \"LATE_TECHNICAL\"'\n")
	if err := os.WriteFile(path, profile, 0o644); err != nil {
		t.Fatal(err)
	}

	base := Load()
	merged, err := LoadProfile(base, path)
	if err != nil {
		t.Fatal(err)
	}
	if merged.QuorumSize != 7 {
		t.Fatalf("quorum %d, want 7 from profile", merged.QuorumSize)
	}
	if merged.PayoutExpression == "" {
		t.Fatal("payout expression not overlaid")
	}
	// Untouched fields keep base values.
	if merged.LabelSpace != base.LabelSpace {
		t.Fatal("profile must not clobber unset fields")
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(Load(), "/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing profile")
	}
}
