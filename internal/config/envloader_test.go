package config

import (
	"testing"
)

type envFixture struct {
	Name   string   `env:"T_NAME"`
	Count  int      `env:"T_COUNT"`
	On     bool     `env:"T_ON"`
	Size   ByteSize `env:"T_SIZE"`
	List   []string `env:"T_LIST"`
	Nested struct {
		Inner string `env:"T_INNER"`
	}
	skipped string `env:"T_SKIPPED"`
}

func TestLoadFromLookup(t *testing.T) {
	var cfg envFixture
	err := LoadFromLookup(&cfg, envMap(map[string]string{
		"T_NAME":    "ief",
		"T_COUNT":   "3",
		"T_ON":      "true",
		"T_SIZE":    "2KiB",
		"T_LIST":    "a, b,,c",
		"T_INNER":   "deep",
		"T_SKIPPED": "x",
	}))
	if err != nil {
		t.Fatalf("LoadFromLookup() failed: %v", err)
	}

	if cfg.Name != "ief" {
		t.Errorf("Name = %q, want %q", cfg.Name, "ief")
	}
	if cfg.Count != 3 {
		t.Errorf("Count = %d, want 3", cfg.Count)
	}
	if !cfg.On {
		t.Error("On = false, want true")
	}
	if cfg.Size != 2048 {
		t.Errorf("Size = %d, want 2048", cfg.Size)
	}
	if len(cfg.List) != 3 || cfg.List[0] != "a" || cfg.List[2] != "c" {
		t.Errorf("List = %v, want [a b c]", cfg.List)
	}
	if cfg.Nested.Inner != "deep" {
		t.Errorf("Nested.Inner = %q, want %q", cfg.Nested.Inner, "deep")
	}
	if cfg.skipped != "" {
		t.Errorf("unexported field was set to %q", cfg.skipped)
	}
}

func TestLoadFromLookup_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"integer", map[string]string{"T_COUNT": "three"}},
		{"boolean", map[string]string{"T_ON": "maybe"}},
		{"size", map[string]string{"T_SIZE": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg envFixture
			if err := LoadFromLookup(&cfg, envMap(tt.vars)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadFromLookup_NilPointer(t *testing.T) {
	var cfg *envFixture
	if err := LoadFromLookup(cfg, envMap(map[string]string{"T_NAME": "x"})); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
