package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"lowercase colons", "aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"dashes", "aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"},
		{"already normalized", "AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF"},
		{"surrounding whitespace", "  aa:bb:cc:dd:ee:ff ", "AA:BB:CC:DD:EE:FF"},
		{"empty", "", ""},
		{"all zeros", "00:00:00:00:00:00", ""},
		{"too short", "aa:bb:cc", ""},
		{"not hex", "zz:bb:cc:dd:ee:ff", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeMAC(tt.address); got != tt.want {
				t.Errorf("normalizeMAC(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	opts := Options{Salt: "test-salt"}

	first, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if first != second {
		t.Errorf("fingerprints differ across runs: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(first))
	}
}

func TestGenerateSaltChangesValue(t *testing.T) {
	plain, err := Generate(Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	salted, err := Generate(Options{Salt: "other"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if plain == salted {
		t.Error("salted fingerprint should differ from unsalted one")
	}
}

func TestGenerateUsesCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "fingerprint")
	if err := os.WriteFile(cache, []byte("cached-value\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Generate(Options{CachePath: cache})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "cached-value" {
		t.Errorf("Generate() = %q, want cached value", got)
	}
}

func TestGenerateForceRecomputeIgnoresCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "fingerprint")
	if err := os.WriteFile(cache, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Generate(Options{CachePath: cache, ForceRecompute: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got == "stale" {
		t.Error("ForceRecompute should bypass the cached value")
	}

	data, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("cache file not rewritten: %v", err)
	}
	if string(data) != got+"\n" {
		t.Errorf("cache content = %q, want refreshed fingerprint", string(data))
	}
}

func TestGenerateWritesCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "nested", "fingerprint")

	got, err := Generate(Options{CachePath: cache})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	data, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if string(data) != got+"\n" {
		t.Errorf("cache content = %q, want %q", string(data), got+"\n")
	}
}

func TestLoadOrCreateMachineIDPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine_id")

	first := loadOrCreateMachineID(path)
	if first == "" {
		t.Fatal("expected a generated machine id")
	}
	second := loadOrCreateMachineID(path)
	if first != second {
		t.Errorf("machine id not stable: %q vs %q", first, second)
	}
}
