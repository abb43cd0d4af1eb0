package sokconfig

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""), Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults unchanged, got %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	src := "# comment\nquantum 10\nmode priority\nterminals 4\ninit p1.maq\n"
	cfg, err := Load(strings.NewReader(src), Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quantum != 10 {
		t.Errorf("Quantum = %d, want 10", cfg.Quantum)
	}
	if !cfg.Priority {
		t.Errorf("Priority = false, want true")
	}
	if cfg.InitProg != "p1.maq" {
		t.Errorf("InitProg = %q, want p1.maq", cfg.InitProg)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(strings.NewReader("bogus 1\n"), Default())
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadBadValue(t *testing.T) {
	_, err := Load(strings.NewReader("quantum abc\n"), Default())
	if err == nil {
		t.Fatal("expected error for non-numeric quantum")
	}
}
