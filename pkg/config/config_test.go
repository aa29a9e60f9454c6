package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMBCByName(t *testing.T) {
	tests := []struct {
		name  string
		want  MBC
		banks int
	}{
		{"none", MBCNone, 2},
		{"mbc1", MBC1, 32},
		{"mbc3", MBC3, 128},
		{"mbc5", MBC5, 512},
	}
	for _, tt := range tests {
		m, ok := MBCByName(tt.name)
		if !ok || m != tt.want {
			t.Errorf("MBCByName(%q) = %v, %v", tt.name, m, ok)
		}
		if m.MaxROMBanks() != tt.banks {
			t.Errorf("%s max banks = %d, want %d", tt.name, m.MaxROMBanks(), tt.banks)
		}
	}
	if _, ok := MBCByName("mbc7"); ok {
		t.Error("unknown controller resolved")
	}
}

func TestApplyWarningFlag(t *testing.T) {
	cfg := New()
	if cfg.IsWarningEnabled(WarnUnusedSymbol) {
		t.Fatal("unused-symbol should default off")
	}
	if err := cfg.ApplyWarningFlag("unused-symbol"); err != nil {
		t.Fatal(err)
	}
	if !cfg.IsWarningEnabled(WarnUnusedSymbol) {
		t.Error("-Wunused-symbol did not enable the warning")
	}
	if err := cfg.ApplyWarningFlag("no-large-copy"); err != nil {
		t.Fatal(err)
	}
	if cfg.IsWarningEnabled(WarnLargeCopy) {
		t.Error("-Wno-large-copy did not disable the warning")
	}
	if err := cfg.ApplyWarningFlag("all"); err != nil {
		t.Fatal(err)
	}
	for wt := Warning(0); wt < WarnCount; wt++ {
		if !cfg.IsWarningEnabled(wt) {
			t.Errorf("-Wall left %v disabled", wt)
		}
	}
	if err := cfg.ApplyWarningFlag("no-such-warning"); err == nil {
		t.Error("unknown warning accepted")
	}
}

func TestValidBank(t *testing.T) {
	cfg := New()
	cfg.ROMBanks = 8
	for _, tt := range []struct {
		bank int
		ok   bool
	}{{0, true}, {7, true}, {8, false}, {-1, false}} {
		if got := cfg.ValidBank(tt.bank); got != tt.ok {
			t.Errorf("ValidBank(%d) = %v, want %v", tt.bank, got, tt.ok)
		}
	}
}

func TestApplyManifest(t *testing.T) {
	cfg := New()
	err := ApplyManifest([]byte(`
output: build
mbc: mbc3
romBanks: 16
ramBanks: 1
warnings:
  - unused-symbol
  - no-large-copy
`), cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := struct {
		OutDir   string
		MBC      MBC
		ROMBanks int
		RAMBanks int
	}{"build", MBC3, 16, 1}
	got := struct {
		OutDir   string
		MBC      MBC
		ROMBanks int
		RAMBanks int
	}{cfg.OutDir, cfg.MBC, cfg.ROMBanks, cfg.RAMBanks}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("manifest application mismatch (-want +got):\n%s", diff)
	}
	if !cfg.IsWarningEnabled(WarnUnusedSymbol) || cfg.IsWarningEnabled(WarnLargeCopy) {
		t.Error("manifest warning list not applied")
	}
}

func TestApplyManifestRejectsBadValues(t *testing.T) {
	if err := ApplyManifest([]byte("mbc: mbc7\n"), New()); err == nil {
		t.Error("unknown mbc accepted")
	}
	if err := ApplyManifest([]byte("warnings: [no-such]\n"), New()); err == nil {
		t.Error("unknown warning accepted")
	}
	if err := ApplyManifest([]byte("[unclosed"), New()); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestManifestEmptyKeepsDefaults(t *testing.T) {
	cfg := New()
	if err := ApplyManifest([]byte("{}"), cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MBC != MBC5 || cfg.ROMBanks != 2 || cfg.OutDir != "." {
		t.Errorf("defaults disturbed: %+v", cfg)
	}
}
