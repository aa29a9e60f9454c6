package hw

import "testing"

func TestRegionsDoNotOverlap(t *testing.T) {
	regions := []Region{ROM0, ROMX, WRAM, HRAM}
	for i, a := range regions {
		for _, b := range regions[i+1:] {
			if uint32(a.Base) < uint32(b.Base)+uint32(b.Len) &&
				uint32(b.Base) < uint32(a.Base)+uint32(a.Len) {
				t.Errorf("regions %s and %s overlap", a.Name, b.Name)
			}
		}
	}
}

func TestRegionContains(t *testing.T) {
	tests := []struct {
		r    Region
		addr uint16
		want bool
	}{
		{WRAM, 0xC000, true},
		{WRAM, 0xDFFF, true},
		{WRAM, 0xE000, false},
		{WRAM, 0xBFFF, false},
		{HRAM, 0xFF80, true},
		{HRAM, 0xFFF0, false},
		{ROM0, 0x2000, true},
		{ROMX, 0x4000, true},
		{ROMX, 0x8000, false},
	}
	for _, tt := range tests {
		if got := tt.r.Contains(tt.addr, 1); got != tt.want {
			t.Errorf("%s.Contains($%04X) = %v, want %v", tt.r.Name, tt.addr, got, tt.want)
		}
	}
}

func TestScratchAreaOutsideHRAMRegion(t *testing.T) {
	// The spill area and bank shadow live above user HRAM; the allocator
	// must never hand those addresses out.
	if HRAM.Contains(ScratchBase, 1) {
		t.Errorf("scratch base $%04X lies inside hram", ScratchBase)
	}
	if HRAM.Contains(CurBankAddr, 1) {
		t.Errorf("bank shadow $%04X lies inside hram", CurBankAddr)
	}
}

func TestVectors(t *testing.T) {
	want := map[string]uint16{
		"vblank":  0x0040,
		"lcdstat": 0x0048,
		"timer":   0x0050,
		"serial":  0x0058,
		"joypad":  0x0060,
	}
	for name, addr := range want {
		v, ok := VectorByName(name)
		if !ok {
			t.Errorf("vector %q missing", name)
			continue
		}
		if v.Addr() != addr {
			t.Errorf("%s at $%04X, want $%04X", name, v.Addr(), addr)
		}
		if v.String() != name {
			t.Errorf("String() = %q, want %q", v.String(), name)
		}
	}
	if _, ok := VectorByName("hblank"); ok {
		t.Error("unknown vector resolved")
	}
}

func TestRegisterTable(t *testing.T) {
	tests := []struct {
		name string
		addr uint16
	}{
		{"lcdc", 0xFF40},
		{"stat", 0xFF41},
		{"bgp", 0xFF47},
		{"joyp", 0xFF00},
		{"if", 0xFF0F},
		{"ie", 0xFFFF},
	}
	for _, tt := range tests {
		reg, ok := Registers[tt.name]
		if !ok {
			t.Errorf("register %q missing", tt.name)
			continue
		}
		if reg.Addr != tt.addr {
			t.Errorf("%s at $%04X, want $%04X", tt.name, reg.Addr, tt.addr)
		}
	}
}
