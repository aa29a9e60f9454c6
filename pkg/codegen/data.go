package codegen

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/Naitsabot/hippolang/pkg/alloc"
	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
)

func poolKey(b []byte) uint64 { return xxhash.Sum64(b) }

// emitConstData pins every ROM constant at its allocated address. The
// emission pragmas change representation only: {.lut.} and {.patchable.}
// keep the bytes verbatim, {.compressed.} stores the RLE encoding.
func (g *Generator) emitConstData(prog *ast.Program) {
	for _, a := range g.allocs.Allocs {
		sym := a.Sym
		if sym.Kind != resolver.SymConst {
			continue
		}
		if a.Region.Name != hw.ROM0.Name && a.Region.Name != hw.ROMX.Name {
			continue
		}
		bytes := g.constBytes(sym)
		if bytes == nil {
			continue
		}
		if ast.FindPragma(sym.Pragmas, "compressed") != nil {
			bytes = RLEEncode(bytes)
			g.useRuntime("__rle_unpack")
		}
		s := g.prog.Section("data_"+sym.Canon, a.Bank, int(a.Addr))
		s.Data(sym.Canon, bytes)
	}
}

// constBytes renders a constant's memory image, little-endian for
// scalars.
func (g *Generator) constBytes(sym *resolver.Symbol) []byte {
	if sym.Blob != nil {
		return sym.Blob
	}
	if !sym.HasVal || sym.Type == nil {
		return nil
	}
	switch sym.Type.Size() {
	case 1:
		return []byte{byte(sym.Val)}
	case 2:
		return []byte{byte(sym.Val), byte(sym.Val >> 8)}
	}
	return nil
}

// emitPool writes the deduplicated synthesized blobs (string literals and
// friends) into an assembler-placed bank 0 data section.
func (g *Generator) emitPool() {
	if len(g.poolData) == 0 {
		return
	}
	s := g.prog.Section("pool0", 0, -1)
	for _, p := range g.poolData {
		s.Data(p.label, p.bytes)
	}
}

// WritePlacements lists every allocation: address, size, region (with
// bank for switchable ROM), and the symbol's original spelling.
func WritePlacements(w io.Writer, m *alloc.Map) error {
	for _, a := range m.Allocs {
		region := a.Region.Name
		if a.Region.Name == hw.ROMX.Name {
			region = fmt.Sprintf("%s:%d", region, a.Bank)
		}
		if _, err := fmt.Fprintf(w, "$%04X  %5d  %-8s %s\n", a.Addr, a.Size, region, a.Sym.Name); err != nil {
			return err
		}
	}
	return nil
}
