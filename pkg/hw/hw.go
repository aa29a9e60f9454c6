// Package hw holds the immutable hardware facts of the target: the I/O
// register table, the memory region map, and the interrupt vectors. All of
// it is process-wide constant data initialized once.
package hw

// Register is a memory-mapped hardware I/O register. Registers are
// readable and writable through hw.<name> but never addressable.
type Register struct {
	Name string
	Addr uint16
}

// Registers maps canonical register names (lowercase, no underscores) to
// their fixed addresses. The set follows the standard I/O map.
var Registers = map[string]Register{
	"joyp":  {"joyp", 0xFF00},
	"sb":    {"sb", 0xFF01},
	"sc":    {"sc", 0xFF02},
	"div":   {"div", 0xFF04},
	"tima":  {"tima", 0xFF05},
	"tma":   {"tma", 0xFF06},
	"tac":   {"tac", 0xFF07},
	"if":    {"if", 0xFF0F},
	"nr10":  {"nr10", 0xFF10},
	"nr11":  {"nr11", 0xFF11},
	"nr12":  {"nr12", 0xFF12},
	"nr13":  {"nr13", 0xFF13},
	"nr14":  {"nr14", 0xFF14},
	"nr21":  {"nr21", 0xFF16},
	"nr22":  {"nr22", 0xFF17},
	"nr23":  {"nr23", 0xFF18},
	"nr24":  {"nr24", 0xFF19},
	"nr30":  {"nr30", 0xFF1A},
	"nr31":  {"nr31", 0xFF1B},
	"nr32":  {"nr32", 0xFF1C},
	"nr33":  {"nr33", 0xFF1D},
	"nr34":  {"nr34", 0xFF1E},
	"nr41":  {"nr41", 0xFF20},
	"nr42":  {"nr42", 0xFF21},
	"nr43":  {"nr43", 0xFF22},
	"nr44":  {"nr44", 0xFF23},
	"nr50":  {"nr50", 0xFF24},
	"nr51":  {"nr51", 0xFF25},
	"nr52":  {"nr52", 0xFF26},
	"lcdc":  {"lcdc", 0xFF40},
	"stat":  {"stat", 0xFF41},
	"scy":   {"scy", 0xFF42},
	"scx":   {"scx", 0xFF43},
	"ly":    {"ly", 0xFF44},
	"lyc":   {"lyc", 0xFF45},
	"dma":   {"dma", 0xFF46},
	"bgp":   {"bgp", 0xFF47},
	"obp0":  {"obp0", 0xFF48},
	"obp1":  {"obp1", 0xFF49},
	"wy":    {"wy", 0xFF4A},
	"wx":    {"wx", 0xFF4B},
	"key1":  {"key1", 0xFF4D},
	"vbk":   {"vbk", 0xFF4F},
	"svbk":  {"svbk", 0xFF70},
	"ie":    {"ie", 0xFFFF},
}

// Region is a named address range. Regions never overlap by construction:
// $0000-$1FFF of the fixed ROM bank is header/vector/code space owned by
// the emitter and belongs to no allocatable region.
type Region struct {
	Name string
	Base uint16
	Len  uint16
}

func (r Region) End() uint32 { return uint32(r.Base) + uint32(r.Len) }

func (r Region) Contains(addr uint16, size int) bool {
	return addr >= r.Base && uint32(addr)+uint32(size) <= r.End()
}

var (
	// ROM0 is the constant-data portion of the fixed ROM bank.
	ROM0 = Region{Name: "rom0", Base: 0x2000, Len: 0x2000}
	// ROMX is the switchable ROM window; one allocation timeline exists
	// per bank index.
	ROMX = Region{Name: "romx", Base: 0x4000, Len: 0x4000}
	// WRAM is working RAM, the default region for variables.
	WRAM = Region{Name: "wram", Base: 0xC000, Len: 0x2000}
	// HRAM is fast RAM, reachable by explicit placement only. The top of
	// HRAM ($FFF0-$FFFE) is reserved for the code generator.
	HRAM = Region{Name: "hram", Base: 0xFF80, Len: 0x70}
)

// Regions indexes the four regions by name.
var Regions = map[string]Region{
	ROM0.Name: ROM0,
	ROMX.Name: ROMX,
	WRAM.Name: WRAM,
	HRAM.Name: HRAM,
}

// Reservations above HRAM, kept clear of user placements. CurBankAddr
// shadows the selected ROM bank; the scratch bytes below it belong to
// the runtime.
const (
	ScratchBase uint16 = 0xFFF0
	ScratchLen  int    = 14
	CurBankAddr uint16 = 0xFFFE

	// ROMSelect is the MBC rom-bank select register. Writing the bank
	// number here maps that bank into the ROMX window.
	ROMSelect uint16 = 0x2100
)

// Vector is a hardware interrupt slot.
type Vector int

const (
	VecVBlank Vector = iota
	VecLCDStat
	VecTimer
	VecSerial
	VecJoypad
	VecCount
)

var vectorNames = [VecCount]string{"vblank", "lcdstat", "timer", "serial", "joypad"}

var vectorAddrs = [VecCount]uint16{0x0040, 0x0048, 0x0050, 0x0058, 0x0060}

func (v Vector) String() string {
	if v >= 0 && v < VecCount {
		return vectorNames[v]
	}
	return "vector?"
}

func (v Vector) Addr() uint16 { return vectorAddrs[v] }

// VectorByName resolves a canonical vector name ("vblank", "lcdstat", ...).
func VectorByName(name string) (Vector, bool) {
	for i, n := range vectorNames {
		if n == name {
			return Vector(i), true
		}
	}
	return 0, false
}
