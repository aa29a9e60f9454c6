// Package config carries the per-run compiler configuration: the cartridge
// facts taken from module pragmas (MBC kind, bank counts) and the warning
// switches exposed on the command line.
package config

import "fmt"

// MBC identifies the cartridge memory bank controller.
type MBC int

const (
	MBCNone MBC = iota
	MBC1
	MBC3
	MBC5
)

var mbcNames = map[string]MBC{
	"none": MBCNone,
	"mbc1": MBC1,
	"mbc3": MBC3,
	"mbc5": MBC5,
}

func (m MBC) String() string {
	for name, v := range mbcNames {
		if v == m {
			return name
		}
	}
	return "mbc?"
}

// MaxROMBanks is the largest bank count the controller can address.
func (m MBC) MaxROMBanks() int {
	switch m {
	case MBCNone:
		return 2
	case MBC1:
		return 32
	case MBC3:
		return 128
	case MBC5:
		return 512
	}
	return 2
}

// MBCByName resolves a module pragma argument like `{.mbc: mbc5.}`.
func MBCByName(name string) (MBC, bool) {
	m, ok := mbcNames[name]
	return m, ok
}

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnUnusedSymbol
	WarnLargeCopy
	WarnShadowHint
	WarnInlineIgnored
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Config is filled by the driver from flags, the optional project
// manifest, and the module pragmas, in that order of increasing priority.
type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning

	MBC         MBC
	ROMBanks    int
	RAMBanks    int
	DefaultBank int

	OutDir string
}

func New() *Config {
	cfg := &Config{
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
		MBC:        MBC5,
		ROMBanks:   2,
		RAMBanks:   0,
		OutDir:     ".",
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that can never execute."},
		WarnUnusedSymbol:    {"unused-symbol", false, "Warn about declared but never referenced symbols."},
		WarnLargeCopy:       {"large-copy", true, "Warn when an object assignment copies more than 32 bytes."},
		WarnShadowHint:      {"shadow-hint", true, "Attach a hint naming the earlier declaration on redeclaration errors."},
		WarnInlineIgnored:   {"inline-ignored", true, "Warn when an {.inline.} hint is ignored at a cross-bank call site."},
	}
	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyWarningFlag handles a -Wname / -Wno-name command line toggle.
func (c *Config) ApplyWarningFlag(name string) error {
	enable := true
	if len(name) > 3 && name[:3] == "no-" {
		enable = false
		name = name[3:]
	}
	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}
	wt, ok := c.WarningMap[name]
	if !ok {
		return fmt.Errorf("unknown warning '%s'", name)
	}
	c.SetWarning(wt, enable)
	return nil
}

// ValidBank reports whether a bank index is inside the configured range.
func (c *Config) ValidBank(bank int) bool {
	return bank >= 0 && bank < c.ROMBanks
}
