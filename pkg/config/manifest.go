package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional hippo.yaml project file. Module pragmas in the
// source override manifest values; the manifest overrides built-in
// defaults.
type Manifest struct {
	Output   string   `yaml:"output"`
	MBC      string   `yaml:"mbc"`
	ROMBanks int      `yaml:"romBanks"`
	RAMBanks int      `yaml:"ramBanks"`
	Warnings []string `yaml:"warnings"`
}

// LoadManifest reads and applies a hippo.yaml file onto cfg.
func LoadManifest(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ApplyManifest(data, cfg)
}

// ApplyManifest parses manifest bytes and applies them onto cfg.
func ApplyManifest(data []byte, cfg *Config) error {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if m.Output != "" {
		cfg.OutDir = m.Output
	}
	if m.MBC != "" {
		mbc, ok := MBCByName(m.MBC)
		if !ok {
			return fmt.Errorf("manifest: unknown mbc '%s'", m.MBC)
		}
		cfg.MBC = mbc
	}
	if m.ROMBanks != 0 {
		cfg.ROMBanks = m.ROMBanks
	}
	if m.RAMBanks != 0 {
		cfg.RAMBanks = m.RAMBanks
	}
	for _, w := range m.Warnings {
		if err := cfg.ApplyWarningFlag(w); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}
	return nil
}
