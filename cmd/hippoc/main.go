package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Naitsabot/hippolang/pkg/alloc"
	"github.com/Naitsabot/hippolang/pkg/bank"
	"github.com/Naitsabot/hippolang/pkg/cli"
	"github.com/Naitsabot/hippolang/pkg/codegen"
	"github.com/Naitsabot/hippolang/pkg/config"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/lexer"
	"github.com/Naitsabot/hippolang/pkg/parser"
	"github.com/Naitsabot/hippolang/pkg/resolver"
)

func main() {
	app := cli.NewApp("hippoc")
	app.Synopsis = "[options] <input.hip>"

	var (
		outDir         string
		manifestPath   string
		warningFlags   []string
		dumpPlacements bool
	)

	fs := app.FlagSet
	fs.String(&outDir, "output", "o", ".", "Place the generated assembly into <dir>.", "dir")
	fs.String(&manifestPath, "manifest", "m", "", "Read project settings from a manifest file.", "file")
	fs.Bool(&dumpPlacements, "dump-placements", "", false, "Print the memory placement table and exit.")
	fs.Prefix(&warningFlags, "W", "Enable a warning, or disable it with -Wno-<name>. -Wall enables every warning.", "name")

	app.Action = func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one input file, got %d", len(args))
		}
		return compile(args[0], outDir, manifestPath, warningFlags, dumpPlacements)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hippoc: %v\n", err)
		os.Exit(1)
	}
}

func compile(inputPath, outDir, manifestPath string, warningFlags []string, dumpPlacements bool) error {
	cfg := config.New()

	if manifestPath != "" {
		if err := config.LoadManifest(manifestPath, cfg); err != nil {
			return err
		}
	}
	if outDir != "." || cfg.OutDir == "" {
		cfg.OutDir = outDir // command line wins over the manifest
	}
	for _, w := range warningFlags {
		if err := cfg.ApplyWarningFlag(w); err != nil {
			return err
		}
	}

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("could not read '%s': %v", inputPath, err)
	}
	src := []rune(string(raw))

	r := diag.NewReporter()
	file := r.AddFile(inputPath, src)

	// Each stage runs only on a clean slate from the one before it, so
	// diagnostics never cascade across stages.
	toks := lexer.New(src, file, r).Tokenize()
	if r.HasErrors() {
		return fail(r)
	}
	prog := parser.New(toks, r).Parse()
	if r.HasErrors() {
		return fail(r)
	}
	table := resolver.Resolve(prog, cfg, r)
	if r.HasErrors() {
		return fail(r)
	}
	allocs := alloc.Allocate(prog, table, r)
	if r.HasErrors() {
		return fail(r)
	}
	banks := bank.Analyze(table, r)
	if r.HasErrors() {
		return fail(r)
	}

	if dumpPlacements {
		r.Print(os.Stderr)
		return codegen.WritePlacements(os.Stdout, allocs)
	}

	out := codegen.Generate(prog, table, allocs, banks, cfg, r)
	if r.HasErrors() {
		return fail(r)
	}
	r.Print(os.Stderr) // surviving warnings

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return err
	}
	for _, bankNo := range out.Banks() {
		var buf bytes.Buffer
		if err := out.WriteBank(&buf, bankNo); err != nil {
			return err
		}
		name := filepath.Join(cfg.OutDir, fmt.Sprintf("bank%d.asm", bankNo))
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := codegen.WritePlacements(&buf, allocs); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.OutDir, "placements.txt"), buf.Bytes(), 0o644)
}

func fail(r *diag.Reporter) error {
	r.Print(os.Stderr)
	return fmt.Errorf("%d error(s)", r.Count())
}
