package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLongAndShortFlags(t *testing.T) {
	fs := NewFlagSet("hippoc")
	var out string
	var dump bool
	fs.String(&out, "output", "o", ".", "output directory", "dir")
	fs.Bool(&dump, "dump-placements", "", false, "dump placements")

	if err := fs.Parse([]string{"-o", "build", "--dump-placements", "game.hip"}); err != nil {
		t.Fatal(err)
	}
	if out != "build" {
		t.Errorf("out = %q, want build", out)
	}
	if !dump {
		t.Error("bool flag not set")
	}
	if diff := cmp.Diff([]string{"game.hip"}, fs.Args()); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestParseEqualsForm(t *testing.T) {
	fs := NewFlagSet("hippoc")
	var out string
	fs.String(&out, "output", "o", ".", "output directory", "dir")
	if err := fs.Parse([]string{"--output=dist"}); err != nil {
		t.Fatal(err)
	}
	if out != "dist" {
		t.Errorf("out = %q, want dist", out)
	}
}

func TestPrefixFlags(t *testing.T) {
	fs := NewFlagSet("hippoc")
	var warnings []string
	fs.Prefix(&warnings, "W", "warning toggles", "name")

	if err := fs.Parse([]string{"-Wunused-symbol", "-Wno-large-copy", "-Wall"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"unused-symbol", "no-large-copy", "all"}
	if diff := cmp.Diff(want, warnings); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
}

func TestUnknownFlag(t *testing.T) {
	fs := NewFlagSet("hippoc")
	if err := fs.Parse([]string{"--bogus"}); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestMissingFlagArgument(t *testing.T) {
	fs := NewFlagSet("hippoc")
	var out string
	fs.String(&out, "output", "o", ".", "output directory", "dir")
	if err := fs.Parse([]string{"--output"}); err == nil {
		t.Error("flag without argument accepted")
	}
}

func TestDoubleDashTerminator(t *testing.T) {
	fs := NewFlagSet("hippoc")
	var out string
	fs.String(&out, "output", "o", ".", "output directory", "dir")
	if err := fs.Parse([]string{"--", "--output", "weird.hip"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"--output", "weird.hip"}, fs.Args()); diff != "" {
		t.Errorf("args after -- (-want +got):\n%s", diff)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five", 10)
	for _, line := range lines {
		if len(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if len(lines) < 2 {
		t.Errorf("text not wrapped: %v", lines)
	}
}
