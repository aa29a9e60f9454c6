// Package cli is the small flag layer of the hippoc driver: long and
// short flags, a prefix form for warning toggles (-Wname / -Wno-name),
// and terminal-width-aware usage output.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s'", s)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	Arg       string // placeholder in usage, "" for bool flags
}

type FlagSet struct {
	name     string
	flags    map[string]*Flag
	shorts   map[string]*Flag
	prefixes map[string]*Flag
	args     []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:     name,
		flags:    make(map[string]*Flag),
		shorts:   make(map[string]*Flag),
		prefixes: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, arg string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &stringValue{p}, Arg: arg})
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &boolValue{p}})
}

// Prefix registers a joined-argument flag family: every -<prefix>rest
// argument appends rest to p.
func (f *FlagSet) Prefix(p *[]string, prefix, usage, arg string) {
	*p = nil
	fl := &Flag{Name: prefix, Usage: usage, Value: &listValue{p}, Arg: arg}
	f.add(fl)
	f.prefixes[prefix] = fl
}

func (f *FlagSet) add(fl *Flag) {
	if _, ok := f.flags[fl.Name]; ok {
		panic("flag redefined: " + fl.Name)
	}
	f.flags[fl.Name] = fl
	if fl.Shorthand != "" {
		if _, ok := f.shorts[fl.Shorthand]; ok {
			panic("shorthand redefined: " + fl.Shorthand)
		}
		f.shorts[fl.Shorthand] = fl
	}
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		name := strings.TrimLeft(arg, "-")
		value := ""
		hasValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value, hasValue = name[:eq], name[eq+1:], true
		}

		fl := f.flags[name]
		if fl == nil {
			fl = f.shorts[name]
		}
		if fl == nil {
			if pf := f.matchPrefix(name); pf != nil {
				if err := pf.Value.Set(name[len(pf.Name):]); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("unknown flag: %s", arg)
		}
		if _, isBool := fl.Value.(*boolValue); isBool {
			if err := fl.Value.Set(value); err != nil {
				return err
			}
			continue
		}
		if !hasValue {
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", arg)
			}
			i++
			value = arguments[i]
		}
		if err := fl.Value.Set(value); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) matchPrefix(name string) *Flag {
	for prefix, fl := range f.prefixes {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return fl
		}
	}
	return nil
}

// App is the driver shell: flags plus an action over the positional
// arguments.
type App struct {
	Name     string
	Synopsis string
	FlagSet  *FlagSet
	Action   func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.Usage(os.Stderr)
		return err
	}
	if help {
		a.Usage(os.Stdout)
		return nil
	}
	return a.Action(a.FlagSet.Args())
}

// Usage prints the flag table, wrapped to the terminal width.
func (a *App) Usage(w *os.File) {
	width := terminalWidth(w)
	fmt.Fprintf(w, "Usage: %s %s\n\nOptions:\n", a.Name, a.Synopsis)

	flags := make([]*Flag, 0, len(a.FlagSet.flags))
	for _, fl := range a.FlagSet.flags {
		flags = append(flags, fl)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	left := make([]string, len(flags))
	maxLeft := 0
	for i, fl := range flags {
		left[i] = formatFlag(fl, a.FlagSet.prefixes[fl.Name] != nil)
		if len(left[i]) > maxLeft {
			maxLeft = len(left[i])
		}
	}
	for i, fl := range flags {
		lines := wrap(fl.Usage, width-maxLeft-4)
		if len(lines) == 0 {
			lines = []string{""}
		}
		fmt.Fprintf(w, "  %-*s  %s\n", maxLeft, left[i], lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(w, "  %-*s  %s\n", maxLeft, "", line)
		}
	}
}

func formatFlag(fl *Flag, isPrefix bool) string {
	if isPrefix {
		return "-" + fl.Name + "<" + fl.Arg + ">"
	}
	s := "--" + fl.Name
	if fl.Shorthand != "" {
		s = "-" + fl.Shorthand + ", " + s
	}
	if fl.Arg != "" {
		s += " <" + fl.Arg + ">"
	}
	return s
}

func terminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	return width
}

func wrap(text string, maxWidth int) []string {
	if maxWidth < 10 {
		maxWidth = 10
	}
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
