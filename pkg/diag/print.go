package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Naitsabot/hippolang/pkg/token"
)

const (
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// Print writes every accumulated diagnostic to w with the offending source
// line and a caret underneath. Color is applied only when w is a terminal.
func (r *Reporter) Print(w io.Writer) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	for _, d := range r.warns {
		r.printOne(w, d, "warning", color)
	}
	for _, d := range r.diags {
		r.printOne(w, d, "error", color)
	}
	if len(r.diags) > 0 {
		fmt.Fprintf(w, "%d error(s)\n", len(r.diags))
	}
}

func (r *Reporter) printOne(w io.Writer, d Diagnostic, severity string, color bool) {
	red, cyan, reset := "", "", ""
	if color {
		red, cyan, reset = ansiRed, ansiCyan, ansiReset
	}
	if d.Pos.IsValid() {
		fmt.Fprintf(w, "%s:%d:%d: %s%s:%s %s [%s]\n",
			r.fileName(d.Pos.File), d.Pos.Line, d.Pos.Col, red, severity, reset, d.Msg, d.Kind)
		r.printSourceLine(w, d.Pos, color)
	} else {
		fmt.Fprintf(w, "%s%s:%s %s [%s]\n", red, severity, reset, d.Msg, d.Kind)
	}
	if d.Hint != "" {
		fmt.Fprintf(w, "  %shint:%s %s\n", cyan, reset, d.Hint)
	}
}

func (r *Reporter) printSourceLine(w io.Writer, pos token.Pos, color bool) {
	if pos.File < 0 || pos.File >= len(r.files) || pos.Line == 0 {
		return
	}
	content := r.files[pos.File].Content
	lineNum := pos.Line
	lineStart := 0
	for i, ch := range content {
		if lineNum <= 1 {
			break
		}
		if ch == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}
	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	green, reset := "", ""
	if color {
		green, reset = ansiGreen, ansiReset
	}
	col := pos.Col
	if col < 1 {
		col = 1
	}
	width := pos.Len
	if rest := lineEnd - lineStart - (col - 1); width > rest && rest > 0 {
		width = rest
	}
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(w, "  %s%s^%s%s\n",
		strings.Repeat(" ", col-1), green, strings.Repeat("~", width-1), reset)
}
