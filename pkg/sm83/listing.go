package sm83

import (
	"fmt"
	"io"
)

// WriteBank renders every section of one bank as an RGBDS-flavored
// listing. Bank 0 sections go to ROM0, others to ROMX with an explicit
// BANK attribute; a non-negative Org pins the section address.
func (p *Program) WriteBank(w io.Writer, bank int) error {
	for _, s := range p.Sections {
		if s.Bank != bank {
			continue
		}
		if err := s.write(w); err != nil {
			return err
		}
	}
	return nil
}

func (s *Section) write(w io.Writer) error {
	head := fmt.Sprintf("SECTION \"%s\", ROM0", s.Name)
	if s.Bank != 0 {
		head = fmt.Sprintf("SECTION \"%s\", ROMX, BANK[%d]", s.Name, s.Bank)
	}
	if s.Org >= 0 {
		if s.Bank != 0 {
			head = fmt.Sprintf("SECTION \"%s\", ROMX[$%04X], BANK[%d]", s.Name, s.Org, s.Bank)
		} else {
			head = fmt.Sprintf("SECTION \"%s\", ROM0[$%04X]", s.Name, s.Org)
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", head); err != nil {
		return err
	}
	for _, it := range s.Items {
		if err := writeItem(w, it); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func writeItem(w io.Writer, it Item) error {
	switch {
	case it.Label != "":
		_, err := fmt.Fprintf(w, "%s:\n", it.Label)
		return err
	case it.Inst != nil:
		if it.Comment != "" {
			_, err := fmt.Fprintf(w, "    %-24s ; %s\n", it.Inst, it.Comment)
			return err
		}
		_, err := fmt.Fprintf(w, "    %s\n", it.Inst)
		return err
	case it.Bytes != nil:
		return writeBytes(w, it.Bytes)
	case it.Verbatim != "":
		_, err := fmt.Fprintf(w, "    %s\n", it.Verbatim)
		return err
	case it.Comment != "":
		_, err := fmt.Fprintf(w, "    ; %s\n", it.Comment)
		return err
	}
	return nil
}

// writeBytes emits db directives, eight bytes per line.
func writeBytes(w io.Writer, b []byte) error {
	for off := 0; off < len(b); off += 8 {
		end := off + 8
		if end > len(b) {
			end = len(b)
		}
		line := "    db "
		for i, v := range b[off:end] {
			if i > 0 {
				line += ", "
			}
			line += fmt.Sprintf("$%02X", v)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
