package resolver

import "strings"

// Canon maps an identifier to its canonical key: lowercase with
// underscores stripped. playerHealth, player_health and PLAYERHEALTH all
// canonicalize to "playerhealth" and therefore name the same symbol. This
// is the only place the rule lives; declaration and lookup both go
// through it.
func Canon(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		if c == '_' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}
