package dsid

import "strings"

// String renders d in the canonical textual form of spec.md §6. Names are
// always rendered quoted: that is always valid syntax and makes the
// rendering trivially round-trippable through Parse, without needing to
// special-case names that would otherwise collide with a sentinel or
// pattern (e.g. a literal name "Stat" or "12").
func (d Dsid) String() string {
	if len(d) == 0 {
		return "/"
	}
	parts := make([]string, len(d))
	for i, k := range d {
		parts[i] = formatKey(k)
	}
	return "/" + strings.Join(parts, "/")
}

func formatKey(k Key) string {
	switch v := k.(type) {
	case Name:
		return quoteName(string(v))
	default:
		return k.String()
	}
}

func quoteName(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
