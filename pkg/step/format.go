package step

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

// formatReal renders a float as a STEP REAL, which always carries a decimal
// point: 0., 1.5, -2.5E-07
func formatReal(v float64) string {
	if v == 0 {
		return "0."
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	if abs >= 1e-4 && abs < 1e15 {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += "."
		}
		return s
	}

	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exponent, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += "."
	}
	return mantissa + "E" + exponent
}

func formatTriple(v geometry.Vector3) string {
	return "(" + formatReal(v.X) + "," + formatReal(v.Y) + "," + formatReal(v.Z) + ")"
}

// formatString quotes s as a STEP string literal. Quotes and backslashes are
// doubled and characters outside printable ASCII use the \X2\ encoding.
func formatString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	var wide []rune
	flush := func() {
		if len(wide) == 0 {
			return
		}
		b.WriteString(`\X2\`)
		for _, r := range wide {
			fmt.Fprintf(&b, "%04X", r)
		}
		b.WriteString(`\X0\`)
		wide = wide[:0]
	}

	for _, r := range s {
		if r == utf8.RuneError || r > 0xFFFF {
			r = '?'
		}
		if r < 0x20 {
			r = ' '
		}
		if r > 0x7E {
			wide = append(wide, r)
			continue
		}
		flush()
		switch r {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	flush()
	b.WriteByte('\'')
	return b.String()
}

// ref renders an entity reference
func ref(id int) string {
	return "#" + strconv.Itoa(id)
}

// refList renders a parenthesized list of entity references
func refList(ids ...int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = ref(id)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func boolean(v bool) string {
	if v {
		return ".T."
	}
	return ".F."
}
