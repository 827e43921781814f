package tgmd

import "strings"

const (
	bold   = '*'
	italic = '_'
	code   = '`'
)

// Escape returns text that Telegram's Markdown parser accepts.
//
// Rules, applied in a single left-to-right pass:
//   - the literal sequences `\n` and `\r` become real line breaks
//   - a backslash and the byte after it are copied as-is
//   - inside an open code span everything but the closing backtick is literal
//   - a closed delimiter opens only when the same delimiter appears again later;
//     otherwise it is escaped. An open delimiter closes on its next occurrence.
//   - `[` is kept when `](` follows somewhere, otherwise escaped
//
// Escape(Escape(s)) == Escape(s).
func Escape(text string) string {
	if text == "" {
		return text
	}
	text = normalizeLineBreaks(text)

	var b strings.Builder
	b.Grow(len(text) + 10)

	var open [3]bool // bold, italic, code

	for i := 0; i < len(text); i++ {
		c := text[i]

		if c == '\\' && i+1 < len(text) {
			b.WriteByte(c)
			i++
			b.WriteByte(text[i])
			continue
		}

		if open[2] && c != code {
			b.WriteByte(c)
			continue
		}

		if slot := delimiterSlot(c); slot >= 0 {
			switch {
			case open[slot]:
				open[slot] = false
				b.WriteByte(c)
			case hasClosing(text, i+1, c):
				open[slot] = true
				b.WriteByte(c)
			default:
				b.WriteByte('\\')
				b.WriteByte(c)
			}
			continue
		}

		if c == '[' {
			if !strings.Contains(text[i:], "](") {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
			continue
		}

		b.WriteByte(c)
	}
	return b.String()
}

func normalizeLineBreaks(s string) string {
	if !strings.Contains(s, `\n`) && !strings.Contains(s, `\r`) {
		return s
	}
	return strings.NewReplacer(`\n`, "\n", `\r`, "\r").Replace(s)
}

func delimiterSlot(c byte) int {
	switch c {
	case bold:
		return 0
	case italic:
		return 1
	case code:
		return 2
	}
	return -1
}

// hasClosing reports whether target occurs unescaped in text[from:].
func hasClosing(text string, from int, target byte) bool {
	for k := from; k < len(text); k++ {
		if text[k] == '\\' {
			k++
			continue
		}
		if text[k] == target {
			return true
		}
	}
	return false
}
