package pdf

import (
	"strconv"
	"strings"
)

// kerning adjustments inside TJ arrays beyond this (in thousandths of an em)
// are treated as word gaps
const wordGap = -200

// TextFromContent returns the literal strings shown by a page content
// stream (Tj, TJ, ' and "). Hex strings are skipped since they are usually
// glyph ids that need the font's CMap to decode.
func TextFromContent(content []byte) string {
	var (
		out     strings.Builder
		pending strings.Builder
		inArray bool
	)
	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case isSpace(c):
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(content, i)
			pending.WriteString(s)
			i = next
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				i += 2
				continue
			}
			for i < len(content) && content[i] != '>' {
				i++
			}
			i++
		case c == '>':
			i++
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/' || c == '{' || c == '}':
			i++
			for i < len(content) && !isSpace(content[i]) && !isDelim(content[i]) {
				i++
			}
		default:
			start := i
			for i < len(content) && !isSpace(content[i]) && !isDelim(content[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(content[start:i])
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				if inArray && n < wordGap && pending.Len() > 0 {
					pending.WriteByte(' ')
				}
				continue
			}
			switch tok {
			case "Tj", "TJ":
				out.WriteString(pending.String())
			case "'", "\"":
				newline()
				out.WriteString(pending.String())
			case "Td", "TD", "T*", "ET":
				newline()
			}
			pending.Reset()
		}
	}
	return cleanLines(out.String())
}

func readLiteral(b []byte, i int) (string, int) {
	var s strings.Builder
	depth := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '(':
			if depth > 0 {
				s.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return s.String(), i
			}
			s.WriteByte(c)
		case '\\':
			i++
			if i >= len(b) {
				return s.String(), i
			}
			e := b[i]
			switch e {
			case 'n':
				s.WriteByte('\n')
			case 'r':
				s.WriteByte('\r')
			case 't':
				s.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
				if e == '\r' && i+1 < len(b) && b[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					j, v := i, 0
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						v = v*8 + int(b[j]-'0')
						j++
					}
					s.WriteByte(byte(v))
					i = j
					continue
				}
				s.WriteByte(e)
			}
			i++
		default:
			s.WriteByte(c)
			i++
		}
	}
	return s.String(), i
}

func cleanLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
