// Package blob repairs the JavaScript object literals embedded in scraped
// pages into JSON text and decodes them.
package blob

// Placeholder is the marker some sources print instead of values that are
// restricted to paying subscribers.
const Placeholder = "[PRO]"

// Clean rewrites a JavaScript-ish object literal into JSON text. It quotes
// bare keys, turns single-quoted strings into double-quoted ones, maps
// undefined, void 0 and the placeholder marker to null, and adds the
// missing leading zero to decimals such as .5 and -.5. The content of
// double-quoted strings is copied untouched, so valid JSON is returned as is.
//
// Clean never parses; callers decode the result and handle failures.
func Clean(raw string) string {
	s := raw
	n := len(s)
	out := make([]byte, 0, n+n/8)

	for i := 0; i < n; {
		c := s[i]
		switch {
		case c == '"':
			j, closed := scanString(s, i, '"')
			if closed && s[i+1:j-1] == Placeholder {
				out = append(out, "null"...)
			} else {
				out = append(out, s[i:j]...)
			}
			i = j
		case c == '\'':
			j, closed := scanString(s, i, '\'')
			if !closed {
				out = append(out, s[i:]...)
				i = n
				continue
			}
			body := s[i+1 : j-1]
			if body == Placeholder {
				out = append(out, "null"...)
			} else {
				out = requote(out, body)
			}
			i = j
		case c == '[' && hasPrefixAt(s, i, Placeholder):
			out = append(out, "null"...)
			i += len(Placeholder)
		case isDigit(c):
			j := scanNumber(s, i)
			out = append(out, s[i:j]...)
			i = j
		case c == '.' && i+1 < n && isDigit(s[i+1]) && !endsWithDigit(out):
			out = append(out, '0', '.')
			i++
		case isIdentStart(c):
			j := scanIdent(s, i)
			word := s[i:j]
			switch {
			case word == "undefined":
				out = append(out, "null"...)
			case word == "void":
				k := skipSpace(s, j)
				if k < n && s[k] == '0' && (k+1 == n || !isIdentPart(s[k+1])) {
					out = append(out, "null"...)
					j = k + 1
				} else {
					out = append(out, word...)
				}
			case isKey(out, s, j):
				out = append(out, '"')
				out = append(out, word...)
				out = append(out, '"')
			default:
				out = append(out, word...)
			}
			i = j
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// scanString returns the index just past the literal opened at s[i] and
// whether it was terminated.
func scanString(s string, i int, quote byte) (int, bool) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1, true
		}
	}
	return len(s), false
}

// requote appends body, taken from a single-quoted literal, as a
// double-quoted JSON string.
func requote(out []byte, body string) []byte {
	out = append(out, '"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			out = append(out, '\'')
			i++
		case c == '\\' && i+1 < len(body):
			out = append(out, c, body[i+1])
			i++
		case c == '"':
			out = append(out, '\\', '"')
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}

func scanNumber(s string, i int) int {
	j := i
	for j < len(s) {
		c := s[j]
		switch {
		case isDigit(c), c == '.':
			j++
		case c == 'e' || c == 'E':
			j++
			if j < len(s) && (s[j] == '+' || s[j] == '-') {
				j++
			}
		default:
			return j
		}
	}
	return j
}

func scanIdent(s string, i int) int {
	j := i + 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	return j
}

// isKey reports whether the identifier ending at s[end] sits in key
// position: after { or , and before a colon.
func isKey(out []byte, s string, end int) bool {
	k := skipSpace(s, end)
	if k >= len(s) || s[k] != ':' {
		return false
	}
	for p := len(out) - 1; p >= 0; p-- {
		switch out[p] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', ',':
			return true
		default:
			return false
		}
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func hasPrefixAt(s string, i int, prefix string) bool {
	return len(s)-i >= len(prefix) && s[i:i+len(prefix)] == prefix
}

func endsWithDigit(out []byte) bool {
	return len(out) > 0 && isDigit(out[len(out)-1])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
