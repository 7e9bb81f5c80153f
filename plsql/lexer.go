package plsql

import "strings"

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokNumber
	tokSymbol
)

// token is a lexeme with byte offsets into the scanned source, so callers
// can slice raw text back out between token boundaries.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) isSymbol(s string) bool {
	return t.kind == tokSymbol && t.text == s
}

// tokenize scans comment-free source into words, string literals, numbers
// and single-character symbols. It is deliberately shallow: the pipeline
// needs boundaries and keywords, not a grammar.
func tokenize(src string) []token {
	var toks []token
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			start := i
			i++
			for i < n {
				if src[i] == '\'' {
					if i+1 < n && src[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{tokString, src[start:i], start, i})
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{tokWord, src[start:i], start, i})
		case c >= '0' && c <= '9':
			start := i
			for i < n && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start, i})
		default:
			toks = append(toks, token{tokSymbol, string(c), i, i + 1})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '"'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '$' || c == '#'
}

// MaskLiterals blanks the contents of string literals, preserving length so
// byte offsets in the masked text map straight back into the original.
// Quotes are kept; doubled quotes inside a literal are blanked with it.
func MaskLiterals(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] != '\'' {
			continue
		}
		i++
		for i < len(b) {
			if b[i] == '\'' {
				if i+1 < len(b) && b[i+1] == '\'' {
					b[i], b[i+1] = ' ', ' '
					i += 2
					continue
				}
				break
			}
			b[i] = ' '
			i++
		}
	}
	return string(b)
}

// stripComments blanks out -- line comments and /* */ block comments,
// preserving byte offsets and newlines so token positions still map into
// the original layout. String literals are left untouched.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '\'':
			b.WriteByte(c)
			i++
			for i < n {
				b.WriteByte(src[i])
				if src[i] == '\'' {
					if i+1 < n && src[i+1] == '\'' {
						i++
						b.WriteByte(src[i])
						i++
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '-' && i+1 < n && src[i+1] == '-':
			for i < n && src[i] != '\n' {
				b.WriteByte(' ')
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			for i < n {
				if src[i] == '*' && i+1 < n && src[i+1] == '/' {
					b.WriteString("  ")
					i += 2
					break
				}
				if src[i] == '\n' {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
