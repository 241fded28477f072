package repair

import (
	"bytes"
	"encoding/json"
	"strings"
)

type tokenKind int

const (
	tokSpace   tokenKind = iota
	tokPunct             // { } [ ] : ,
	tokString            // double-quoted, quotes included
	tokSingle            // single-quoted, quotes included
	tokLiteral           // bare run: numbers, true/false/null, identifiers, words
)

type token struct {
	kind tokenKind
	text string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isPunct(c byte) bool {
	return strings.IndexByte("{}[]:,", c) >= 0
}

// tokenize splits loosely JSON-shaped text into tokens. It never fails:
// unterminated strings run to the end of the input.
func tokenize(s string) []token {
	toks := make([]token, 0, len(s)/4)
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isSpace(c):
			j := i
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			toks = append(toks, token{tokSpace, s[i:j]})
			i = j
		case isPunct(c):
			toks = append(toks, token{tokPunct, s[i : i+1]})
			i++
		case c == '"':
			j := scanQuoted(s, i, '"')
			toks = append(toks, token{tokString, s[i:j]})
			i = j
		case c == '\'':
			j := scanQuoted(s, i, '\'')
			toks = append(toks, token{tokSingle, s[i:j]})
			i = j
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) && !isPunct(s[j]) && s[j] != '"' {
				j++
			}
			toks = append(toks, token{tokLiteral, s[i:j]})
			i = j
		}
	}
	return toks
}

// scanQuoted returns the index just past the closing quote of the string starting at i.
func scanQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

func terminated(t token) bool {
	if len(t.text) < 2 {
		return false
	}
	q := t.text[0]
	if t.text[len(t.text)-1] != q {
		return false
	}
	backslashes := 0
	for k := len(t.text) - 2; k > 0 && t.text[k] == '\\'; k-- {
		backslashes++
	}
	return backslashes%2 == 0
}

func render(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.text)
	}
	return b.String()
}

func (t token) is(punct string) bool {
	return t.kind == tokPunct && t.text == punct
}

// nextSignificant returns the index of the first non-space token at or after i
// and the whitespace skipped on the way. The index is -1 at end of input.
func nextSignificant(toks []token, i int) (int, string) {
	var gap strings.Builder
	for ; i < len(toks); i++ {
		if toks[i].kind != tokSpace {
			return i, gap.String()
		}
		gap.WriteString(toks[i].text)
	}
	return -1, gap.String()
}

func lastSignificant(toks []token) (token, bool) {
	for k := len(toks) - 1; k >= 0; k-- {
		if toks[k].kind != tokSpace {
			return toks[k], true
		}
	}
	return token{}, false
}

// quoteJSON encodes s as a JSON string without HTML escaping.
func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
