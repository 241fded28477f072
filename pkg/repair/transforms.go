package repair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fenceRe      = regexp.MustCompile("```[A-Za-z0-9_-]*")
	summaryKeyRe = regexp.MustCompile(`["']?summary["']?\s*:`)
	numberRe     = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
	identRe      = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$-]*$`)
)

// stripFences removes markdown code fence markers, keeping their contents.
func stripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// matchingSpan cuts s down to the first '{' and the '}' that closes it,
// skipping braces inside strings. When the object never closes it falls back
// to the last '}' in s.
func matchingSpan(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = scanQuoted(s, i, '"') - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return outerSpan(s)
}

// outerSpan cuts s from the first '{' to the last '}', or to the end when no '}' follows.
func outerSpan(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// anchoredSpan starts at the '{' that opens the object holding the summary key.
func anchoredSpan(s string) string {
	loc := summaryKeyRe.FindStringIndex(s)
	if loc == nil {
		return ""
	}
	start := strings.LastIndexByte(s[:loc[0]], '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// normalizeStrings escapes raw control characters inside strings and stray
// double quotes that do not end the string they appear in. A quote ends a
// string when it is followed by a structural character, another quote, a
// line break, or the end of input.
func normalizeStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	var lastSig byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			switch {
			case c == '"':
				inString = true
			case c == '\'' && (lastSig == 0 || isPunct(lastSig)):
				// single-quoted strings are left to normalizeValues
				j := scanQuoted(s, i, '\'')
				b.WriteString(s[i:j])
				i = j - 1
				lastSig = '\''
				continue
			}
			if !isSpace(c) {
				lastSig = c
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case c == '\\':
			b.WriteByte(c)
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case c == '"':
			if closesString(s, i+1) {
				inString = false
				lastSig = c
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closesString(s string, j int) bool {
	for ; j < len(s) && isSpace(s[j]); j++ {
		if s[j] == '\n' || s[j] == '\r' {
			return true
		}
	}
	if j == len(s) {
		return true
	}
	switch s[j] {
	case ',', ':', '}', ']', '"':
		return true
	}
	return false
}

func endsValue(t token) bool {
	switch t.kind {
	case tokString, tokSingle, tokLiteral:
		return true
	case tokPunct:
		return t.text == "}" || t.text == "]"
	}
	return false
}

func startsValue(t token) bool {
	switch t.kind {
	case tokString, tokSingle, tokLiteral:
		return true
	case tokPunct:
		return t.text == "{" || t.text == "["
	}
	return false
}

// insertMissingCommas adds a comma between adjacent elements separated only by
// whitespace. Two bare words are only split when a line break separates them.
func insertMissingCommas(s string) string {
	toks := tokenize(s)
	out := make([]token, 0, len(toks)+8)
	for i, t := range toks {
		out = append(out, t)
		if !endsValue(t) {
			continue
		}
		j, gap := nextSignificant(toks, i+1)
		if j < 0 {
			continue
		}
		next := toks[j]
		if next.is(":") || !startsValue(next) {
			continue
		}
		if t.kind == tokLiteral && next.kind == tokLiteral && !strings.ContainsAny(gap, "\n\r") {
			continue
		}
		out = append(out, token{tokPunct, ","})
	}
	return render(out)
}

// stripTrailingCommas drops commas before a closing bracket, doubled commas,
// and commas right after an opening bracket.
func stripTrailingCommas(s string) string {
	toks := tokenize(s)
	out := make([]token, 0, len(toks))
	for i, t := range toks {
		if t.is(",") {
			j, _ := nextSignificant(toks, i+1)
			if j < 0 || toks[j].is("}") || toks[j].is("]") || toks[j].is(",") {
				continue
			}
			if prev, ok := lastSignificant(out); !ok || prev.is("{") || prev.is("[") {
				continue
			}
		}
		out = append(out, t)
	}
	return render(out)
}

// quoteBareKeys turns `word:` into `"word":` for identifier-like property names.
func quoteBareKeys(s string) string {
	toks := tokenize(s)
	out := make([]token, 0, len(toks))
	for i, t := range toks {
		if t.kind == tokLiteral && identRe.MatchString(t.text) {
			j, _ := nextSignificant(toks, i+1)
			if j >= 0 && toks[j].is(":") {
				prev, ok := lastSignificant(out)
				if !ok || prev.is("{") || prev.is(",") {
					t = token{tokString, `"` + t.text + `"`}
				}
			}
		}
		out = append(out, t)
	}
	return render(out)
}

// normalizeValues rewrites single-quoted strings as double-quoted ones, maps
// Python/JS style literals onto JSON ones, and quotes bare words appearing in
// value position.
func normalizeValues(s string) string {
	toks := tokenize(s)
	out := make([]token, 0, len(toks))
	var stack []byte
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokPunct:
			switch t.text {
			case "{", "[":
				stack = append(stack, t.text[0])
			case "}", "]":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		case tokSingle:
			t = token{tokString, singleToDouble(t.text)}
		case tokLiteral:
			prev, ok := lastSignificant(out)
			inArray := len(stack) > 0 && stack[len(stack)-1] == '['
			valuePos := ok && (prev.is(":") || (inArray && (prev.is("[") || prev.is(","))))
			if !valuePos {
				break
			}
			end := i
			for j := i + 1; j < len(toks); j++ {
				if toks[j].kind == tokLiteral {
					end = j
					continue
				}
				if toks[j].kind == tokSpace && !strings.ContainsAny(toks[j].text, "\n\r") {
					continue
				}
				break
			}
			if end == i {
				if lit := canonicalLiteral(t.text); lit != "" {
					t = token{tokLiteral, lit}
					break
				}
			}
			t = token{tokString, quoteJSON(render(toks[i : end+1]))}
			i = end
		}
		out = append(out, t)
	}
	return render(out)
}

func canonicalLiteral(s string) string {
	switch s {
	case "true", "false", "null":
		return s
	case "True", "TRUE":
		return "true"
	case "False", "FALSE":
		return "false"
	case "None", "NULL", "Null", "nil", "undefined":
		return "null"
	}
	if numberRe.MatchString(s) {
		return s
	}
	return ""
}

func singleToDouble(text string) string {
	inner := text[1:]
	if terminated(token{tokSingle, text}) {
		inner = text[1 : len(text)-1]
	}
	var b strings.Builder
	b.Grow(len(inner) + 2)
	b.WriteByte('"')
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\' && i+1 < len(inner) && inner[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(inner):
			b.WriteByte(c)
			b.WriteByte(inner[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// closeBrackets terminates a truncated document: it closes a dangling string,
// gives a dangling key or colon a null value, and appends the closers of every
// bracket still open.
func closeBrackets(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	toks := tokenize(s)
	var stack []byte
	for _, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "{", "[":
			stack = append(stack, t.text[0])
		case "}":
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case "]":
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}

	var b strings.Builder
	b.WriteString(s)
	last, _ := lastSignificant(toks)
	if last.kind == tokString && !terminated(last) {
		b.WriteByte('"')
	}
	if stack[len(stack)-1] == '{' {
		switch {
		case last.is(":"):
			b.WriteString("null")
		case last.kind == tokString && isDanglingKey(toks):
			b.WriteString(":null")
		}
	}
	for k := len(stack) - 1; k >= 0; k-- {
		if stack[k] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// isDanglingKey reports whether the final string token sits in key position.
func isDanglingKey(toks []token) bool {
	seen := 0
	for k := len(toks) - 1; k >= 0; k-- {
		if toks[k].kind == tokSpace {
			continue
		}
		seen++
		if seen == 2 {
			return toks[k].is("{") || toks[k].is(",")
		}
	}
	return false
}

// normalizeAll applies every structural normalization in order.
func normalizeAll(s string) string {
	s = normalizeStrings(s)
	s = insertMissingCommas(s)
	s = stripTrailingCommas(s)
	s = quoteBareKeys(s)
	return normalizeValues(s)
}

// mergeFragments joins several top-level objects into one. Array members of
// the same key are concatenated; other keys keep their first value.
func mergeFragments(s string) string {
	var spans []string
	depth, start := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if depth > 0 {
				i = scanQuoted(s, i, '"') - 1
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, s[start:i+1])
			}
		}
	}
	if len(spans) < 2 {
		return ""
	}

	var keys []string
	arrays := make(map[string][]string)
	scalars := make(map[string]string)
	for _, span := range spans {
		text := normalizeAll(span)
		if !gjson.Valid(text) {
			continue
		}
		gjson.Parse(text).ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			_, isArray := arrays[k]
			_, isScalar := scalars[k]
			if !isArray && !isScalar {
				keys = append(keys, k)
			}
			switch {
			case value.IsArray() && !isScalar:
				items := arrays[k]
				if items == nil {
					items = []string{}
				}
				for _, item := range value.Array() {
					items = append(items, item.Raw)
				}
				arrays[k] = items
			case !isArray && !isScalar:
				scalars[k] = value.Raw
			}
			return true
		})
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		if items, ok := arrays[k]; ok {
			b.WriteString("[" + strings.Join(items, ",") + "]")
		} else {
			b.WriteString(scalars[k])
		}
	}
	b.WriteByte('}')
	return b.String()
}
