package generation

import (
	"strings"
)

// sentinelScore fills a score property whose value was cut off.
const sentinelScore = "50"

var scoreFields = map[string]bool{
	"relevanceScore": true,
	"overallMatch":   true,
}

// maxTailFixes bounds the number of edits made at the cut point.
const maxTailFixes = 16

type stringSpan struct {
	start, end int // indexes of the opening and closing quote
	key        bool
}

type scanResult struct {
	text    string
	stack   []byte
	spans   []stringSpan
	open    stringSpan // the string still open at the end, when inStr is set
	inStr   bool
	escaped bool
	closed  bool
}

// repairObject completes output that stopped mid-object. It handles a fixed set of truncation
// shapes: an open string, a dangling comma, a partial literal or number, a property name with
// no value, a colon with no value and any number of unclosed objects and arrays.
func repairObject(text string) (map[string]any, bool) {
	body := repairCandidate(text)
	if body == "" {
		return nil, false
	}

	sc := scan(body)
	s := sc.text
	if !sc.closed {
		s = closeTail(sc)
		var b strings.Builder
		b.WriteString(s)
		for i := len(sc.stack) - 1; i >= 0; i-- {
			if sc.stack[i] == '{' {
				b.WriteByte('}')
			} else {
				b.WriteByte(']')
			}
		}
		s = b.String()
	}

	return parseObject(removeTrailingCommas(s))
}

// repairCandidate returns fenced content, tolerating a missing closing fence, cut to the first
// opening brace.
func repairCandidate(text string) string {
	body := text
	if start := openingFence(text, true); start >= 0 {
		body = fenceInterior(text[start+len(fence):])
	} else if start := openingFence(text, false); start >= 0 {
		body = fenceInterior(text[start+len(fence):])
	}

	i := strings.IndexByte(body, '{')
	if i < 0 {
		return ""
	}
	return body[i:]
}

func fenceInterior(rest string) string {
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return stripFenceLabel(rest)
}

// scan walks s outside and inside strings, tracking open containers. It stops after the
// top-level object closes or at the first closer that does not match.
func scan(s string) scanResult {
	var (
		res     scanResult
		prevSig byte
		cur     stringSpan
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if res.inStr {
			switch {
			case res.escaped:
				res.escaped = false
			case c == '\\':
				res.escaped = true
			case c == '"':
				res.inStr = false
				cur.end = i
				res.spans = append(res.spans, cur)
				prevSig = '"'
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			res.inStr = true
			cur = stringSpan{
				start: i,
				key:   len(res.stack) > 0 && res.stack[len(res.stack)-1] == '{' && (prevSig == '{' || prevSig == ','),
			}
		case '{', '[':
			res.stack = append(res.stack, c)
		case '}', ']':
			open := byte('{')
			if c == ']' {
				open = '['
			}
			if len(res.stack) == 0 || res.stack[len(res.stack)-1] != open {
				res.text = s[:i]
				return res
			}
			res.stack = res.stack[:len(res.stack)-1]
			if len(res.stack) == 0 {
				res.text = s[:i+1]
				res.closed = true
				return res
			}
		}
		prevSig = c
	}

	res.text = s
	if res.inStr {
		res.open = cur
	}
	return res
}

// closeTail edits the end of a truncated document so that appending closers yields valid JSON.
func closeTail(sc scanResult) string {
	s := sc.text
	if sc.inStr {
		s = dropIncompleteEscape(s, sc.open.start, sc.escaped) + `"`
		open := sc.open
		open.end = len(s) - 1
		sc.spans = append(sc.spans, open)
	}

	for range maxTailFixes {
		s = strings.TrimRight(s, " \t\r\n")
		if s == "" {
			return s
		}

		last := s[len(s)-1]
		switch {
		case last == ',':
			s = s[:len(s)-1]

		case last == ':':
			key := keyBefore(s, sc.spans, len(s)-1)
			if scoreFields[key] {
				return s + sentinelScore
			}
			return s + "null"

		case last == '"':
			span, ok := spanEndingAt(sc.spans, len(s)-1)
			if !ok || !span.key {
				return s
			}
			s = s[:span.start]

		case last == '{' || last == '[' || last == '}' || last == ']':
			return s

		case isLetter(last):
			word := trailingRun(s, isLetter)
			if lit, ok := completeLiteral(word); ok {
				return s[:len(s)-len(word)] + lit
			}
			s = s[:len(s)-len(word)]

		case isNumberChar(last):
			num := trailingRun(s, isNumberChar)
			kept := strings.TrimRight(num, ".eE+-")
			s = s[:len(s)-len(num)] + kept
			if kept != "" {
				return s
			}

		default:
			s = s[:len(s)-1]
		}
	}
	return s
}

func dropIncompleteEscape(s string, openQuote int, escaped bool) string {
	if escaped {
		return s[:len(s)-1]
	}
	// A \u escape needs four hex digits.
	if i := strings.LastIndex(s, `\u`); i > openQuote && len(s)-i < 6 {
		tail := s[i+2:]
		if strings.Trim(tail, "0123456789abcdefABCDEF") == "" && precedingBackslashes(s, i)%2 == 0 {
			return s[:i]
		}
	}
	return s
}

func precedingBackslashes(s string, i int) int {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n
}

func keyBefore(s string, spans []stringSpan, colon int) string {
	for i := len(spans) - 1; i >= 0; i-- {
		sp := spans[i]
		if sp.end >= colon {
			continue
		}
		if strings.TrimSpace(s[sp.end+1:colon]) != "" {
			return ""
		}
		return s[sp.start+1 : sp.end]
	}
	return ""
}

func spanEndingAt(spans []stringSpan, end int) (stringSpan, bool) {
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].end == end {
			return spans[i], true
		}
		if spans[i].end < end {
			break
		}
	}
	return stringSpan{}, false
}

func completeLiteral(word string) (string, bool) {
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(lit, word) {
			return lit, true
		}
	}
	return "", false
}

func trailingRun(s string, match func(byte) bool) string {
	i := len(s)
	for i > 0 && match(s[i-1]) {
		i--
	}
	return s[i:]
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}

// removeTrailingCommas drops commas that directly precede a closer, outside strings.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inStr = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
