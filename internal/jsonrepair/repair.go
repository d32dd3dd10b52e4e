// Package jsonrepair recovers structured data from the malformed JSON that LLMs
// frequently emit: code-fence wrappers, surrounding prose, missing commas,
// truncated output. Region isolation uses a depth-counting bracket matcher
// rather than a regex so adversarial input cannot trigger backtracking blowups.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/streetbite/pipeline/internal/common"
)

// ParseError is returned once every repair strategy has been exhausted. It
// carries the cleaned text and the position of the first decode failure for
// diagnostics. errors.Is(err, common.ErrParse) matches it.
type ParseError struct {
	Position int
	Cleaned  string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json repair exhausted at offset %d: %v", e.Position, e.Cause)
}

func (e *ParseError) Unwrap() error { return common.ErrParse }

// Clean strips markdown code fences, a leading "json"/"yaml" format token, and
// surrounding whitespace. Valid JSON passes through unchanged.
func Clean(text string) string {
	s := strings.TrimSpace(text)
	for {
		switch {
		case strings.HasPrefix(s, "```"):
			s = strings.TrimSpace(s[3:])
		case hasFoldPrefix(s, "json:"), hasFoldPrefix(s, "yaml:"):
			s = strings.TrimSpace(s[5:])
		case hasFoldPrefix(s, "json"), hasFoldPrefix(s, "yaml"):
			// bare format token left behind by a ```json fence
			rest := s[4:]
			if rest == "" || rest[0] == '\n' || rest[0] == '\r' || rest[0] == ' ' {
				s = strings.TrimSpace(rest)
			} else {
				return trimClosingFence(s)
			}
		default:
			return trimClosingFence(s)
		}
	}
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func trimClosingFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse unmarshals text into v, attempting textual repair when a direct parse
// fails. The repair sequence is fixed: isolate the JSON region, insert missing
// commas, close unterminated strings at line boundaries, drop trailing commas,
// then balance unmatched brackets.
func Parse(text string, v any) error {
	cleaned := Clean(text)
	if cleaned == "" {
		return &ParseError{Position: 0, Cleaned: cleaned, Cause: fmt.Errorf("no text provided")}
	}

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	region, found := extractRegion(cleaned)
	if !found {
		return &ParseError{Position: 0, Cleaned: cleaned, Cause: fmt.Errorf("no structural bracket found")}
	}

	repaired := insertMissingCommas(region)
	repaired = closeUnterminatedStrings(repaired)
	repaired = removeTrailingCommas(repaired)
	repaired = balanceBrackets(repaired)

	err := json.Unmarshal([]byte(repaired), v)
	if err == nil {
		return nil
	}
	pos := 0
	var syn *json.SyntaxError
	if ok := asSyntaxError(err, &syn); ok {
		pos = int(syn.Offset)
	}
	return &ParseError{Position: pos, Cleaned: repaired, Cause: err}
}

func asSyntaxError(err error, target **json.SyntaxError) bool {
	if se, ok := err.(*json.SyntaxError); ok {
		*target = se
		return true
	}
	return false
}

// extractRegion isolates the JSON object or array from surrounding prose. It
// finds the first structural opener and walks forward counting bracket depth,
// tolerating nested strings and escaped quotes. If the region never closes
// (truncated output) everything from the opener onward is returned so the
// balancing step can complete it.
func extractRegion(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

// insertMissingCommas adds a comma where two values sit adjacent with only
// whitespace between them, e.g. `"a" "b"` or `}{`. Runs outside strings only.
func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inString := false
	escaped := false
	lastSignificant := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				lastSignificant = '"'
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			b.WriteByte(c)
			continue
		}
		if isValueEnd(lastSignificant) && isValueStart(c) {
			b.WriteByte(',')
		}
		b.WriteByte(c)
		if c == '"' {
			inString = true
			escaped = false
		}
		lastSignificant = c
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// isValueEnd reports whether c can terminate a JSON value: a closer, a closing
// quote, a digit, or the final letter of true/false ('e') or null ('l').
// Outside strings those letters only occur in literals, so they are safe to
// treat as terminators.
func isValueEnd(c byte) bool {
	return c == '}' || c == ']' || c == '"' || c == 'e' || c == 'l' || (c >= '0' && c <= '9')
}

func isValueStart(c byte) bool {
	return c == '{' || c == '[' || c == '"'
}

// closeUnterminatedStrings terminates any string still open at a line boundary.
func closeUnterminatedStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteByte('"')
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			escaped = false
		}
		b.WriteByte(c)
	}
	if inString {
		b.WriteByte('"')
	}
	return b.String()
}

// removeTrailingCommas drops a comma that directly precedes a closer.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		if c == '"' {
			inString = true
			escaped = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balanceBrackets appends closers for every opener left unmatched, in reverse
// nesting order.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(stack))
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
