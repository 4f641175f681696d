package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

// ParseError is the typed failure of the authoritative end-of-stream parse.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse response document: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ParseAuthoritative strictly parses the complete buffer into the response
// document schema. Invariant on success: at least one bubble.
func ParseAuthoritative(buf string) (*bubble.ResponseDocument, error) {
	cleaned := stripFences(strings.TrimSpace(buf))
	var doc bubble.ResponseDocument
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(doc.Bubbles) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("document has no bubbles")}
	}
	return &doc, nil
}

// ParseBestEffort extracts whatever bubbles the partial buffer holds so far.
// settled reports that the buffer was already balanced JSON; when it is
// false the last returned bubble may still be mid-flight and the caller must
// not trust it yet. A nil slice means nothing parseable arrived.
func ParseBestEffort(buf string) (bubbles []bubble.Bubble, settled bool) {
	cleaned := stripFences(strings.TrimSpace(buf))
	if cleaned == "" {
		return nil, false
	}
	repaired, balanced := Repair(cleaned)
	var doc struct {
		Bubbles []bubble.Bubble `json:"bubbles"`
	}
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		return nil, false
	}
	return doc.Bubbles, balanced
}

// stripFences removes a markdown code fence the backend may wrap the
// document in despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// frame tracks one open container during the repair scan. safeEnd is the
// byte offset just past the last complete member or element (or just past
// the opening bracket), i.e. the position the buffer can be cut at without
// leaving a dangling key or value behind.
type frame struct {
	open       byte // '{' or '['
	safeEnd    int
	sawColon   bool
	pendingKey bool
}

// Repair returns a syntactically valid rendition of a possibly truncated
// JSON buffer: unterminated strings are closed, partial keys and dangling
// values are dropped back to the last safe point, and open containers are
// closed. balanced reports that the input needed no repair.
//
// Tolerance here is deliberate policy, not general JSON handling: a closed
// partial string value survives (salvage depends on that), while a partial
// key or a key with no value vanishes as if it never arrived.
func Repair(s string) (repaired string, balanced bool) {
	var stack []frame
	inStr, esc, strIsKey := false, false, false
	tokenStart := -1

	completeValue := func(end int) {
		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			top.safeEnd = end
			top.sawColon = false
			top.pendingKey = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
				if strIsKey {
					stack[len(stack)-1].pendingKey = true
				} else {
					completeValue(i + 1)
				}
			}
			continue
		}
		if tokenStart >= 0 {
			if isTokenChar(c) {
				continue
			}
			completeValue(i)
			tokenStart = -1
		}
		switch c {
		case '"':
			inStr = true
			strIsKey = len(stack) > 0 && stack[len(stack)-1].open == '{' && !stack[len(stack)-1].sawColon
		case ':':
			if len(stack) > 0 && stack[len(stack)-1].open == '{' {
				stack[len(stack)-1].sawColon = true
			}
		case '{', '[':
			stack = append(stack, frame{open: c, safeEnd: i + 1})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			completeValue(i + 1)
		default:
			if isTokenChar(c) {
				tokenStart = i
			}
		}
	}

	if !inStr && tokenStart < 0 && len(stack) == 0 {
		return s, true
	}

	var out []byte
	switch {
	case inStr && strIsKey:
		// Partial key: drop it entirely.
		out = []byte(s[:stack[len(stack)-1].safeEnd])
	case inStr:
		// Partial string value: close the quote, trimming a half-written
		// escape sequence first.
		out = append([]byte(closeStringTail(s)), '"')
	case tokenStart >= 0:
		tok := s[tokenStart:]
		if json.Valid([]byte(tok)) {
			out = []byte(s)
		} else if len(stack) > 0 {
			out = []byte(s[:stack[len(stack)-1].safeEnd])
		} else {
			return "", false
		}
	case len(stack) > 0 && stack[len(stack)-1].open == '{' &&
		(stack[len(stack)-1].sawColon || stack[len(stack)-1].pendingKey):
		// A key with no value yet, or a completed key with no colon:
		// drop the key.
		out = []byte(s[:stack[len(stack)-1].safeEnd])
	default:
		out = []byte(s)
	}

	out = trimDanglingComma(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			out = append(out, '}')
		} else {
			out = append(out, ']')
		}
	}
	return string(out), false
}

func isTokenChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '-', c == '+', c == '.':
		return true
	}
	return false
}

// closeStringTail trims an incomplete escape sequence from the end of a
// buffer that stops inside a string value.
func closeStringTail(s string) string {
	// Count trailing backslashes: an odd count means the last one opens an
	// escape that never got its follow-up character.
	bs := 0
	for bs < len(s) && s[len(s)-1-bs] == '\\' {
		bs++
	}
	if bs%2 == 1 {
		return s[:len(s)-1]
	}
	// A \uXXXX escape with fewer than four hex digits so far.
	for back := 1; back <= 5 && back < len(s); back++ {
		i := len(s) - back
		if s[i] == 'u' && i > 0 && s[i-1] == '\\' && !escapedBackslashAt(s, i-1) {
			if back-1 < 4 {
				return s[:i-1]
			}
			break
		}
	}
	return s
}

// escapedBackslashAt reports whether the backslash at i is itself escaped.
func escapedBackslashAt(s string, i int) bool {
	bs := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		bs++
	}
	return bs%2 == 1
}

func trimDanglingComma(out []byte) []byte {
	end := len(out)
	for end > 0 && (out[end-1] == ' ' || out[end-1] == '\n' || out[end-1] == '\t' || out[end-1] == '\r') {
		end--
	}
	if end > 0 && out[end-1] == ',' {
		end--
	}
	return out[:end]
}
