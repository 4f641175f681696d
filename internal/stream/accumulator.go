package stream

import (
	"regexp"
	"strings"
)

// Accumulator owns the growing response buffer for the lifetime of one
// request. Pure concatenation; everyone else gets read-only snapshots.
type Accumulator struct {
	buf strings.Builder
}

func (a *Accumulator) Append(delta string) {
	a.buf.WriteString(delta)
}

func (a *Accumulator) Snapshot() string {
	return a.buf.String()
}

func (a *Accumulator) Len() int {
	return a.buf.Len()
}

var bubbleSeparator = regexp.MustCompile(`\}\s*,\s*\{`)

// Detector decides whether a newly arrived delta makes a re-parse worth the
// cost. It is a throttle, not a correctness gate: the authoritative parse at
// end of stream re-checks everything a missed trigger delayed.
type Detector struct {
	sawKeys bool
}

// Should reports whether the buffer deserves a parse attempt after delta
// arrived.
func (d *Detector) Should(delta, buf string) bool {
	if bubbleSeparator.MatchString(delta) {
		return true
	}
	if !d.sawKeys {
		d.sawKeys = strings.Contains(buf, `"messageType"`) && strings.Contains(buf, `"content"`)
	}
	if !d.sawKeys {
		return false
	}
	// A closing quote or brace in the delta suggests a field just ended.
	return strings.Contains(delta, `",`) || strings.Contains(delta, `"`+"}") || strings.Contains(delta, "}")
}
