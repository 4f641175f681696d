package llm

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is a single Server-Sent Event.
type SSEEvent struct {
	Event string
	Data  string
}

const sseDone = "[DONE]"

// ParseSSE reads an SSE stream and yields events on the returned channel.
// The channel closes when the stream ends or the [DONE] sentinel arrives.
func ParseSSE(reader io.Reader) <-chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(reader)
		// Streaming chunks can exceed the default token size.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var event string
		var data []string

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				// Blank line terminates one event.
				if len(data) > 0 {
					joined := strings.Join(data, "\n")
					if joined == sseDone {
						return
					}
					ch <- SSEEvent{Event: event, Data: joined}
				}
				event, data = "", nil
			case strings.HasPrefix(line, "data:"):
				data = append(data, trimField(line, "data:"))
			case strings.HasPrefix(line, "event:"):
				event = trimField(line, "event:")
			}
			// Comment lines (":") and unknown fields are ignored.
		}

		if len(data) > 0 {
			if joined := strings.Join(data, "\n"); joined != sseDone {
				ch <- SSEEvent{Event: event, Data: joined}
			}
		}
	}()
	return ch
}

func trimField(line, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(line, prefix), " ")
}
