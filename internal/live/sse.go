// ABOUTME: Server-Sent Events line parser for the message stream
// ABOUTME: Handles data/event/id/retry fields and comment keep-alives

package live

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line.
const maxLineSize = 1 << 20

// Event is one dispatched Server-Sent Event.
type Event struct {
	ID    string
	Type  string
	Data  string
	Retry time.Duration
}

// readEvents parses body and calls onEvent for every complete event. It
// returns nil at end of stream, ctx.Err() on cancellation, or onEvent's
// first error.
func readEvents(ctx context.Context, body io.Reader, onEvent func(Event) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		eventType string
		eventID   string
		retry     time.Duration
		dataLines []string
	)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()

		// Empty line dispatches the pending event
		if line == "" {
			if len(dataLines) > 0 {
				event := Event{
					ID:    eventID,
					Type:  eventType,
					Data:  strings.Join(dataLines, "\n"),
					Retry: retry,
				}
				if event.Type == "" {
					event.Type = "message"
				}
				if err := onEvent(event); err != nil {
					return err
				}
			}
			eventType = ""
			retry = 0
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			dataLines = append(dataLines, value)
		case "event":
			eventType = value
		case "id":
			eventID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}
