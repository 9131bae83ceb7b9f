// Package rollup aggregates raw event files into hourly CSV summaries. It is
// the workload side of the platform: a run-to-completion batch pipeline that
// reads JSON event arrays from one bucket and writes partitioned summaries to
// another.
package rollup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidJSON  = errors.New("invalid JSON event file")
	ErrInvalidEvent = errors.New("invalid event record")
)

// Event is one normalized event: its UTC timestamp and type.
type Event struct {
	Timestamp time.Time
	Type      string
}

// Hour is the event's UTC hour bucket.
func (e Event) Hour() time.Time {
	return e.Timestamp.UTC().Truncate(time.Hour)
}

type rawEvent struct {
	Timestamp string `json:"event_timestamp"`
	Type      string `json:"event_type"`
}

// ParseEvents decodes one event file: a JSON array of records carrying an
// RFC 3339 event_timestamp and an event_type. Any malformed record aborts
// the whole file; partial results would silently skew the summaries.
func ParseEvents(data []byte) ([]Event, error) {
	var raw []rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	events := make([]Event, 0, len(raw))
	for i, r := range raw {
		if r.Type == "" {
			return nil, fmt.Errorf("%w: record %d has no event_type", ErrInvalidEvent, i)
		}
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d timestamp %q: %v", ErrInvalidEvent, i, r.Timestamp, err)
		}
		events = append(events, Event{Timestamp: ts, Type: r.Type})
	}
	return events, nil
}
