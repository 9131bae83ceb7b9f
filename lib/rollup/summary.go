package rollup

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Summary is the event count for one (hour, event type) pair.
type Summary struct {
	Hour      time.Time
	EventType string
	Total     int
}

// Aggregate counts events per (UTC hour, event type). The result is sorted
// by hour then type so output is deterministic across runs.
func Aggregate(events []Event) []Summary {
	type key struct {
		hour time.Time
		typ  string
	}
	counts := map[key]int{}
	for _, e := range events {
		counts[key{hour: e.Hour(), typ: e.Type}]++
	}

	summaries := make([]Summary, 0, len(counts))
	for k, total := range counts {
		summaries = append(summaries, Summary{Hour: k.hour, EventType: k.typ, Total: total})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Hour.Equal(summaries[j].Hour) {
			return summaries[i].Hour.Before(summaries[j].Hour)
		}
		return summaries[i].EventType < summaries[j].EventType
	})
	return summaries
}

// SummaryPath is the bucket-relative location of an hour's summary file,
// partitioned for downstream query engines.
func SummaryPath(hour time.Time) string {
	hour = hour.UTC()
	return fmt.Sprintf("summaries/%04d/%02d/%02d/hour=%02d/summary.csv",
		hour.Year(), int(hour.Month()), hour.Day(), hour.Hour())
}

// EncodeCSV renders one hour's summaries as a CSV file with a header row.
func EncodeCSV(summaries []Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"hour", "event_type", "total_events"}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, s := range summaries {
		row := []string{s.Hour.UTC().Format(time.RFC3339), s.EventType, strconv.Itoa(s.Total)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
