package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashab24/batch-job-orch/lib/objstore"
)

var jobTime = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func newTestJob(store objstore.Store) *Job {
	j := NewJob(store, Config{
		InputBucket:   "raw-events",
		OutputBucket:  "event-summaries",
		InputPrefix:   "events/",
		LookbackHours: 24,
	}, nil)
	j.now = func() time.Time { return jobTime }
	return j
}

func TestJobRun(t *testing.T) {
	store := objstore.NewMemory()
	old := jobTime.Add(-48 * time.Hour)

	store.Put("raw-events", "events/day1.json", []byte(`[
		{"event_timestamp": "2026-08-24T14:03:11Z", "event_type": "click"},
		{"event_timestamp": "2026-08-24T14:45:00Z", "event_type": "click"},
		{"event_timestamp": "2026-08-24T15:10:00Z", "event_type": "view"}
	]`), old)
	store.Put("raw-events", "events/day2.json", []byte(`[
		{"event_timestamp": "2026-08-24T14:20:00Z", "event_type": "view"}
	]`), old)
	// Fresh file inside the lookback window is skipped.
	store.Put("raw-events", "events/live.json", []byte(`[
		{"event_timestamp": "2026-08-26T11:00:00Z", "event_type": "click"}
	]`), jobTime.Add(-time.Hour))
	// Non-JSON objects are ignored.
	store.Put("raw-events", "events/readme.txt", []byte("notes"), old)
	// Objects outside the prefix are ignored.
	store.Put("raw-events", "other/day1.json", []byte(`[]`), old)

	stats, err := newTestJob(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 4, stats.Events)
	assert.Equal(t, 3, stats.Summaries)
	assert.Equal(t, 2, stats.HoursWritten)

	data, err := store.Download(context.Background(), "event-summaries", "summaries/2026/08/24/hour=14/summary.csv")
	require.NoError(t, err)
	want := "hour,event_type,total_events\n" +
		"2026-08-24T14:00:00Z,click,2\n" +
		"2026-08-24T14:00:00Z,view,1\n"
	assert.Equal(t, want, string(data))
	assert.Equal(t, "text/csv", store.ContentType("event-summaries", "summaries/2026/08/24/hour=14/summary.csv"))

	data, err = store.Download(context.Background(), "event-summaries", "summaries/2026/08/24/hour=15/summary.csv")
	require.NoError(t, err)
	assert.Equal(t, "hour,event_type,total_events\n2026-08-24T15:00:00Z,view,1\n", string(data))
}

func TestJobRun_NoEligibleFiles(t *testing.T) {
	store := objstore.NewMemory()
	store.Put("raw-events", "events/live.json", []byte(`[]`), jobTime.Add(-time.Minute))

	stats, err := newTestJob(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	infos, err := store.List(context.Background(), "event-summaries", "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestJobRun_BadFileAborts(t *testing.T) {
	store := objstore.NewMemory()
	old := jobTime.Add(-48 * time.Hour)
	store.Put("raw-events", "events/bad.json", []byte(`{"not": "an array"}`), old)

	_, err := newTestJob(store).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJSON)

	infos, err := store.List(context.Background(), "event-summaries", "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}
