package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Ashab24/batch-job-orch/lib/objstore"
)

// Config controls one rollup invocation. All values arrive through the
// environment; the job takes no command-line arguments.
type Config struct {
	InputBucket   string
	OutputBucket  string
	InputPrefix   string
	LookbackHours int
}

// Stats summarizes what a run did.
type Stats struct {
	FilesProcessed int
	Events         int
	Summaries      int
	HoursWritten   int
}

// Job is one run-to-completion rollup. It only processes input files that
// have been stable for the lookback window, so writers still appending
// recent events are never read mid-flight.
type Job struct {
	store  objstore.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewJob(store objstore.Store, cfg Config, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Run executes the whole pipeline. Any error aborts the run; the caller
// surfaces it as a non-zero exit.
func (j *Job) Run(ctx context.Context) (Stats, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.cfg.LookbackHours) * time.Hour)
	j.logger.Info("listing input files", "bucket", j.cfg.InputBucket, "prefix", j.cfg.InputPrefix, "cutoff", cutoff)

	objects, err := j.store.List(ctx, j.cfg.InputBucket, j.cfg.InputPrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("list input files: %w", err)
	}

	eligible := lo.Filter(objects, func(o objstore.ObjectInfo, _ int) bool {
		return strings.HasSuffix(o.Name, ".json") && o.Updated.Before(cutoff)
	})
	j.logger.Info("file discovery complete", "found", len(objects), "eligible", len(eligible))

	if len(eligible) == 0 {
		j.logger.Info("no eligible files to process")
		return Stats{}, nil
	}

	var events []Event
	for _, obj := range eligible {
		data, err := j.store.Download(ctx, j.cfg.InputBucket, obj.Name)
		if err != nil {
			return Stats{}, fmt.Errorf("download %s: %w", obj.Name, err)
		}
		parsed, err := ParseEvents(data)
		if err != nil {
			return Stats{}, fmt.Errorf("parse %s: %w", obj.Name, err)
		}
		j.logger.Info("parsed event file", "name", obj.Name, "events", len(parsed))
		events = append(events, parsed...)
	}
	j.logger.Info("parsing complete", "files", len(eligible), "events", len(events))

	summaries := Aggregate(events)
	for _, s := range summaries {
		j.logger.Info("aggregated", "hour", s.Hour, "type", s.EventType, "total", s.Total)
	}
	j.logger.Info("aggregation complete", "summaries", len(summaries))

	byHour := lo.GroupBy(summaries, func(s Summary) time.Time { return s.Hour })
	for hour, records := range byHour {
		path := SummaryPath(hour)
		data, err := EncodeCSV(records)
		if err != nil {
			return Stats{}, fmt.Errorf("encode summary for %s: %w", hour, err)
		}
		j.logger.Info("writing hourly summary", "hour", hour, "path", path, "rows", len(records))
		if err := j.store.Upload(ctx, j.cfg.OutputBucket, path, "text/csv", data); err != nil {
			return Stats{}, fmt.Errorf("upload %s: %w", path, err)
		}
	}
	j.logger.Info("summary writing complete", "hours", len(byHour))

	return Stats{
		FilesProcessed: len(eligible),
		Events:         len(events),
		Summaries:      len(summaries),
		HoursWritten:   len(byHour),
	}, nil
}
