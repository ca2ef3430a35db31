package job

import (
	"time"

	"pixbatch/failures"
	"pixbatch/logger"
	"pixbatch/models"
	"pixbatch/success"
)

// Recorder keeps the outcome of finished jobs.
type Recorder interface {
	RecordSuccess(s models.Summary, out *Output)
	RecordFailure(s models.Summary, err error)
}

// StoreRecorder writes outcomes to the success and failure stores. Store
// errors are logged and never fail the job.
type StoreRecorder struct{}

func (StoreRecorder) RecordSuccess(s models.Summary, out *Output) {
	rec := success.Record{
		JobID:        s.JobID,
		Timestamp:    time.Now(),
		FileCount:    len(out.Files),
		ArchiveBytes: int64(len(out.Archive)),
		Archive:      string(out.Format),
		DurationMS:   out.Duration.Milliseconds(),
		PublishedTo:  out.Location,
		Job:          s,
	}
	if err := success.StoreSuccess(rec); err != nil {
		logger.Errorf("Failed to store success record for %s: %v", s.JobID, err)
	}
}

func (StoreRecorder) RecordFailure(s models.Summary, err error) {
	if s.JobID == "" {
		logger.Errorf("Cannot store failure: missing job id")
		return
	}
	rec := failures.Record{
		JobID:     s.JobID,
		Timestamp: time.Now(),
		Kind:      string(KindOf(err)),
		Filename:  FilenameOf(err),
		Error:     err.Error(),
		Job:       s,
	}
	if storeErr := failures.StoreFailure(rec); storeErr != nil {
		logger.Errorf("Failed to store failure for %s: %v", s.JobID, storeErr)
	}
}
