package protocol

import "time"

// JobRequest asks the pipeline to convert one PDF into spoken audio.
type JobRequest struct {
	JobID    string `json:"job_id"`
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// JobProgress is broadcast as a job moves through pipeline stages.
type JobProgress struct {
	JobID         string    `json:"job_id"`
	Stage         string    `json:"stage"`
	SegmentsTotal int       `json:"segments_total,omitempty"`
	SegmentsDone  int       `json:"segments_done,omitempty"`
	Preview       string    `json:"preview,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// JobResult announces a completed job and where its audio landed.
type JobResult struct {
	JobID      string    `json:"job_id"`
	Parts      []string  `json:"parts"`
	Archive    string    `json:"archive,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// JobFailure announces a terminally failed job.
type JobFailure struct {
	JobID     string    `json:"job_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Segment   int       `json:"segment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectJobRequest  = "pdfvoice.job.request"
	SubjectJobProgress = "pdfvoice.job.progress"
	SubjectJobDone     = "pdfvoice.job.done"
	SubjectJobFailed   = "pdfvoice.job.failed"
)

// Pipeline stage names used in progress and failure messages.
const (
	StageExtract    = "extract"
	StageNormalize  = "normalize"
	StageSegment    = "segment"
	StageSynthesize = "synthesize"
	StagePackage    = "package"
)
