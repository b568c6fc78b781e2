package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusIdle       RunStatus = "IDLE"
	RunStatusIndexing   RunStatus = "INDEXING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusArchiving  RunStatus = "ARCHIVING"
	RunStatusDone       RunStatus = "DONE"
	RunStatusNoResults  RunStatus = "NO_RESULTS"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusNoResults || s == RunStatusFailed
}

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageIndexing   Stage = "indexing"
	StageProcessing Stage = "processing"
	StageArchiving  Stage = "archiving"
)

const (
	MinTargetFrames     = 1
	MaxTargetFrames     = 50
	DefaultTargetFrames = 10

	MinConfidence     = 0.1
	MaxConfidence     = 0.9
	DefaultConfidence = 0.25
)

// ScanParams are the user-tunable knobs of one scan.
type ScanParams struct {
	TargetFrames int     `json:"target_frames"`
	Confidence   float64 `json:"confidence"`
}

func DefaultScanParams() ScanParams {
	return ScanParams{TargetFrames: DefaultTargetFrames, Confidence: DefaultConfidence}
}

func (p ScanParams) Validate() error {
	if p.TargetFrames < MinTargetFrames || p.TargetFrames > MaxTargetFrames {
		return &UploadError{Reason: fmt.Sprintf("frame count must be between %d and %d, got %d",
			MinTargetFrames, MaxTargetFrames, p.TargetFrames)}
	}
	if p.Confidence < MinConfidence || p.Confidence > MaxConfidence {
		return &UploadError{Reason: fmt.Sprintf("confidence must be between %.1f and %.1f, got %.2f",
			MinConfidence, MaxConfidence, p.Confidence)}
	}
	return nil
}

type Run struct {
	ID           uuid.UUID
	Params       ScanParams
	Container    Container
	Status       RunStatus
	FailedStage  Stage
	ErrorMessage string

	WorkDir       string
	VideoPath     string
	CollectionDir string
	ArchivePath   string

	TotalFrames   int
	VideoDuration float64
	Samples       []int
	Frames        []AnnotatedFrame
	StoppedEarly  bool
	StopReason    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func NewRun(params ScanParams, container Container) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.New(),
		Params:    params,
		Container: container,
		Status:    RunStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Run) MarkIndexing() {
	r.Status = RunStatusIndexing
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkProcessing(totalFrames int, samples []int) {
	r.Status = RunStatusProcessing
	r.TotalFrames = totalFrames
	r.Samples = samples
	r.Frames = make([]AnnotatedFrame, 0, len(samples))
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) AddFrame(frame AnnotatedFrame) {
	r.Frames = append(r.Frames, frame)
	r.UpdatedAt = time.Now().UTC()
}

// StopEarly records that the batch ended before every sample was processed.
func (r *Run) StopEarly(reason string) {
	r.StoppedEarly = true
	r.StopReason = reason
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkArchiving() {
	r.Status = RunStatusArchiving
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkDone(archivePath string) {
	now := time.Now().UTC()
	r.Status = RunStatusDone
	r.ArchivePath = archivePath
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Run) MarkNoResults(totalFrames int) {
	now := time.Now().UTC()
	r.Status = RunStatusNoResults
	r.TotalFrames = totalFrames
	r.Samples = []int{}
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Run) MarkFailed(stage Stage, errMsg string) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.FailedStage = stage
	r.ErrorMessage = errMsg
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// Progress returns the (completed, total) pair of the processing stage.
func (r *Run) Progress() Progress {
	return Progress{RunID: r.ID, Completed: len(r.Frames), Total: len(r.Samples)}
}

// Snapshot returns a copy that shares no mutable slices with r.
func (r *Run) Snapshot() *Run {
	c := *r
	if r.Samples != nil {
		c.Samples = append([]int(nil), r.Samples...)
	}
	if r.Frames != nil {
		c.Frames = append([]AnnotatedFrame(nil), r.Frames...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Progress is an advisory (completed, total) update for one run.
type Progress struct {
	RunID     uuid.UUID
	Completed int
	Total     int
}

func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

func (p Progress) Counter() string {
	return fmt.Sprintf("processing %d/%d", p.Completed, p.Total)
}
