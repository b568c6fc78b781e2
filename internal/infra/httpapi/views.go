package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

type errorBody struct {
	Error string `json:"error"`
}

type progressView struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	Counter   string  `json:"counter"`
}

type frameView struct {
	Position   int                `json:"position"`
	FrameIndex int                `json:"frame_index"`
	Filename   string             `json:"filename"`
	URL        string             `json:"url"`
	Detections []entity.Detection `json:"detections"`
}

type runView struct {
	ID           uuid.UUID         `json:"id"`
	Status       entity.RunStatus  `json:"status"`
	FailedStage  entity.Stage      `json:"failed_stage,omitempty"`
	Error        string            `json:"error,omitempty"`
	Params       entity.ScanParams `json:"params"`
	Container    entity.Container  `json:"container"`
	TotalFrames  int               `json:"total_frames"`
	Duration     float64           `json:"duration_seconds"`
	Samples      []int             `json:"samples"`
	Progress     progressView      `json:"progress"`
	StoppedEarly bool              `json:"stopped_early"`
	StopReason   string            `json:"stop_reason,omitempty"`
	Frames       []frameView       `json:"frames"`
	ArchiveURL   string            `json:"archive_url,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

func newRunView(run *entity.Run) runView {
	p := run.Progress()
	v := runView{
		ID:          run.ID,
		Status:      run.Status,
		FailedStage: run.FailedStage,
		Error:       run.ErrorMessage,
		Params:      run.Params,
		Container:   run.Container,
		TotalFrames: run.TotalFrames,
		Duration:    run.VideoDuration,
		Samples:     run.Samples,
		Progress: progressView{
			Completed: p.Completed,
			Total:     p.Total,
			Fraction:  p.Fraction(),
			Counter:   p.Counter(),
		},
		StoppedEarly: run.StoppedEarly,
		StopReason:   run.StopReason,
		Frames:       make([]frameView, 0, len(run.Frames)),
		CreatedAt:    run.CreatedAt,
		CompletedAt:  run.CompletedAt,
	}
	if v.Samples == nil {
		v.Samples = []int{}
	}
	base := "/scans/" + run.ID.String()
	for _, f := range run.Frames {
		dets := f.Detections
		if dets == nil {
			dets = []entity.Detection{}
		}
		v.Frames = append(v.Frames, frameView{
			Position:   f.Position,
			FrameIndex: f.FrameIndex,
			Filename:   f.Filename,
			URL:        base + "/frames/" + f.Filename,
			Detections: dets,
		})
	}
	if run.ArchivePath != "" {
		v.ArchiveURL = base + "/archive"
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
