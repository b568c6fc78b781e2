package entity

import "github.com/google/uuid"

// ScanProgressMessage is published after every processed frame.
type ScanProgressMessage struct {
	RunID     uuid.UUID `json:"run_id"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Fraction  float64   `json:"fraction"`
	Counter   string    `json:"counter"`
}

func NewScanProgressMessage(p Progress) ScanProgressMessage {
	return ScanProgressMessage{
		RunID:     p.RunID,
		Completed: p.Completed,
		Total:     p.Total,
		Fraction:  p.Fraction(),
		Counter:   p.Counter(),
	}
}

// ScanStatusMessage is published once a run reaches a terminal state.
type ScanStatusMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	Status       RunStatus `json:"status"`
	FailedStage  Stage     `json:"failed_stage,omitempty"`
	TargetFrames int       `json:"target_frames"`
	Confidence   float64   `json:"confidence"`
	TotalFrames  int       `json:"total_frames"`
	FrameCount   int       `json:"frame_count"`
	StoppedEarly bool      `json:"stopped_early,omitempty"`
	StopReason   string    `json:"stop_reason,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	ArchiveName  string    `json:"archive_name,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

func NewScanStatusMessage(r *Run) ScanStatusMessage {
	msg := ScanStatusMessage{
		RunID:        r.ID,
		Status:       r.Status,
		FailedStage:  r.FailedStage,
		TargetFrames: r.Params.TargetFrames,
		Confidence:   r.Params.Confidence,
		TotalFrames:  r.TotalFrames,
		FrameCount:   len(r.Frames),
		StoppedEarly: r.StoppedEarly,
		StopReason:   r.StopReason,
		Duration:     r.VideoDuration,
		ErrorMessage: r.ErrorMessage,
	}
	if r.ArchivePath != "" {
		msg.ArchiveName = ArchiveName
	}
	return msg
}
