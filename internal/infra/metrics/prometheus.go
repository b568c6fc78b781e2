package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objekscan_scans_total",
		Help: "Total number of scans finished, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "objekscan_stage_duration_seconds",
		Help:    "Duration of each scan pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FrameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "objekscan_frame_step_duration_seconds",
		Help:    "Duration of the per-frame decode and detect steps",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})

	FramesAnnotatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objekscan_frames_annotated_total",
		Help: "Total number of annotated frames written across all scans",
	})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objekscan_detections_total",
		Help: "Total number of detections, by label",
	}, []string{"label"})

	ActiveScans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objekscan_active_scans",
		Help: "Number of scans currently running",
	})

	ScanProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objekscan_scan_progress_ratio",
		Help: "Fraction of sampled frames processed by the current scan",
	})
)
