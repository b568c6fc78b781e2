package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
	"github.com/naufalaziz23/piplinee/internal/domain/sampling"
	"github.com/naufalaziz23/piplinee/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrScanInProgress is returned when a scan is requested while another one
// is still running.
var ErrScanInProgress = errors.New("a scan is already in progress")

const DefaultFrameTimeout = 30 * time.Second

type ScanRequest struct {
	Video  port.VideoInput
	Params entity.ScanParams
}

type ScanVideoConfig struct {
	TempDir      string
	FrameTimeout time.Duration
}

type ScanVideoUseCase struct {
	decoder      port.FrameDecoder
	detector     port.Detector
	archiver     port.Archiver
	repo         port.RunRepository
	publisher    port.StatusPublisher
	logger       *zap.Logger
	tempDir      string
	frameTimeout time.Duration

	running sync.Mutex
}

// NewScanVideoUseCase wires the scan pipeline. publisher may be nil.
func NewScanVideoUseCase(
	decoder port.FrameDecoder,
	detector port.Detector,
	archiver port.Archiver,
	repo port.RunRepository,
	publisher port.StatusPublisher,
	logger *zap.Logger,
	cfg ScanVideoConfig,
) *ScanVideoUseCase {
	timeout := cfg.FrameTimeout
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &ScanVideoUseCase{
		decoder:      decoder,
		detector:     detector,
		archiver:     archiver,
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		tempDir:      cfg.TempDir,
		frameTimeout: timeout,
	}
}

// Execute runs one scan to completion on the calling goroutine.
//
// Invalid requests return an *entity.UploadError and ErrScanInProgress is
// returned while another scan runs; neither creates a run. Once a run exists
// it is always returned, together with the error that failed it if its status
// is FAILED. A decode or inference error after the first frame ends the batch
// early and the run still completes with the frames collected so far.
func (uc *ScanVideoUseCase) Execute(ctx context.Context, req ScanRequest, progress port.ProgressReporter) (*entity.Run, error) {
	if req.Video == nil {
		return nil, &entity.UploadError{Reason: "no video supplied"}
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if !uc.running.TryLock() {
		return nil, ErrScanInProgress
	}
	defer uc.running.Unlock()

	if progress == nil {
		progress = ProgressFanout{}
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ScanVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()
	metrics.ActiveScans.Inc()
	defer metrics.ActiveScans.Dec()

	run := entity.NewRun(req.Params, req.Video.Container())
	run.WorkDir = filepath.Join(uc.tempDir, run.ID.String())
	run.VideoPath = filepath.Join(run.WorkDir, "input"+run.Container.Ext())
	run.CollectionDir = filepath.Join(run.WorkDir, entity.CollectionDirName)

	span.SetAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.Int("run.target_frames", run.Params.TargetFrames),
		attribute.Float64("run.confidence", run.Params.Confidence),
	)
	log := uc.logger.With(zap.String("run_id", run.ID.String()))

	if err := uc.materialize(ctx, req.Video, run); err != nil {
		_ = os.RemoveAll(run.WorkDir)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if entity.IsIOError(err) {
			metrics.ScansTotal.WithLabelValues("failed").Inc()
			log.Error("could not store video", zap.Error(err))
		} else {
			metrics.ScansTotal.WithLabelValues("rejected").Inc()
			log.Warn("video upload rejected", zap.Error(err))
		}
		return nil, err
	}

	// The previous output survives a rejected upload.
	uc.retirePrevious(ctx)

	if err := uc.repo.Create(ctx, run); err != nil {
		_ = os.RemoveAll(run.WorkDir)
		return nil, fmt.Errorf("create run: %w", err)
	}

	err := uc.pipeline(ctx, run, progress, log)
	if err != nil {
		run.MarkFailed(stageOf(run), err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("scan failed",
			zap.String("stage", string(run.FailedStage)),
			zap.Error(err),
		)
	}
	uc.save(ctx, run, log)
	uc.publishStatus(ctx, run, log)

	metrics.ScansTotal.WithLabelValues(outcome(run.Status)).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return run.Snapshot(), err
}

func (uc *ScanVideoUseCase) pipeline(ctx context.Context, run *entity.Run, progress port.ProgressReporter, log *zap.Logger) error {
	tracer := otel.Tracer("usecase")

	run.MarkIndexing()
	uc.save(ctx, run, log)

	idxStart := time.Now()
	idxCtx, spanIdx := tracer.Start(ctx, "index_video")
	src, err := uc.decoder.Open(idxCtx, run.VideoPath)
	spanIdx.End()
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	run.VideoDuration = src.Duration()
	total := src.FrameCount()
	samples := sampling.ComputeSampleIndices(total, run.Params.TargetFrames)
	metrics.StageDuration.WithLabelValues("indexing").Observe(time.Since(idxStart).Seconds())

	log.Info("video indexed",
		zap.Int("total_frames", total),
		zap.Float64("duration_secs", run.VideoDuration),
		zap.Ints("samples", samples),
	)

	if len(samples) == 0 {
		run.MarkNoResults(total)
		log.Info("video has no decodable frames")
		return nil
	}

	run.MarkProcessing(total, samples)
	uc.save(ctx, run, log)
	if err := uc.archiver.Reset(run.CollectionDir); err != nil {
		return err
	}
	progress.ReportProgress(ctx, run.Progress())

	procStart := time.Now()
	procCtx, spanProc := tracer.Start(ctx, "process_frames")
	err = uc.processFrames(procCtx, src, run, progress, log)
	spanProc.End()
	if err != nil {
		return err
	}
	metrics.StageDuration.WithLabelValues("processing").Observe(time.Since(procStart).Seconds())

	run.MarkArchiving()
	uc.save(ctx, run, log)

	zipStart := time.Now()
	zipCtx, spanZip := tracer.Start(ctx, "package_archive")
	archivePath := filepath.Join(run.WorkDir, entity.ArchiveName)
	err = uc.archiver.PackageArchive(zipCtx, run.CollectionDir, archivePath)
	spanZip.End()
	if err != nil {
		return fmt.Errorf("package archive: %w", err)
	}
	metrics.StageDuration.WithLabelValues("archiving").Observe(time.Since(zipStart).Seconds())

	run.MarkDone(archivePath)
	log.Info("scan completed",
		zap.Int("frame_count", len(run.Frames)),
		zap.Bool("stopped_early", run.StoppedEarly),
		zap.String("archive", archivePath),
	)
	return nil
}

func (uc *ScanVideoUseCase) processFrames(ctx context.Context, src port.VideoSource, run *entity.Run, progress port.ProgressReporter, log *zap.Logger) error {
	for i, idx := range run.Samples {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan cancelled: %w", err)
		}

		position := i + 1
		frame, err := uc.processFrame(ctx, src, run, position, idx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("scan cancelled: %w", ctx.Err())
			}
			if !entity.IsFrameError(err) {
				return err
			}
			if position == 1 {
				return fmt.Errorf("first sampled frame: %w", err)
			}
			run.StopEarly(err.Error())
			log.Warn("frame failed, keeping frames processed so far",
				zap.Int("position", position),
				zap.Int("frame_index", idx),
				zap.Int("kept", len(run.Frames)),
				zap.Error(err),
			)
			return nil
		}

		run.AddFrame(*frame)
		uc.save(ctx, run, log)
		progress.ReportProgress(ctx, run.Progress())
	}
	return nil
}

func (uc *ScanVideoUseCase) processFrame(ctx context.Context, src port.VideoSource, run *entity.Run, position, index int) (*entity.AnnotatedFrame, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.frameTimeout)
	defer cancel()

	decStart := time.Now()
	img, err := src.ReadFrameAt(ctx, index)
	if err != nil {
		var de *entity.DecodeError
		if !errors.As(err, &de) {
			err = &entity.DecodeError{Index: index, Err: err}
		}
		return nil, err
	}
	metrics.FrameDuration.WithLabelValues("decode").Observe(time.Since(decStart).Seconds())

	detStart := time.Now()
	res, err := uc.detect(ctx, img, run.Params.Confidence)
	if err != nil {
		return nil, &entity.InferenceError{Index: index, Err: err}
	}
	metrics.FrameDuration.WithLabelValues("detect").Observe(time.Since(detStart).Seconds())

	annotated := res.Annotated
	if annotated == nil {
		annotated = img
	}
	filename := entity.FrameName(position)
	if err := uc.archiver.WriteFrame(run.CollectionDir, filename, annotated); err != nil {
		if !entity.IsIOError(err) {
			err = &entity.IOError{Op: "write frame", Path: filepath.Join(run.CollectionDir, filename), Err: err}
		}
		return nil, err
	}

	metrics.FramesAnnotatedTotal.Inc()
	for _, d := range res.Detections {
		metrics.DetectionsTotal.WithLabelValues(d.Label).Inc()
	}

	return &entity.AnnotatedFrame{
		Position:   position,
		FrameIndex: index,
		Filename:   filename,
		Path:       filepath.Join(run.CollectionDir, filename),
		Detections: res.Detections,
	}, nil
}

// detect bounds inference by ctx. A detector that ignores ctx keeps running in
// the background until it returns; its result is discarded.
func (uc *ScanVideoUseCase) detect(ctx context.Context, img image.Image, confidence float64) (*entity.DetectionResult, error) {
	type result struct {
		res *entity.DetectionResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := uc.detector.Detect(ctx, img, confidence)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.res == nil {
			return nil, errors.New("detector returned no result")
		}
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *ScanVideoUseCase) materialize(ctx context.Context, video port.VideoInput, run *entity.Run) error {
	uploadStart := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, "materialize_video")
	defer span.End()

	if err := os.MkdirAll(run.WorkDir, 0o755); err != nil {
		return &entity.IOError{Op: "create workdir", Path: run.WorkDir, Err: err}
	}
	if err := video.SaveTo(ctx, run.VideoPath); err != nil {
		if !entity.IsUploadError(err) && !entity.IsIOError(err) {
			err = &entity.UploadError{Reason: "could not store video", Err: err}
		}
		return err
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(uploadStart).Seconds())
	return nil
}

// retirePrevious drops the last run's workspace and record. Only one run's
// output is kept on disk at a time.
func (uc *ScanVideoUseCase) retirePrevious(ctx context.Context) {
	prev, err := uc.repo.Latest(ctx)
	if err != nil {
		return
	}
	if prev.WorkDir != "" {
		if err := os.RemoveAll(prev.WorkDir); err != nil {
			uc.logger.Warn("failed to remove previous workspace",
				zap.String("run_id", prev.ID.String()),
				zap.Error(err),
			)
		}
	}
	if err := uc.repo.Delete(ctx, prev.ID); err != nil {
		uc.logger.Warn("failed to delete previous run", zap.String("run_id", prev.ID.String()), zap.Error(err))
	}
}

func (uc *ScanVideoUseCase) save(ctx context.Context, run *entity.Run, log *zap.Logger) {
	if err := uc.repo.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Error("failed to update run", zap.String("status", string(run.Status)), zap.Error(err))
	}
}

func (uc *ScanVideoUseCase) publishStatus(ctx context.Context, run *entity.Run, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	data, err := json.Marshal(entity.NewScanStatusMessage(run))
	if err != nil {
		log.Error("failed to marshal status", zap.Error(err))
		return
	}
	if err := uc.publisher.PublishStatus(context.WithoutCancel(ctx), data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// stageOf maps the status a run was in when it failed to the failing stage.
func stageOf(run *entity.Run) entity.Stage {
	switch run.Status {
	case entity.RunStatusIdle:
		return entity.StageUpload
	case entity.RunStatusIndexing:
		return entity.StageIndexing
	case entity.RunStatusArchiving:
		return entity.StageArchiving
	default:
		return entity.StageProcessing
	}
}

func outcome(status entity.RunStatus) string {
	switch status {
	case entity.RunStatusDone:
		return "done"
	case entity.RunStatusNoResults:
		return "no_results"
	default:
		return "failed"
	}
}
