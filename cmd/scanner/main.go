package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
	"github.com/naufalaziz23/piplinee/internal/infra/archive"
	"github.com/naufalaziz23/piplinee/internal/infra/config"
	"github.com/naufalaziz23/piplinee/internal/infra/ffmpeg"
	"github.com/naufalaziz23/piplinee/internal/infra/httpapi"
	"github.com/naufalaziz23/piplinee/internal/infra/memory"
	"github.com/naufalaziz23/piplinee/internal/infra/metrics"
	miniostorage "github.com/naufalaziz23/piplinee/internal/infra/minio"
	"github.com/naufalaziz23/piplinee/internal/infra/onnx"
	"github.com/naufalaziz23/piplinee/internal/infra/rabbitmq"
	"github.com/naufalaziz23/piplinee/internal/infra/tracing"
	"github.com/naufalaziz23/piplinee/internal/usecase"
	"github.com/naufalaziz23/piplinee/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting objekscan")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, tracing.Options{
			Endpoint:    cfg.JaegerEndpoint,
			ServiceName: tracing.ServiceName,
			SampleRatio: cfg.TracingSampleRatio,
		})
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	fatalOnErr(os.MkdirAll(cfg.TempDir, 0o755), "create temp dir")

	decoder := ffmpeg.NewDecoder(cfg.FFmpegPath, cfg.FFprobePath, log)
	fatalOnErr(decoder.CheckAvailable(ctx), "check ffmpeg")

	detector, err := onnx.NewDetector(onnx.DetectorConfig{
		ModelPath:         cfg.ModelPath,
		LabelsPath:        cfg.ModelLabelsPath,
		SharedLibraryPath: cfg.ONNXRuntimeLib,
		InputSize:         cfg.ModelInputSize,
		IOUThreshold:      cfg.ModelIOUThreshold,
		UseCUDA:           cfg.ONNXUseCUDA,
	}, log)
	fatalOnErr(err, "load detection model")
	defer detector.Close()

	repo := memory.NewRunRepository()
	progress := usecase.ProgressFanout{
		usecase.LogProgress{Logger: log},
		metrics.ProgressGauge{},
	}

	var statusPub port.StatusPublisher
	if cfg.EventsEnabled {
		conn, err := rabbitmq.Dial(ctx, rabbitmq.DialConfig{
			URL:         cfg.RabbitMQURL,
			MaxAttempts: 5,
			BaseDelay:   time.Second,
		}, log)
		fatalOnErr(err, "connect to rabbitmq")
		defer conn.Close()

		pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
		fatalOnErr(err, "create rabbitmq publisher")
		defer pub.Close()

		statusPub = rabbitmq.NewStatusPublisher(pub)
		progress = append(progress, rabbitmq.NewProgressPublisher(pub, log))
		log.Info("publishing scan events", zap.String("exchange", cfg.RabbitMQExchange))
	}

	var objects httpapi.ObjectResolver
	if cfg.MinIOEnabled {
		storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:     cfg.MinIOEndpoint,
			AccessKey:    cfg.MinIOAccessKey,
			SecretKey:    cfg.MinIOSecretKey,
			UseSSL:       cfg.MinIOUseSSL,
			UploadBucket: cfg.MinIOUploadBucket,
		})
		fatalOnErr(err, "create minio storage")
		fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")
		objects = storage
	}

	uc := usecase.NewScanVideoUseCase(
		decoder, detector, archive.NewArchiver(cfg.JPEGQuality), repo,
		statusPub,
		log,
		usecase.ScanVideoConfig{
			TempDir:      cfg.TempDir,
			FrameTimeout: cfg.FrameTimeout,
		},
	)

	api := httpapi.NewServer(uc, repo, objects, progress, log, httpapi.Config{
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		Defaults:       cfg.DefaultScanParams(),
	})
	apiSrv := api.HTTPServer(cfg.HTTPPort)
	metricsSrv := metrics.NewServer(cfg.MetricsPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server starting", zap.Int("port", cfg.HTTPPort))
		return listen(apiSrv)
	})
	g.Go(func() error {
		log.Info("metrics server starting", zap.Int("port", cfg.MetricsPort))
		return listen(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", zap.Error(err))
	}
	log.Info("objekscan stopped")
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
