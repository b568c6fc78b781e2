package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
	"github.com/naufalaziz23/piplinee/internal/usecase"
	"go.uber.org/zap"
)

// Scanner runs one scan to completion.
type Scanner interface {
	Execute(ctx context.Context, req usecase.ScanRequest, progress port.ProgressReporter) (*entity.Run, error)
}

// ObjectResolver turns an object key into a video input.
type ObjectResolver interface {
	Input(ctx context.Context, objectKey string) (port.VideoInput, error)
}

type Config struct {
	MaxUploadBytes int64
	Defaults       entity.ScanParams
}

type Server struct {
	scanner   Scanner
	repo      port.RunRepository
	objects   ObjectResolver
	progress  port.ProgressReporter
	defaults  entity.ScanParams
	maxUpload int64
	logger    *zap.Logger
}

// NewServer builds the scan API. objects may be nil, in which case scanning
// from object storage is unavailable.
func NewServer(
	scanner Scanner,
	repo port.RunRepository,
	objects ObjectResolver,
	progress port.ProgressReporter,
	logger *zap.Logger,
	cfg Config,
) *Server {
	return &Server{
		scanner:   scanner,
		repo:      repo,
		objects:   objects,
		progress:  progress,
		defaults:  cfg.Defaults,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scans", s.handleUpload)
	mux.HandleFunc("POST /scans/object", s.handleObject)
	mux.HandleFunc("GET /scans/current", s.handleCurrent)
	mux.HandleFunc("GET /scans/{id}", s.handleGet)
	mux.HandleFunc("GET /scans/{id}/frames/{name}", s.handleFrame)
	mux.HandleFunc("GET /scans/{id}/archive", s.handleArchive)
	return s.logRequests(mux)
}

// HTTPServer wraps Handler in a server listening on port. Scans run inside the
// request, so there is no write timeout.
func (s *Server) HTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// writeScanError maps a scan outcome to a response. A failed run is reported
// with its full state.
func (s *Server) writeScanError(w http.ResponseWriter, run *entity.Run, err error) {
	switch {
	case entity.IsUploadError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, usecase.ErrScanInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, entity.ErrRunNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case run != nil:
		writeJSON(w, http.StatusUnprocessableEntity, newRunView(run))
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
