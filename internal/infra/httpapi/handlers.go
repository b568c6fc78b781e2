package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/usecase"
)

const (
	fieldVideo      = "video"
	fieldFrames     = "frames"
	fieldConfidence = "confidence"

	maxFieldBytes = 64
)

// handleUpload streams a multipart upload straight into the scan. Option
// fields must precede the video part; one that follows it fails the upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeScanError(w, nil, &entity.UploadError{Reason: "expected a multipart form", Err: err})
		return
	}

	params := s.defaults
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeScanError(w, nil, &entity.UploadError{Reason: "no video file in the form"})
			return
		}
		if err != nil {
			s.writeScanError(w, nil, &entity.UploadError{Reason: "malformed multipart form", Err: err})
			return
		}

		switch part.FormName() {
		case fieldFrames, fieldConfidence:
			if err := applyField(&params, part); err != nil {
				s.writeScanError(w, nil, err)
				return
			}
		case fieldVideo:
			s.scanPart(w, r, mr, part, params)
			return
		}
		part.Close()
	}
}

func (s *Server) scanPart(w http.ResponseWriter, r *http.Request, mr *multipart.Reader, part *multipart.Part, params entity.ScanParams) {
	defer part.Close()

	input, err := usecase.NewReaderInput(&trailingFieldGuard{mr: mr, part: part}, part.Header.Get("Content-Type"), part.FileName())
	if err != nil {
		s.writeScanError(w, nil, err)
		return
	}
	s.runScan(w, r, usecase.ScanRequest{Video: input, Params: params})
}

// trailingFieldGuard reads the video part and, once it is exhausted, fails
// the read if an option field comes after it.
type trailingFieldGuard struct {
	mr      *multipart.Reader
	part    *multipart.Part
	checked bool
}

func (g *trailingFieldGuard) Read(p []byte) (int, error) {
	n, err := g.part.Read(p)
	if errors.Is(err, io.EOF) && !g.checked {
		g.checked = true
		if ferr := rejectTrailingFields(g.mr); ferr != nil {
			return n, ferr
		}
	}
	return n, err
}

func rejectTrailingFields(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &entity.UploadError{Reason: "malformed multipart form", Err: err}
		}
		name := part.FormName()
		part.Close()
		if name == fieldFrames || name == fieldConfidence {
			return &entity.UploadError{Reason: fmt.Sprintf("field %s must come before the video part", name)}
		}
	}
}

func applyField(params *entity.ScanParams, part *multipart.Part) error {
	defer part.Close()

	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return &entity.UploadError{Reason: "could not read field " + part.FormName(), Err: err}
	}
	value := string(raw)
	if value == "" {
		return nil
	}

	switch part.FormName() {
	case fieldFrames:
		n, err := strconv.Atoi(value)
		if err != nil {
			return &entity.UploadError{Reason: fmt.Sprintf("frames must be an integer, got %q", value)}
		}
		params.TargetFrames = n
	case fieldConfidence:
		c, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &entity.UploadError{Reason: fmt.Sprintf("confidence must be a number, got %q", value)}
		}
		params.Confidence = c
	}
	return nil
}

type objectScanRequest struct {
	VideoKey   string   `json:"video_key"`
	Frames     *int     `json:"frames"`
	Confidence *float64 `json:"confidence"`
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	if s.objects == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "object storage input is disabled"})
		return
	}

	var body objectScanRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeScanError(w, nil, &entity.UploadError{Reason: "invalid JSON body", Err: err})
		return
	}

	params := s.defaults
	if body.Frames != nil {
		params.TargetFrames = *body.Frames
	}
	if body.Confidence != nil {
		params.Confidence = *body.Confidence
	}
	if err := params.Validate(); err != nil {
		s.writeScanError(w, nil, err)
		return
	}

	input, err := s.objects.Input(r.Context(), body.VideoKey)
	if err != nil {
		s.writeScanError(w, nil, err)
		return
	}
	s.runScan(w, r, usecase.ScanRequest{Video: input, Params: params})
}

func (s *Server) runScan(w http.ResponseWriter, r *http.Request, req usecase.ScanRequest) {
	run, err := s.scanner.Execute(r.Context(), req, s.progress)
	if err != nil {
		s.writeScanError(w, run, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	run, err := s.repo.Latest(r.Context())
	if err != nil {
		s.writeScanError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")
	for _, f := range run.Frames {
		if f.Filename == name {
			w.Header().Set("Content-Type", "image/jpeg")
			serveFile(w, r, f.Path, name)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: "frame not found"})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if run.ArchivePath == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "archive not available for this scan"})
		return
	}

	w.Header().Set("Content-Type", entity.ArchiveMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entity.ArchiveName))
	serveFile(w, r, run.ArchivePath, entity.ArchiveName)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*entity.Run, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown scan id"})
		return nil, false
	}
	run, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		s.writeScanError(w, nil, err)
		return nil, false
	}
	return run, true
}

func serveFile(w http.ResponseWriter, r *http.Request, path, name string) {
	f, err := os.Open(path)
	if err != nil {
		w.Header().Del("Content-Disposition")
		writeJSON(w, http.StatusNotFound, errorBody{Error: "file no longer available"})
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, name, modTime, f)
}
