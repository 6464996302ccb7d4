package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datasheet/internal/core"
	"github.com/JonMunkholm/datasheet/internal/logging"
)

// multipartMemory is how much of a multipart upload is buffered in memory
// before spilling to a temporary file.
const multipartMemory = 32 << 20

// multipartOverhead allows for form boundaries and headers around the file.
const multipartOverhead = 1 << 20

// ListResponse wraps a run listing.
type ListResponse struct {
	Datasheets []core.Run `json:"datasheets"`
	Count      int        `json:"count"`
}

// ProcessResponse is returned once a run has been processed.
type ProcessResponse struct {
	ID      string       `json:"id"`
	Summary core.Summary `json:"summary"`
}

// handleHealth reports liveness, database reachability and in-flight runs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":      "ok",
		"active_runs": s.datasheets.ActiveRuns(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check: database unreachable", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		}
	}

	writeJSON(w, status, body)
}

// handleSubmit stores an uploaded datasheet as a pending run.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	if maxSize <= 0 {
		maxSize = core.DefaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: request body over %d bytes", core.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err))
		return
	}
	defer file.Close()

	run, err := s.datasheets.Submit(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "run_id", run.ID, "file", run.FileName).Info("datasheet accepted")
	w.Header().Set("Location", "/api/datasheets/"+run.ID)
	writeJSON(w, http.StatusCreated, run)
}

// handleList returns runs newest first; ?deleted=true includes soft-deleted runs.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("deleted"))

	runs, err := s.datasheets.List(r.Context(), includeDeleted)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Datasheets: runs, Count: len(runs)})
}

// handleGet returns a single run.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := s.datasheets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleProcess runs a pending datasheet and returns its summary.
//
// The run continues if the client disconnects; only the processing
// timeout stops it, so a summary is never lost to a dropped connection.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.processTimeout())
	defer cancel()

	logger := logging.WithFields(r.Context(), "run_id", id)
	logger.Info("processing requested")

	summary, err := s.datasheets.Process(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{ID: id, Summary: summary})
}

// handleDelete soft-deletes a run.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.datasheets.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "run_id", id).Info("datasheet deleted")
	w.WriteHeader(http.StatusNoContent)
}
