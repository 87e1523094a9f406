package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/talentops/resumeflow"
	"github.com/talentops/resumeflow/vector"
)

// maxUploadBytes bounds one multipart upload. Resumes are small; anything
// bigger is a mistake or an attack.
const maxUploadBytes = 25 << 20

type handler struct {
	engine resumeflow.Engine
}

func newHandler(e resumeflow.Engine) *handler {
	return &handler{engine: e}
}

// POST /upload-resume
// Multipart form: file (required), candidate_name, job_role, source,
// extract_modules ("all" or a comma-separated selection).
func (h *handler) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading upload failed")
		slog.Error("reading upload", "error", err)
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	modules, err := resumeflow.ParseModules(r.FormValue("extract_modules"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []resumeflow.ProcessOption{resumeflow.WithModules(modules)}
	if v := r.FormValue("candidate_name"); v != "" {
		opts = append(opts, resumeflow.WithCandidateName(v))
	}
	if v := r.FormValue("job_role"); v != "" {
		opts = append(opts, resumeflow.WithJobRole(v))
	}
	if v := r.FormValue("source"); v != "" {
		opts = append(opts, resumeflow.WithSource(v))
	}

	// Sanitise the filename to prevent path traversal in stored names.
	safeName := filepath.Base(header.Filename)

	resume, err := h.engine.ProcessResume(r.Context(), safeName, data, opts...)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resume)
	case errors.Is(err, resumeflow.ErrEmptyFile),
		errors.Is(err, resumeflow.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, resumeflow.ErrInsufficientText):
		// The row exists with its failure status; the caller gets it back
		// so an OCR retry can reference the id.
		writeJSON(w, http.StatusOK, resume)
	case errors.Is(err, resumeflow.ErrModelUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  "model server unavailable",
			"resume": resume,
		})
	default:
		writeError(w, http.StatusInternalServerError, "processing failed")
		slog.Error("upload error", "file", safeName, "error", err)
	}
}

// POST /index-pinecone?limit=&resume_ids=&force=
func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	limit, ids, err := indexParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	force := r.URL.Query().Get("force") == "true"

	res, err := h.engine.Index(r.Context(), limit, ids, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "indexing failed")
		slog.Error("index error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /reindex-resumes?limit=&resume_ids=
// Same as /index-pinecone with force semantics: prior vector sets are
// deleted and rebuilt. Used after a chunking or normalizer change.
func (h *handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	limit, ids, err := indexParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.Reindex(r.Context(), limit, ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reindexing failed")
		slog.Error("reindex error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /ai-search
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req vector.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 || req.TopK > 100 {
		req.TopK = 0 // use default
	}

	results, err := h.engine.Search(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		slog.Error("search error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// GET /resumes/{id}
func (h *handler) handleGetResume(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resume id")
		return
	}

	resume, err := h.engine.GetResume(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "resume not found")
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.engine.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "health check failed")
		return
	}
	status := http.StatusOK
	if !health.ITPromptOK || !health.NonITPromptOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// indexParams parses the shared limit and resume_ids query parameters.
func indexParams(r *http.Request) (int, []int64, error) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, nil, fmt.Errorf("invalid limit %q", v)
		}
		limit = n
	}

	var ids []int64
	if v := q.Get("resume_ids"); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid resume id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return limit, ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
