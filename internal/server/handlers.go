package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/forPelevin/hlscene/internal/domain/highlights"
	"github.com/forPelevin/hlscene/internal/jobs"
	"github.com/forPelevin/hlscene/internal/service"
	"github.com/forPelevin/hlscene/internal/storage"
	"github.com/forPelevin/hlscene/internal/types"
	"github.com/forPelevin/hlscene/internal/worker"
)

type uploadResponse struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

type pendingResponse struct {
	Status   jobs.Status `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
}

type highlightLink struct {
	ID               string       `json:"id"`
	Filename         string       `json:"filename"`
	URL              string       `json:"url"`
	Duration         float64      `json:"duration"`
	StartTime        float64      `json:"start_time"`
	EndTime          float64      `json:"end_time"`
	Origin           types.Origin `json:"origin"`
	SourceSceneIndex *int         `json:"source_scene_index"`
}

type resultsResponse struct {
	JobID         string          `json:"job_id"`
	Status        jobs.Status     `json:"status"`
	Highlights    []highlightLink `json:"highlights"`
	TranscriptURL *string         `json:"transcript_url"`
	Metadata      *types.Metadata `json:"metadata"`
}

type cleanupRequest struct {
	Hours *float64 `json:"hours"`
}

type cleanupResponse struct {
	Message     string   `json:"message"`
	DeletedJobs []string `json:"deleted_jobs"`
}

type healthResponse struct {
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
	QueuedJobs int    `json:"queued_jobs"`
	Version    string `json:"version"`
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No video file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !storage.Allowed(header.Filename) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}

	params, err := app.params(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := app.Service.Submit(file, header.Filename, params)
	switch {
	case err == nil:
	case errors.Is(err, highlights.ErrConfiguration), errors.Is(err, storage.ErrUnsupportedVideo):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrRunnerStopped):
		writeError(w, http.StatusServiceUnavailable, "Server busy, try again later")
		return
	default:
		app.Log.Error().Err(err).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Video upload successful. Processing started.",
	})
}

func (app *App) params(r *http.Request) (jobs.Params, error) {
	p := jobs.Params{
		NumHighlights: app.Defaults.Clips,
		MinDuration:   app.Defaults.Min,
		MaxDuration:   app.Defaults.Max,
	}
	if v := r.FormValue("num_highlights"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("num_highlights must be an integer")
		}
		p.NumHighlights = n
	}
	for key, dst := range map[string]*float64{"min_duration": &p.MinDuration, "max_duration": &p.MaxDuration} {
		v := r.FormValue(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%s must be a number", key)
		}
		*dst = f
	}
	return p, nil
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	job, err := app.Service.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		app.writeLookupError(w, err)
		return
	}
	job.Files = nil
	writeJSON(w, http.StatusOK, job)
}

func (app *App) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := app.Service.Result(id)
	if errors.Is(err, service.ErrNotReady) {
		writeJSON(w, http.StatusAccepted, pendingResponse{
			Status:   job.Status,
			Progress: job.Progress,
			Message:  "Job is not complete yet",
		})
		return
	}
	if err != nil {
		app.writeLookupError(w, err)
		return
	}

	resp := resultsResponse{JobID: id, Status: job.Status, Metadata: job.Metadata, Highlights: []highlightLink{}}
	if job.Metadata != nil {
		resp.Highlights = lo.Map(job.Metadata.Highlights, func(h types.HighlightMetadata, _ int) highlightLink {
			return highlightLink{
				ID:               h.ID,
				Filename:         h.Filename,
				URL:              fmt.Sprintf("/api/download/%s/%s", id, h.Filename),
				Duration:         h.Duration,
				StartTime:        h.StartTime,
				EndTime:          h.EndTime,
				Origin:           h.Origin,
				SourceSceneIndex: h.SourceSceneIndex,
			}
		})
	}
	if job.Metadata != nil && job.Metadata.Transcript != nil {
		resp.TranscriptURL = lo.ToPtr(fmt.Sprintf("/api/transcript/%s", id))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (app *App) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := app.Service.Open(chi.URLParam(r, "jobID"), name)
	if errors.Is(err, service.ErrNotReady) {
		writeError(w, http.StatusBadRequest, "Job is not complete yet")
		return
	}
	if err != nil {
		app.writeLookupError(w, err)
		return
	}
	defer f.Close()
	serveAttachment(w, r, f, name)
}

func (app *App) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	f, err := app.Service.Transcript(chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "Transcript not available")
			return
		}
		app.writeLookupError(w, err)
		return
	}
	defer f.Close()
	serveAttachment(w, r, f, "transcript.txt")
}

func (app *App) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	hours := 24.0
	if req.Hours != nil {
		hours = *req.Hours
	}
	if hours < 0 {
		writeError(w, http.StatusBadRequest, "hours must be >= 0")
		return
	}

	removed, err := app.Service.Cleanup(time.Duration(hours * float64(time.Hour)))
	if err != nil {
		app.Log.Error().Err(err).Msg("cleanup failed")
		writeError(w, http.StatusInternalServerError, "Cleanup failed: "+err.Error())
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Message:     fmt.Sprintf("Cleaned up %d old jobs", len(removed)),
		DeletedJobs: removed,
	})
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		ActiveJobs: app.Service.Count(),
		QueuedJobs: app.Service.QueueDepth(),
		Version:    Version,
	})
}

func (app *App) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, os.ErrNotExist), errors.Is(err, storage.ErrInvalidPath):
		writeError(w, http.StatusNotFound, "File not found")
	default:
		app.Log.Error().Err(err).Msg("lookup failed")
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func serveAttachment(w http.ResponseWriter, r *http.Request, f *os.File, name string) {
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
