package splunktest

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", err.Error())
		return
	}
	query := r.PostForm.Get("search")
	if query == "" {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Missing search parameter")
		return
	}

	s.mu.Lock()
	sid := fmt.Sprintf("1700000000.%d", len(s.jobOrder)+1)
	s.jobs[sid] = &Job{SID: sid, Search: query, Params: formMap(r)}
	s.jobOrder = append(s.jobOrder, sid)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"sid": sid})
}

// liveJob returns the job for the request's sid, writing a 404 if it is
// unknown or deleted. Must be called with s.mu held.
func (s *Server) liveJob(w http.ResponseWriter, r *http.Request) *Job {
	sid := chi.URLParam(r, "sid")
	j, ok := s.jobs[sid]
	if !ok || j.Deleted {
		writeMessages(w, http.StatusNotFound, "FATAL", "Unknown sid.")
		return nil
	}
	return j
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.liveJob(w, r)
	if j == nil {
		return
	}
	j.Polls++

	done := j.Polls > s.PendingPolls || j.Cancelled
	state := "RUNNING"
	progress := float64(j.Polls) / float64(s.PendingPolls+1)
	switch {
	case j.Cancelled:
		state = "FAILED"
	case done:
		state = "DONE"
		progress = 1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entry": []map[string]any{{
			"name": j.Search,
			"content": map[string]any{
				"sid":           j.SID,
				"isDone":        done,
				"isFailed":      j.Cancelled,
				"dispatchState": state,
				"doneProgress":  progress,
				"resultCount":   2,
				"eventCount":    8,
			},
		}},
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j := s.liveJob(w, r)
	if j == nil {
		s.mu.Unlock()
		return
	}
	params := map[string]string{}
	for k, v := range r.URL.Query() {
		params[k] = v[0]
	}
	j.ResultParams = append(j.ResultParams, params)
	body, ok := s.Results[models.OutputMode(params["output_mode"])]
	s.mu.Unlock()

	if !ok {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Invalid output_mode %q", params["output_mode"])
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.liveJob(w, r)
	if j == nil {
		return
	}
	if action := r.PostForm.Get("action"); action != "cancel" {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Unknown action %q", action)
		return
	}
	j.Cancelled = true
	writeMessages(w, http.StatusOK, "INFO", "Search job cancelled.")
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.liveJob(w, r)
	if j == nil {
		return
	}
	j.Deleted = true
	writeMessages(w, http.StatusOK, "INFO", "Search job cancelled.")
}
