package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/graphmart/graphmart/internal/deploy"
)

// deployRequest is the request body of every deployment endpoint.
type deployRequest struct {
	ModelIDs       []string `json:"model_ids"`
	Source         string   `json:"source"`
	ReplaceObjects bool     `json:"replace_objects"`
	FullRefresh    bool     `json:"full_refresh"`
}

func (d deployRequest) toRequest() deploy.Request {
	return deploy.Request{
		Source:         d.Source,
		ModelIDs:       d.ModelIDs,
		ReplaceObjects: d.ReplaceObjects,
		FullRefresh:    d.FullRefresh,
	}
}

type startFunc func(ctx context.Context, req deploy.Request) <-chan deploy.Event

// handleDeployStream streams the run's events over SSE. The run is started
// on a detached context: a client disconnect stops delivery, not the run,
// and the audit record is still written.
func (s *Server) handleDeployStream(start startFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body deployRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := start(context.WithoutCancel(r.Context()), body.toRequest())

		gone := false
		for ev := range events {
			if gone {
				// Keep draining so the run and its audit record finish.
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				s.logger.Debug("client disconnected from event stream", slog.Any("error", err))
				gone = true
				continue
			}
			flusher.Flush()
		}
	}
}

// syncUnit is one unit's outcome in a synchronous deployment response.
type syncUnit struct {
	ModelID        string                 `json:"model_id"`
	Status         string                 `json:"status"`
	Error          string                 `json:"error,omitempty"`
	StepsCompleted map[deploy.Stage]*bool `json:"steps_completed,omitempty"`
	DataSummary    map[string]int64       `json:"data_summary,omitempty"`
}

// syncResponse is the final outcome of a synchronous deployment.
type syncResponse struct {
	Status  deploy.RunStatus `json:"status"`
	Results []syncUnit       `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// handleDeploySync runs the deployment to completion and returns only the
// final outcome, no intermediate events.
func (s *Server) handleDeploySync(start startFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body deployRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		events := start(context.WithoutCancel(r.Context()), body.toRequest())

		resp := collectOutcome(events)
		status := http.StatusOK
		if resp.Status == deploy.RunFailed {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, resp)
	}
}

// collectOutcome drains a run's event stream into the synchronous response
// shape.
func collectOutcome(events <-chan deploy.Event) syncResponse {
	var resp syncResponse
	units := map[string]*syncUnit{}
	var order []string
	var successes, failures int
	sawError := false

	unitFor := func(id string) *syncUnit {
		if u, ok := units[id]; ok {
			return u
		}
		u := &syncUnit{ModelID: id}
		units[id] = u
		order = append(order, id)
		return u
	}

	for ev := range events {
		switch data := ev.Data.(type) {
		case deploy.LogEntry:
			if data.StepsCompleted != nil {
				unitFor(data.ModelID).StepsCompleted = data.StepsCompleted
			}
		case deploy.UnitComplete:
			u := unitFor(data.ModelID)
			u.Status = data.Status
			u.Error = data.Error
			u.DataSummary = data.DataSummary
		case deploy.Summary:
			successes = len(data.Successful)
			failures = len(data.Failed)
		case deploy.StreamError:
			sawError = true
			resp.Error = data.Message
		}
	}

	resp.Status = deploy.AggregateStatus(successes, failures, sawError)
	for _, id := range order {
		resp.Results = append(resp.Results, *units[id])
	}
	return resp
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history not available")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("could not list runs", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
