package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telemetry/internal/domain"
	"telemetry/internal/ingest"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not-ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeOK(w)
}

// handleIngest accepts one event or an array; earlier batch items stay stored when a later one fails.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if _, err := ingest.Submit(s.store, raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"services": s.store.Services()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := domain.MetricQuery{
		Service: values.Get("service"),
		Name:    values.Get("metric"),
	}
	if query.Service == "" || query.Name == "" {
		writeError(w, http.StatusBadRequest, "service and metric required")
		return
	}
	var err error
	if query.From, query.To, err = parseRange(values.Get("from"), values.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := values.Get("resolutionMs"); raw != "" {
		query.ResolutionMs, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "resolutionMs must be an integer")
			return
		}
	}
	series, err := s.store.QueryMetrics(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Point{"series": series})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := domain.LogQuery{
		Service: values.Get("service"),
		Level:   values.Get("level"),
		Q:       values.Get("q"),
	}
	var err error
	if query.From, query.To, err = parseRange(values.Get("from"), values.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query = query.WithLimit(limit)
	}
	if query.Offset, err = parseIntParam(values.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, s.store.QueryLogs(query))
}

func (s *Server) handleListAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Alert{"alerts": s.store.ActiveAlerts()})
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ID) == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	s.store.AcknowledgeAlert(body.ID)
	writeOK(w)
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Rule{"rules": s.store.Rules()})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var input domain.RuleInput
	if !s.decodeJSON(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.Name) == "" || input.Service == nil || *input.Service == "" || input.Threshold == nil {
		writeError(w, http.StatusBadRequest, "name, service and threshold required")
		return
	}
	rule, err := s.store.CreateRule(input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string      `json:"status"`
		Rule   domain.Rule `json:"rule"`
	}{Status: "ok", Rule: rule})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch domain.RulePatch
	if !s.decodeJSON(w, r, &patch) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: foundStatus(s.store.UpdateRule(chi.URLParam(r, "id"), patch))})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: foundStatus(s.store.DeleteRule(chi.URLParam(r, "id")))})
}

func (s *Server) handleMockGenerate(w http.ResponseWriter, _ *http.Request) {
	events := s.generator.Generate(s.clock.Now())
	n, err := s.store.IngestBatch(events)
	if err != nil {
		s.logger.Error("mock ingest failed", "accepted", n, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("mock telemetry generated", "events", n)
	writeJSON(w, http.StatusOK, struct {
		Status    string `json:"status"`
		Generated int    `json:"generated"`
	}{Status: "ok", Generated: len(events)})
}

// readBody reads request body under configured size limit.
// Params: response writer and request.
// Returns: body bytes and false when an error response was already written.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := io.Reader(r.Body)
	if s.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return nil, false
	}
	return raw, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	raw, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}

// parseRange parses optional ISO-8601 bounds; empty values stay zero.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var bounds [2]time.Time
	for i, raw := range []string{from, to} {
		if raw == "" {
			continue
		}
		ms, err := domain.ParseTimestamp(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		bounds[i] = time.UnixMilli(ms).UTC()
	}
	return bounds[0], bounds[1], nil
}

func parseIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func foundStatus(found bool) string {
	if found {
		return "ok"
	}
	return "not_found"
}
