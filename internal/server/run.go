package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yourorg/featuregen/internal/report"
	"github.com/yourorg/featuregen/pkg/types"
)

func decodeExecRequest(r *http.Request) (types.ExecRequest, error) {
	var req types.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return req, nil
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExecRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.engine.Call(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExecRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.engine.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExecRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.engine.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := s.now()
	artifact, err := report.RenderWith(summary, req, now, s.logger)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.publisher != nil {
		loc, err := s.publisher.Publish(r.Context(), summary.RunID, artifact, now)
		if err != nil {
			s.logger.Warn("report publish failed", "run_id", summary.RunID, "error", err)
		} else {
			w.Header().Set("X-Report-Location", loc)
		}
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}
