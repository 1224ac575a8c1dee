// Package server exposes the orchestrator over a small JSON HTTP API so
// dashboards and scripts can drive a campaign without linking the
// daemon's packages.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/user/campaignd/internal/orchestrator"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/types"
)

// Server is a lightweight HTTP handler over the campaign orchestrator.
type Server struct {
	orch      *orchestrator.Orchestrator
	snapshots *session.SnapshotStore
	mux       *http.ServeMux
}

// NewServer wires the API routes. snapshots may be nil, in which case
// the session listing endpoints report unavailable.
func NewServer(orch *orchestrator.Orchestrator, snapshots *session.SnapshotStore) *Server {
	s := &Server{
		orch:      orch,
		snapshots: snapshots,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/approvals", s.handleApprovals)
	s.mux.HandleFunc("GET /api/items", s.handleItems)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("POST /api/campaign/start", s.handleStart)
	s.mux.HandleFunc("POST /api/campaign/resume", s.handleResume)
	s.mux.HandleFunc("POST /api/campaign/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/campaign/proceed", s.handleProceed)
	s.mux.HandleFunc("POST /api/campaign/feedback", s.handleFeedback)
	s.mux.HandleFunc("POST /api/revision/started", s.handleRevisionStarted)
	s.mux.HandleFunc("POST /api/revision/complete", s.handleRevisionComplete)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orch.Status())
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	statuses := s.orch.Approvals()
	if statuses == nil {
		statuses = []types.ApprovalStatus{}
	}
	writeJSON(w, statuses)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items := s.orch.Items()
	if items == nil {
		items = []types.ContentItem{}
	}
	writeJSON(w, items)
}

type sessionSummary struct {
	SessionID string `json:"session_id"`
	Product   string `json:"product"`
	CreatedAt string `json:"created_at"`
	Results   int    `json:"results"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		http.Error(w, `{"error":"session store not configured"}`, http.StatusServiceUnavailable)
		return
	}
	snaps, err := s.snapshots.List()
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]sessionSummary, 0, len(snaps))
	for _, snap := range snaps {
		result = append(result, sessionSummary{
			SessionID: string(snap.Session.ID),
			Product:   snap.Session.Config.Product,
			CreatedAt: snap.Session.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Results:   len(snap.Session.Results),
		})
	}
	writeJSON(w, result)
}

// startRequest is the JSON body for POST /api/campaign/start.
type startRequest struct {
	Product     string  `json:"product"`
	ProductCost float64 `json:"product_cost"`
	Budget      float64 `json:"budget"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	id, err := s.orch.StartCampaign(r.Context(), types.CampaignConfig{
		Product:     req.Product,
		ProductCost: req.ProductCost,
		Budget:      req.Budget,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"session_id": string(id)})
}

type resumeRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, `{"error":"session_id is required"}`, http.StatusBadRequest)
		return
	}
	if err := s.orch.Resume(types.SessionID(req.SessionID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.orch.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.orch.Reset()
	writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Proceed(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.orch.Status())
}

// feedbackRequest is the JSON body for POST /api/campaign/feedback.
// ItemID targets one item; Items targets a bulk operation. Exactly one
// of the two must be set.
type feedbackRequest struct {
	ItemID       string   `json:"item_id"`
	Items        []string `json:"items"`
	FeedbackType string   `json:"feedback_type"`
	Feedback     string   `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	action := types.FeedbackAction(strings.ToLower(req.FeedbackType))
	if action != types.ActionApprove && action != types.ActionRevise {
		http.Error(w, `{"error":"feedback_type must be approve or revise"}`, http.StatusBadRequest)
		return
	}
	if (req.ItemID == "") == (len(req.Items) == 0) {
		http.Error(w, `{"error":"exactly one of item_id or items is required"}`, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.ItemID != "" {
		id := types.ItemID(req.ItemID)
		var err error
		if action == types.ActionApprove {
			err = s.orch.Approve(ctx, id)
		} else {
			err = s.orch.RequestRevision(ctx, id, req.Feedback)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		status, err := s.orch.Approval(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, status)
		return
	}

	ids := make([]types.ItemID, 0, len(req.Items))
	for _, raw := range req.Items {
		ids = append(ids, types.ItemID(raw))
	}
	var report types.BulkReport
	var err error
	if action == types.ActionApprove {
		report, err = s.orch.BulkApprove(ctx, ids)
	} else {
		report, err = s.orch.BulkRevise(ctx, ids, req.Feedback)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

type revisionRequest struct {
	ItemID  string `json:"item_id"`
	Content string `json:"content"`
}

// handleRevisionStarted is the runtime's callback when the content
// agent picks up a revision request.
func (s *Server) handleRevisionStarted(w http.ResponseWriter, r *http.Request) {
	var req revisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		http.Error(w, `{"error":"item_id is required"}`, http.StatusBadRequest)
		return
	}
	if err := s.orch.MarkRevising(types.ItemID(req.ItemID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleRevisionComplete is the runtime's callback carrying the revised
// content for a previously requested revision.
func (s *Server) handleRevisionComplete(w http.ResponseWriter, r *http.Request) {
	var req revisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		http.Error(w, `{"error":"item_id is required"}`, http.StatusBadRequest)
		return
	}
	if err := s.orch.CompleteRevision(types.ItemID(req.ItemID), req.Content); err != nil {
		writeError(w, err)
		return
	}
	status, err := s.orch.Approval(types.ItemID(req.ItemID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Validation
// problems are the caller's fault, stale or missing sessions are 404,
// and failed runtime submissions surface as bad gateway.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var verr *types.ValidationError
	var serr *types.SubmissionError
	switch {
	case errors.As(err, &verr):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, types.ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.As(err, &serr):
		w.WriteHeader(http.StatusBadGateway)
	default:
		slog.Error("request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
