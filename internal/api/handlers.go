package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairfund-scanner/internal/logging"
	"github.com/fairfund-scanner/internal/orchestrator"
	"github.com/fairfund-scanner/internal/types"
)

// actionTimeout bounds a detached write pipeline, covering approval plus
// contribution confirmation on a slow chain.
const actionTimeout = 5 * time.Minute

// handleListProjects handles GET /api/projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.projects.ListProjects(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("listing projects failed")
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// handleGetProject handles GET /api/projects/{id}
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	detail, err := s.projects.GetProject(r.Context(), projectID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// handleGetContribution handles GET /api/projects/{id}/contributions/{address}
func (s *Server) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	view, err := s.projects.GetContribution(r.Context(), projectID, mux.Vars(r)["address"])
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleContributionHistory handles GET /api/backers/{address}/history
func (s *Server) handleContributionHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.projects.ContributionHistory(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleCreateProject handles POST /api/projects
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenAddress   string `json:"tokenAddress"`
		Title          string `json:"title"`
		DescriptionURI string `json:"descriptionUri,omitempty"`
		Goal           string `json:"goal"`
		DurationDays   int    `json:"durationDays"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	s.runAction(w, r, types.ActionCreate, 0, func(ctx context.Context) orchestrator.ActionState {
		return s.actions.Create(ctx, orchestrator.CreateInput{
			TokenAddress:   req.TokenAddress,
			Title:          req.Title,
			DescriptionURI: req.DescriptionURI,
			Goal:           req.Goal,
			Duration:       time.Duration(req.DurationDays) * 24 * time.Hour,
		})
	})
}

// handleFund handles POST /api/projects/{id}/fund
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req struct {
		TokenAddress string `json:"tokenAddress"`
		Amount       string `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	s.runAction(w, r, types.ActionFund, projectID, func(ctx context.Context) orchestrator.ActionState {
		return s.actions.Fund(ctx, projectID, req.TokenAddress, req.Amount)
	})
}

// handleRefund handles POST /api/projects/{id}/refund
func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}
	s.runAction(w, r, types.ActionRefund, projectID, func(ctx context.Context) orchestrator.ActionState {
		return s.actions.Refund(ctx, projectID)
	})
}

// handleWithdraw handles POST /api/projects/{id}/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}
	s.runAction(w, r, types.ActionWithdraw, projectID, func(ctx context.Context) orchestrator.ActionState {
		return s.actions.Withdraw(ctx, projectID)
	})
}

// handleActionState handles GET /api/projects/{id}/actions/{action}
func (s *Server) handleActionState(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	action := types.ActionKind(mux.Vars(r)["action"])
	switch action {
	case types.ActionFund, types.ActionRefund, types.ActionWithdraw, types.ActionCreate:
	default:
		respondError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Unknown action", nil)
		return
	}

	respondJSON(w, http.StatusOK, s.actions.State(action, projectID))
}

// runAction launches a write pipeline detached from the request and responds
// 202 with the pending state; clients poll the action-status endpoint. The
// (action, project) pair is reserved synchronously before responding, so two
// simultaneous requests cannot both launch a pipeline.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, action types.ActionKind, projectID uint64, run func(context.Context) orchestrator.ActionState) {
	pending, started := s.actions.Begin(action, projectID)
	if !started {
		respondError(w, http.StatusConflict, ErrCodeConflict, "Action already in progress", nil)
		return
	}

	logger := logging.FromContext(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logger), actionTimeout)
		defer cancel()

		state := run(ctx)
		actionsTotal.WithLabelValues(string(action), string(state.Status)).Inc()
	}()

	respondJSON(w, http.StatusAccepted, pending)
}

// parseProjectID extracts and validates the {id} path variable
func parseProjectID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	projectID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid project id", nil)
		return 0, false
	}
	return projectID, true
}
