// Package handlers wires the matching engine and assignment state machine
// to the HTTP surface.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"casedesk/internal/api"
	"casedesk/internal/matching"
	"casedesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type matchResolver interface {
	Resolve(ctx context.Context, caseNumberQuery, debtorNameQuery string) ([]matching.MatchCandidate, error)
}

// MatchHandler serves ad-hoc match resolution requests.
type MatchHandler struct {
	matcher   matchResolver
	validator *validator.Validate
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matcher matchResolver) *MatchHandler {
	return &MatchHandler{
		matcher:   matcher,
		validator: validator.New(),
	}
}

// ResolveRequest carries the identifying strings to resolve
type ResolveRequest struct {
	CaseNumber string `json:"case_number" validate:"omitempty,max=100"`
	DebtorName string `json:"debtor_name" validate:"omitempty,max=255"`
}

// ResolveResponse is the ranked candidate list for one resolution call
type ResolveResponse struct {
	MatchFound     bool                      `json:"match_found"`
	BestConfidence int                       `json:"best_confidence"`
	Candidates     []matching.MatchCandidate `json:"candidates"`
}

// Resolve handles POST /match/resolve
func (h *MatchHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	candidates, err := h.matcher.Resolve(c.Request.Context(), req.CaseNumber, req.DebtorName)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuery) {
			api.SendValidationError(c, "At least one of case_number or debtor_name is required", "")
			return
		}
		api.SendInternalError(c, "Match resolution failed")
		return
	}

	api.SendSuccess(c, http.StatusOK, buildResolveResponse(candidates), nil)
}

func buildResolveResponse(candidates []matching.MatchCandidate) ResolveResponse {
	resp := ResolveResponse{Candidates: candidates}
	if resp.Candidates == nil {
		resp.Candidates = []matching.MatchCandidate{}
	}
	if len(candidates) > 0 {
		resp.MatchFound = true
		resp.BestConfidence = candidates[0].Confidence
	}
	return resp
}
