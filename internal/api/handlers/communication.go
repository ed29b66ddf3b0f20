package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"casedesk/internal/api"
	"casedesk/internal/db"
	"casedesk/internal/matching"
	"casedesk/internal/repository"
	"casedesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type communicationStore interface {
	CreateCommunication(ctx context.Context, req repository.CreateCommunicationRequest) (*repository.Communication, error)
	GetCommunication(ctx context.Context, id uuid.UUID) (*repository.Communication, error)
	ListCommunications(ctx context.Context, params repository.ListCommunicationsParams) ([]repository.Communication, error)
	CountCommunications(ctx context.Context, status repository.AssignmentStatus) (int64, error)
}

type assignmentPerformer interface {
	Assign(ctx context.Context, communicationID, caseID uuid.UUID, confidence int, actor string, action repository.AuditAction) (*repository.Communication, error)
	CreateNewCase(ctx context.Context, communicationID uuid.UUID, actor string) (*repository.Communication, error)
	DecideAndAssign(ctx context.Context, communicationID uuid.UUID, caseNumberQuery, debtorNameQuery, actor string) (*repository.Communication, []matching.MatchCandidate, error)
}

type auditReader interface {
	ListByCommunication(ctx context.Context, communicationID uuid.UUID) ([]repository.AuditEntry, error)
}

// CommunicationHandler handles communication assignment requests.
type CommunicationHandler struct {
	comms       communicationStore
	assignments assignmentPerformer
	audits      auditReader
	validator   *validator.Validate
}

// NewCommunicationHandler creates a new communication handler
func NewCommunicationHandler(comms communicationStore, assignments assignmentPerformer, audits auditReader) *CommunicationHandler {
	return &CommunicationHandler{
		comms:       comms,
		assignments: assignments,
		audits:      audits,
		validator:   validator.New(),
	}
}

// CreateCommunicationRequest registers an inbound communication
type CreateCommunicationRequest struct {
	CaseNumberHint *string `json:"case_number_hint,omitempty" validate:"omitempty,max=100"`
	DebtorNameHint *string `json:"debtor_name_hint,omitempty" validate:"omitempty,max=255"`
}

// AssignRequest is a manual assignment by an operator
type AssignRequest struct {
	CaseID string `json:"case_id" validate:"required,uuid"`
	Actor  string `json:"actor" validate:"required,max=255"`
}

// NewCaseRequest records the new-case disposition
type NewCaseRequest struct {
	Actor string `json:"actor" validate:"required,max=255"`
}

// ProcessRequest triggers the automatic-assignment policy. Empty queries
// fall back to the hints stored on the communication.
type ProcessRequest struct {
	CaseNumber string `json:"case_number" validate:"omitempty,max=100"`
	DebtorName string `json:"debtor_name" validate:"omitempty,max=255"`
}

// ProcessResponse reports the decision together with the candidate list
type ProcessResponse struct {
	Communication *repository.Communication `json:"communication"`
	Assigned      bool                      `json:"assigned"`
	Candidates    []matching.MatchCandidate `json:"candidates"`
}

// Create handles POST /communications
func (h *CommunicationHandler) Create(c *gin.Context) {
	var req CreateCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	comm, err := h.comms.CreateCommunication(c.Request.Context(), repository.CreateCommunicationRequest{
		CaseNumberHint: req.CaseNumberHint,
		DebtorNameHint: req.DebtorNameHint,
	})
	if err != nil {
		api.SendInternalError(c, "Failed to create communication")
		return
	}

	api.SendSuccess(c, http.StatusCreated, comm, nil)
}

// Get handles GET /communications/:id
func (h *CommunicationHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	comm, err := h.comms.GetCommunication(c.Request.Context(), id)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	api.SendSuccess(c, http.StatusOK, comm, nil)
}

// List handles GET /communications
func (h *CommunicationHandler) List(c *gin.Context) {
	status := repository.AssignmentStatus(c.Query("status"))
	switch status {
	case "", repository.StatusUnassigned, repository.StatusAssigned, repository.StatusNewCaseCreated:
	default:
		api.SendValidationError(c, "Invalid status filter", string(status))
		return
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	ctx := c.Request.Context()
	comms, err := h.comms.ListCommunications(ctx, repository.ListCommunicationsParams{
		Status: status,
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		api.SendInternalError(c, "Failed to list communications")
		return
	}
	total, err := h.comms.CountCommunications(ctx, status)
	if err != nil {
		api.SendInternalError(c, "Failed to count communications")
		return
	}

	if comms == nil {
		comms = []repository.Communication{}
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	api.SendSuccess(c, http.StatusOK, comms, &api.Meta{
		Pagination: &api.PaginationMeta{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// Assign handles POST /communications/:id/assign
func (h *CommunicationHandler) Assign(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}
	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		api.SendValidationError(c, "Invalid case_id", err.Error())
		return
	}

	// Operator assignments always record full confidence.
	comm, err := h.assignments.Assign(c.Request.Context(), id, caseID,
		service.ManualAssignConfidence, req.Actor, repository.AuditManualAssignment)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	api.SendSuccess(c, http.StatusOK, comm, nil)
}

// NewCase handles POST /communications/:id/new-case
func (h *CommunicationHandler) NewCase(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req NewCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	comm, err := h.assignments.CreateNewCase(c.Request.Context(), id, req.Actor)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	api.SendSuccess(c, http.StatusOK, comm, nil)
}

// Process handles POST /communications/:id/process
func (h *CommunicationHandler) Process(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	// The body is optional: with no explicit queries the stored hints drive
	// the decision.
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	caseNumber, debtorName := req.CaseNumber, req.DebtorName
	if caseNumber == "" && debtorName == "" {
		comm, err := h.comms.GetCommunication(ctx, id)
		if err != nil {
			h.sendServiceError(c, err)
			return
		}
		if comm.CaseNumberHint != nil {
			caseNumber = *comm.CaseNumberHint
		}
		if comm.DebtorNameHint != nil {
			debtorName = *comm.DebtorNameHint
		}
	}

	comm, candidates, err := h.assignments.DecideAndAssign(ctx, id, caseNumber, debtorName, service.SystemActor)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	if candidates == nil {
		candidates = []matching.MatchCandidate{}
	}
	api.SendSuccess(c, http.StatusOK, ProcessResponse{
		Communication: comm,
		Assigned:      comm.AssignmentStatus == repository.StatusAssigned,
		Candidates:    candidates,
	}, nil)
}

// Audit handles GET /communications/:id/audit
func (h *CommunicationHandler) Audit(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	// Ensure the communication exists so a bad ID is a 404, not an empty list.
	if _, err := h.comms.GetCommunication(c.Request.Context(), id); err != nil {
		h.sendServiceError(c, err)
		return
	}

	entries, err := h.audits.ListByCommunication(c.Request.Context(), id)
	if err != nil {
		api.SendInternalError(c, "Failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []repository.AuditEntry{}
	}
	api.SendSuccess(c, http.StatusOK, entries, nil)
}

func (h *CommunicationHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.SendValidationError(c, "Invalid communication ID", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *CommunicationHandler) sendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		api.SendNotFound(c, "Communication not found")
	case errors.Is(err, service.ErrInvalidTransition):
		api.SendConflict(c, "Communication is already assigned")
	case errors.Is(err, service.ErrInvalidQuery):
		api.SendValidationError(c, "Communication carries no identifying hints", "")
	default:
		api.SendInternalError(c, "Internal error")
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
