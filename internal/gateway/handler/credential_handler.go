package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/gateway/service"
)

// CredentialHandler handles HTTP requests for credential operations
type CredentialHandler struct {
	credentialService service.CredentialService
	logger            *slog.Logger
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(logger *slog.Logger, credentialService service.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credentialService: credentialService,
		logger:            logger,
	}
}

// Create handles creation of a new credential with an opening balance
func (h *CredentialHandler) Create(c *gin.Context) {
	var req CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cred, err := h.credentialService.CreateCredential(c.Request.Context(), req.Name, req.InitialBalanceCents)
	if err != nil {
		if errors.Is(err, credential.ErrEmptyName) || errors.Is(err, credential.ErrInvalidAmount) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create credential", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapCredentialToResponse(cred))
}

// GetByID retrieves a credential by its ID, returning 404 if not found
func (h *CredentialHandler) GetByID(c *gin.Context) {
	id, ok := h.credentialID(c)
	if !ok {
		return
	}

	cred, err := h.credentialService.GetCredential(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound{}) {
			RespondNotFound(c, "Credential not found")
			return
		}
		h.logger.Error("Failed to get credential", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapCredentialToResponse(cred))
}

// Credit handles a balance top-up against a credential
func (h *CredentialHandler) Credit(c *gin.Context) {
	id, ok := h.credentialID(c)
	if !ok {
		return
	}

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	balance, err := h.credentialService.Credit(c.Request.Context(), id, req.AmountCents)
	if err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound{}) {
			RespondNotFound(c, "Credential not found")
			return
		}
		h.logger.Error("Failed to credit credential", "id", id.String(), "amount_cents", req.AmountCents, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		CredentialID: id.String(),
		BalanceCents: balance,
	})
}

// Archive marks a credential as archived, rejecting further billed calls
func (h *CredentialHandler) Archive(c *gin.Context) {
	id, ok := h.credentialID(c)
	if !ok {
		return
	}

	if err := h.credentialService.Archive(c.Request.Context(), id); err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound{}) {
			RespondNotFound(c, "Credential not found")
			return
		}
		h.logger.Error("Failed to archive credential", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondNoContent(c)
}

func (h *CredentialHandler) credentialID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid credential ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid credential ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapCredentialToResponse maps a credential entity to a response DTO
func mapCredentialToResponse(cred *credential.Credential) CredentialResponse {
	return CredentialResponse{
		ID:           cred.ID.String(),
		Name:         cred.Name,
		BalanceCents: cred.Balance,
		Archived:     cred.Archived,
		CreatedAt:    cred.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    cred.UpdatedAt.Format(time.RFC3339),
	}
}
