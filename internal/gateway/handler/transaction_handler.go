package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
	"github.com/upstream-billing-gateway/internal/gateway/service"
)

// TransactionHandler handles HTTP requests for transaction history reads
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByID retrieves a transaction record by its ID
func (h *TransactionHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	rec, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transaction.ErrRecordNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapRecordToResponse(rec))
}

// GetByCredentialID retrieves paginated transaction history for a
// credential, newest first
func (h *TransactionHandler) GetByCredentialID(c *gin.Context) {
	idParam := c.Param("id")
	credentialID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid credential ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid credential ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	records, total, err := h.transactionService.GetTransactionsByCredentialID(c.Request.Context(), credentialID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list transactions", "credential_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TransactionResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, mapRecordToResponse(rec))
	}

	RespondWithPaginatedData(c, 200, responses, pagination.Page, pagination.PerPage, int(total))
}

// mapRecordToResponse maps a transaction record to a response DTO
func mapRecordToResponse(rec *transaction.Record) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: rec.ID.String(),
		CredentialID:  rec.CredentialID.String(),
		Type:          string(rec.Type),
		AmountCents:   rec.AmountCents,
		BalanceAfter:  rec.BalanceAfter,
		ProviderID:    rec.ProviderID,
		OperationID:   rec.OperationID,
		ExternalRef:   rec.ExternalRef,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.ProcessedAt != nil {
		resp.ProcessedAt = rec.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}
