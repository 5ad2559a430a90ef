package handler

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/billing"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/domain/provider"
	"github.com/upstream-billing-gateway/internal/gateway/middleware"
	"github.com/upstream-billing-gateway/internal/gateway/service"
	"github.com/upstream-billing-gateway/internal/upstream"
)

const (
	// CredentialIDHeader identifies the paying credential on billed calls
	CredentialIDHeader = "X-Credential-ID"

	// IdempotencyKeyHeader enables safe retries of purchase calls
	IdempotencyKeyHeader = "X-Idempotency-Key"

	// TransactionIDHeader carries the ledger transaction back to the caller
	TransactionIDHeader = "X-Transaction-ID"

	maxRequestBodyBytes = 4 << 20
)

// InvokeHandler proxies calls to provider operations through the
// billing service. Upstream response bodies pass through verbatim.
type InvokeHandler struct {
	billingService service.BillingService
	logger         *slog.Logger
}

// NewInvokeHandler creates a new invoke handler
func NewInvokeHandler(logger *slog.Logger, billingService service.BillingService) *InvokeHandler {
	return &InvokeHandler{
		billingService: billingService,
		logger:         logger,
	}
}

// Invoke executes a billed call against a provider operation
func (h *InvokeHandler) Invoke(c *gin.Context) {
	credentialHeader := c.GetHeader(CredentialIDHeader)
	if credentialHeader == "" {
		RespondBadRequest(c, CredentialIDHeader+" header is required")
		return
	}
	credentialID, err := uuid.Parse(credentialHeader)
	if err != nil {
		RespondBadRequest(c, "Invalid "+CredentialIDHeader+" header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read request body", "error", err)
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	req := billing.InvokeRequest{
		CredentialID: credentialID,
		ProviderID:   c.Param("provider"),
		OperationID:  c.Param("operation"),
		Params: upstream.Params{
			Body:  body,
			Query: c.Request.URL.Query(),
		},
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		CorrelationID:  middleware.GetCorrelationID(c),
	}

	outcome, err := h.billingService.Invoke(c.Request.Context(), req)
	if err != nil {
		h.respondInvokeError(c, req, err)
		return
	}

	if outcome.TransactionID != uuid.Nil {
		c.Header(TransactionIDHeader, outcome.TransactionID.String())
	}
	if len(outcome.Body) == 0 {
		c.Status(outcome.Status)
		return
	}
	c.Data(outcome.Status, "application/json", outcome.Body)
}

// respondInvokeError maps billing failures onto the HTTP surface.
// Upstream provider errors pass their status and body through.
func (h *InvokeHandler) respondInvokeError(c *gin.Context, req billing.InvokeRequest, err error) {
	switch {
	case errors.Is(err, billing.ErrInsufficientFunds):
		RespondPaymentRequired(c, "Credential balance does not cover the quoted amount")

	case errors.Is(err, billing.ErrIdempotencyConflict):
		RespondConflict(c, "A request with this idempotency key is already in flight")

	case errors.Is(err, billing.ErrInvalidAmount):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, credential.ErrCredentialNotFound{}):
		RespondNotFound(c, "Credential not found")

	case errors.Is(err, credential.ErrCredentialArchived{}):
		RespondForbidden(c, "Credential is archived")

	default:
		var rateErr *billing.RateLimitError
		if errors.As(err, &rateErr) {
			RespondTooManyRequests(c, int(math.Ceil(rateErr.RetryAfter.Seconds())))
			return
		}

		var notFoundProvider provider.ErrProviderNotFound
		var notFoundOperation provider.ErrOperationNotFound
		if errors.As(err, &notFoundProvider) || errors.As(err, &notFoundOperation) {
			RespondNotFound(c, err.Error())
			return
		}

		var upstreamErr *billing.UpstreamError
		if errors.As(err, &upstreamErr) {
			h.logger.Warn("Upstream failure",
				"provider_id", upstreamErr.ProviderID,
				"operation_id", upstreamErr.OperationID,
				"upstream_status", upstreamErr.Status,
				"timeout", upstreamErr.Timeout,
				"error", err,
			)
			switch {
			case upstreamErr.Timeout:
				RespondGatewayTimeout(c, "")
			case upstreamErr.Status != 0 && len(upstreamErr.Body) > 0:
				c.Data(upstreamErr.Status, "application/json", upstreamErr.Body)
			case upstreamErr.Status != 0:
				c.Status(upstreamErr.Status)
			case upstreamErr.Reason != "":
				RespondWithError(c, http.StatusBadGateway, "UPSTREAM_FAILED", upstreamErr.Reason)
			default:
				RespondBadGateway(c, "")
			}
			return
		}

		h.logger.Error("Invoke failed",
			"provider_id", req.ProviderID,
			"operation_id", req.OperationID,
			"credential_id", req.CredentialID.String(),
			"error", err,
		)
		RespondInternalError(c)
	}
}
