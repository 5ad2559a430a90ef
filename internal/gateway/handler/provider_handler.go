package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/upstream-billing-gateway/internal/domain/provider"
)

// ProviderHandler handles HTTP requests for provider registration and reads
type ProviderHandler struct {
	registry *provider.Registry
	logger   *slog.Logger
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(logger *slog.Logger, registry *provider.Registry) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		logger:   logger,
	}
}

// Register validates and activates a provider declaration. A rejected
// declaration never serves traffic.
func (h *ProviderHandler) Register(c *gin.Context) {
	var req RegisterProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p := mapRequestToProvider(&req)
	if err := h.registry.Register(p); err != nil {
		var regErr provider.ErrProviderRegistration
		if errors.As(err, &regErr) {
			h.logger.Warn("Provider registration rejected", "provider_id", regErr.ProviderID, "reason", regErr.Reason)
			RespondUnprocessable(c, err.Error())
			return
		}
		var dupErr provider.ErrDuplicateProvider
		if errors.As(err, &dupErr) {
			RespondConflict(c, err.Error())
			return
		}
		h.logger.Error("Failed to register provider", "provider_id", req.ID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapProviderToResponse(p))
}

// Get retrieves a registered provider by its ID
func (h *ProviderHandler) Get(c *gin.Context) {
	providerID := c.Param("id")

	p, err := h.registry.Get(providerID)
	if err != nil {
		RespondNotFound(c, "Provider not found")
		return
	}

	RespondOK(c, mapProviderToResponse(p))
}

func mapRequestToProvider(req *RegisterProviderRequest) *provider.Provider {
	ops := make([]*provider.OperationDescriptor, 0, len(req.Operations))
	for _, op := range req.Operations {
		ops = append(ops, &provider.OperationDescriptor{
			OperationID:       op.OperationID,
			Method:            op.Method,
			Path:              op.Path,
			Kind:              provider.Kind(op.Kind),
			FeeCents:          op.FeeCents,
			PrecheckRef:       op.PrecheckRef,
			AmountPath:        op.AmountPath,
			TransactionIDPath: op.TransactionIDPath,
			CurrencyPath:      op.CurrencyPath,
		})
	}
	return &provider.Provider{
		ID:         req.ID,
		Name:       req.Name,
		BaseURL:    req.BaseURL,
		Operations: ops,
	}
}

func mapProviderToResponse(p *provider.Provider) ProviderResponse {
	ops := make([]RegisterOperationDescriptor, 0, len(p.Operations))
	for _, op := range p.Operations {
		ops = append(ops, RegisterOperationDescriptor{
			OperationID:       op.OperationID,
			Method:            op.Method,
			Path:              op.Path,
			Kind:              string(op.Kind),
			FeeCents:          op.FeeCents,
			PrecheckRef:       op.PrecheckRef,
			AmountPath:        op.AmountPath,
			TransactionIDPath: op.TransactionIDPath,
			CurrencyPath:      op.CurrencyPath,
		})
	}
	return ProviderResponse{
		ID:         p.ID,
		Name:       p.Name,
		BaseURL:    p.BaseURL,
		Operations: ops,
	}
}
