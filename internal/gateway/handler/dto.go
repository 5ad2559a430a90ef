package handler

// CreateCredentialRequest represents a request to create a new credential
type CreateCredentialRequest struct {
	Name                string `json:"name" binding:"required"`
	InitialBalanceCents int64  `json:"initial_balance_cents" binding:"min=0"`
}

// CredentialResponse represents a credential in API responses
type CredentialResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BalanceCents int64  `json:"balance_cents"`
	Archived     bool   `json:"archived"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// CreditRequest represents a request to add funds to a credential
type CreditRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
}

// BalanceResponse represents a credential balance in API responses
type BalanceResponse struct {
	CredentialID string `json:"credential_id"`
	BalanceCents int64  `json:"balance_cents"`
}

// TransactionResponse represents a transaction record in API responses
type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	CredentialID  string `json:"credential_id"`
	Type          string `json:"type"`
	AmountCents   int64  `json:"amount_cents"`
	BalanceAfter  int64  `json:"balance_after"`
	ProviderID    string `json:"provider_id,omitempty"`
	OperationID   string `json:"operation_id,omitempty"`
	ExternalRef   string `json:"external_ref,omitempty"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

// RegisterProviderRequest represents a provider declaration with its
// operation descriptors
type RegisterProviderRequest struct {
	ID         string                       `json:"id" binding:"required"`
	Name       string                       `json:"name"`
	BaseURL    string                       `json:"base_url" binding:"required"`
	Operations []RegisterOperationDescriptor `json:"operations" binding:"required,min=1,dive"`
}

// RegisterOperationDescriptor represents one operation in a provider
// declaration
type RegisterOperationDescriptor struct {
	OperationID       string `json:"operation_id" binding:"required"`
	Method            string `json:"method" binding:"required"`
	Path              string `json:"path" binding:"required"`
	Kind              string `json:"kind" binding:"required,oneof=none usage_fee purchase precheck"`
	FeeCents          int64  `json:"fee_cents,omitempty"`
	PrecheckRef       string `json:"precheck_ref,omitempty"`
	AmountPath        string `json:"amount_path,omitempty"`
	TransactionIDPath string `json:"transaction_id_path,omitempty"`
	CurrencyPath      string `json:"currency_path,omitempty"`
}

// ProviderResponse represents a provider in API responses
type ProviderResponse struct {
	ID         string                        `json:"id"`
	Name       string                        `json:"name"`
	BaseURL    string                        `json:"base_url"`
	Operations []RegisterOperationDescriptor `json:"operations"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
