package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// ErrProviderNotFound indicates a missing provider
type ErrProviderNotFound struct {
	ProviderID string
}

func (e ErrProviderNotFound) Error() string {
	return "provider not found: " + e.ProviderID
}

// ErrOperationNotFound indicates a missing operation on a known provider
type ErrOperationNotFound struct {
	ProviderID  string
	OperationID string
}

func (e ErrOperationNotFound) Error() string {
	return "operation not found: " + e.ProviderID + "/" + e.OperationID
}

// ErrDuplicateProvider indicates the provider id is already registered
type ErrDuplicateProvider struct {
	ProviderID string
}

func (e ErrDuplicateProvider) Error() string {
	return "provider already registered: " + e.ProviderID
}

// Registry holds validated providers. All descriptors are classified at
// registration; lookups never re-validate.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		providers: make(map[string]*Provider),
	}
}

// Register validates and activates a provider. Classification failures
// are fatal to activation: the provider is not stored.
func (r *Registry) Register(p *Provider) error {
	if err := Validate(p); err != nil {
		r.logger.Error("Provider registration rejected", "provider_id", p.ID, "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID]; exists {
		return ErrDuplicateProvider{ProviderID: p.ID}
	}
	r.providers[p.ID] = p

	r.logger.Info("Provider registered", "provider_id", p.ID, "operations", len(p.Operations))
	return nil
}

// Get returns a registered provider by id
func (r *Registry) Get(providerID string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerID]
	if !ok {
		return nil, ErrProviderNotFound{ProviderID: providerID}
	}
	return p, nil
}

// Resolve returns the provider and the descriptor for one operation
func (r *Registry) Resolve(providerID, operationID string) (*Provider, *OperationDescriptor, error) {
	p, err := r.Get(providerID)
	if err != nil {
		return nil, nil, err
	}

	op := p.Operation(operationID)
	if op == nil {
		return nil, nil, ErrOperationNotFound{ProviderID: providerID, OperationID: operationID}
	}
	return p, op, nil
}

// LoadFile registers every provider declared in a JSON file. Any invalid
// provider aborts the load; registration errors are fatal at startup.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read providers file %s: %w", path, err)
	}

	var providers []*Provider
	if err := json.Unmarshal(data, &providers); err != nil {
		return fmt.Errorf("failed to parse providers file %s: %w", path, err)
	}

	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return err
		}
	}

	r.logger.Info("Providers loaded from file", "path", path, "count", len(providers))
	return nil
}
