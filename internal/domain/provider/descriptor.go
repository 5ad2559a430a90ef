// Package provider holds the declarative billing metadata for upstream
// services. Every operation a provider exposes is described by an
// OperationDescriptor; the descriptors are validated once, at
// registration time, so malformed billing linkage can never surface
// mid-transaction.
package provider

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind classifies how an operation is billed.
type Kind string

const (
	KindNone     Kind = "none"      // free passthrough
	KindUsageFee Kind = "usage_fee" // fixed fee debited on success
	KindPurchase Kind = "purchase"  // precheck/commit purchase protocol
	KindPrecheck Kind = "precheck"  // read-only price quote
)

// DefaultCurrency is assumed when a descriptor declares no currency path.
const DefaultCurrency = "USD"

// OperationDescriptor describes one upstream operation and how it is
// billed. Amounts located by the paths are integers in the smallest
// currency unit.
type OperationDescriptor struct {
	OperationID string `json:"operation_id"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Kind        Kind   `json:"kind"`

	// FeeCents is the fixed charge for usage_fee operations.
	FeeCents int64 `json:"fee_cents,omitempty"`

	// PrecheckRef names the precheck operation quoting a purchase's
	// price. It must resolve within the same provider.
	PrecheckRef string `json:"precheck_ref,omitempty"`

	// AmountPath locates the integer amount in the response body of
	// precheck and purchase operations (gjson syntax, e.g. "order.total_cents").
	AmountPath string `json:"amount_path,omitempty"`

	TransactionIDPath string `json:"transaction_id_path,omitempty"`
	CurrencyPath      string `json:"currency_path,omitempty"`
}

// Provider is a registered upstream service with its operation set.
type Provider struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	BaseURL    string                 `json:"base_url"`
	Operations []*OperationDescriptor `json:"operations"`
}

// Operation returns the descriptor for the given operation id, or nil.
func (p *Provider) Operation(operationID string) *OperationDescriptor {
	for _, op := range p.Operations {
		if op.OperationID == operationID {
			return op
		}
	}
	return nil
}

// ErrProviderRegistration is fatal to provider activation: the provider
// never serves traffic with invalid billing metadata.
type ErrProviderRegistration struct {
	ProviderID string
	Reason     string
}

func (e ErrProviderRegistration) Error() string {
	return fmt.Sprintf("provider registration rejected for %q: %s", e.ProviderID, e.Reason)
}

var validKinds = map[Kind]bool{
	KindNone:     true,
	KindUsageFee: true,
	KindPurchase: true,
	KindPrecheck: true,
}

// Validate is the endpoint classifier. It checks every descriptor and
// the purchase→precheck linkage; any violation blocks registration.
func Validate(p *Provider) error {
	reject := func(format string, args ...interface{}) error {
		return ErrProviderRegistration{ProviderID: p.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if p.ID == "" {
		return ErrProviderRegistration{ProviderID: p.ID, Reason: "provider id is required"}
	}
	if p.BaseURL == "" {
		return reject("base_url is required")
	}
	if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return reject("base_url %q is not an absolute URL", p.BaseURL)
	}
	if len(p.Operations) == 0 {
		return reject("at least one operation is required")
	}

	seen := make(map[string]*OperationDescriptor, len(p.Operations))
	for _, op := range p.Operations {
		if op.OperationID == "" {
			return reject("operation id is required")
		}
		if _, dup := seen[op.OperationID]; dup {
			return reject("duplicate operation id %q", op.OperationID)
		}
		seen[op.OperationID] = op

		if op.Method == "" || !strings.HasPrefix(op.Path, "/") {
			return reject("operation %q needs a method and an absolute path", op.OperationID)
		}
		if op.Kind == "" {
			op.Kind = KindNone
		}
		if !validKinds[op.Kind] {
			return reject("operation %q has unknown kind %q", op.OperationID, op.Kind)
		}

		switch op.Kind {
		case KindUsageFee:
			if op.FeeCents <= 0 {
				return reject("usage_fee operation %q must declare a positive fee_cents", op.OperationID)
			}
		case KindPrecheck, KindPurchase:
			if op.AmountPath == "" {
				return reject("%s operation %q must declare amount_path", op.Kind, op.OperationID)
			}
		}
		if op.Kind != KindUsageFee && op.FeeCents != 0 {
			return reject("operation %q declares fee_cents but is not usage_fee", op.OperationID)
		}
		if op.Kind != KindPurchase && op.PrecheckRef != "" {
			return reject("operation %q declares precheck_ref but is not a purchase", op.OperationID)
		}
	}

	// Purchase linkage resolves against the already-collected set so
	// declaration order does not matter.
	for _, op := range p.Operations {
		if op.Kind != KindPurchase {
			continue
		}
		if op.PrecheckRef == "" {
			return reject("purchase operation %q must declare precheck_ref", op.OperationID)
		}
		ref, ok := seen[op.PrecheckRef]
		if !ok {
			return reject("purchase operation %q references unknown precheck %q", op.OperationID, op.PrecheckRef)
		}
		if ref.Kind != KindPrecheck {
			return reject("purchase operation %q references %q which is %s, not precheck", op.OperationID, op.PrecheckRef, ref.Kind)
		}
	}

	return nil
}
