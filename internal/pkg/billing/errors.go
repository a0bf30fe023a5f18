package billing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPaymentNotFound means no local payment exists for the given id. For
	// webhook deliveries this is recoverable: the event stays logged and the
	// gateway gets an acknowledgement.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrWebhookLogNotFound means the reprocess endpoint was given an unknown
	// webhook log id.
	ErrWebhookLogNotFound = errors.New("webhook log not found")

	// ErrCustomerConflict means the request's email matched one customer and
	// its cpf/cnpj matched a different one. Resolution requires a human; we
	// never silently pick a side.
	ErrCustomerConflict = errors.New("email and cpf/cnpj belong to different customers")

	// ErrInvalidSignature means a webhook secret is configured and the
	// delivery's signature header was missing or did not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrStaleTransition means the conditional status update matched zero rows
	// after the payment was confirmed to exist: another writer got there
	// first. Non-fatal, never retried here.
	ErrStaleTransition = errors.New("payment status changed concurrently")

	// ErrTransitionRejected is returned only under the strict transition
	// policy when an event instructs a move outside the allowed lifecycle.
	ErrTransitionRejected = errors.New("status transition rejected by policy")
)

// ValidationError carries per-field messages for a malformed request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// GatewayError wraps a failed gateway call with the operation that issued it.
// The underlying error keeps the upstream status code and body when the
// gateway answered at all.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
