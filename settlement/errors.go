/*
errors.go - Centralized error types for the settlement engine

ERROR CATEGORIES:
  1. Lookup errors - client, item or payment missing (or, on create,
     already present)
  2. Validation errors - bad amounts, insufficient credit for a manual settle
  3. Reconciliation errors - storage failure while rebuilding allocations

PROPAGATION:
  Validation errors reach the caller directly, with the computed context
  (shortfall, offending field). Storage failures inside a run are wrapped in
  ReconciliationError; the run's writes are rolled back and previously
  committed allocations stay in place.

SEE ALSO:
  - reconcile.go: Produces ReconciliationError
  - balance.go: Produces InsufficientCreditError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidAmount is returned for non-numeric or negative money or hours.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientCredit is returned when a manual settle would need more
	// credit than the client holds.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrReconciliationFailed wraps a storage failure during an allocation rebuild.
	ErrReconciliationFailed = errors.New("reconciliation failed")

	// ErrDuplicatePayment is raised by the CRUD layer when a payment with the
	// same client, amount and date already exists.
	ErrDuplicatePayment = errors.New("duplicate payment")

	// ErrInvalidRecord is returned for records missing required identifiers.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrClientMismatch is returned when a record is addressed through the
	// wrong client.
	ErrClientMismatch = errors.New("record belongs to another client")

	// ErrAlreadyExists is returned by create operations whose ID is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError describes a rejected money or hours value.
type InvalidAmountError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %q (%s)", e.Field, e.Value, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InsufficientCreditError reports the shortfall of a manual settle request.
type InsufficientCreditError struct {
	ClientID  ClientID
	Item      ItemRef
	Cost      Money
	Available Money
	Shortfall Money
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit to settle %s: cost %s, available %s, shortfall %s",
		e.Item, e.Cost, e.Available, e.Shortfall)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// ReconciliationError wraps the storage failure that aborted a run.
type ReconciliationError struct {
	ClientID ClientID
	Stage    string // load_items, load_payments, persist, ...
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for client %s at %s: %v", e.ClientID, e.Stage, e.Err)
}

// Unwrap exposes both the sentinel and the underlying storage error.
func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrReconciliationFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrClientMismatch) ||
		errors.Is(err, ErrAlreadyExists)
}
