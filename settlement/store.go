/*
store.go - Persistence interface for clients, items, payments and allocations

PURPOSE:
  Defines exactly the reads and writes the engine needs from the database.
  The database itself is an external collaborator; implementations live in
  store/sqlite (production) and settlement/store (in-memory, tests).

KEY INTERFACES:
  Store:    Record access for the four collections
  TxStore:  Store plus atomic multi-write transactions
  RunStore: Optional reconciliation-run log

ATOMIC REPLACE:
  ReplaceAllocations swaps a client's whole allocation set. Combined with
  WithTx, a reconciliation run either commits its full result (allocations,
  settled flags, cached credit) or leaves the previous state untouched.

LOOKUP CONTRACT:
  Get* methods return ErrClientNotFound / ErrItemNotFound / ErrPaymentNotFound
  (possibly wrapped) when the record is absent. Other errors are storage
  failures.

SEE ALSO:
  - reconcile.go: The main consumer
  - service.go: Runs mutations and reconciliation inside WithTx
*/
package settlement

import "context"

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

type Store interface {
	// Clients
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	SaveClient(ctx context.Context, c Client) error
	SetAvailableCredit(ctx context.Context, id ClientID, credit Money) error

	// Chargeable items (both variants)
	GetItem(ctx context.Context, ref ItemRef) (ChargeableItem, error)
	ListItems(ctx context.Context, clientID ClientID) ([]ChargeableItem, error)
	SaveItem(ctx context.Context, item ChargeableItem) error
	DeleteItem(ctx context.Context, ref ItemRef) error
	MarkSettled(ctx context.Context, ref ItemRef, settled bool) error
	MarkForced(ctx context.Context, ref ItemRef, forced bool) error

	// Payments
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	ListPayments(ctx context.Context, clientID ClientID) ([]Payment, error)
	SavePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error

	// Allocations are written only by the Engine.
	ListAllocations(ctx context.Context, clientID ClientID) ([]Allocation, error)
	ReplaceAllocations(ctx context.Context, clientID ClientID, allocs []Allocation) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the passed Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RUN STORE - Reconciliation audit log
// =============================================================================

// RunStore is implemented by stores that keep a reconciliation run log.
type RunStore interface {
	SaveReconciliationRun(ctx context.Context, run ReconciliationRun) error
	ListReconciliationRuns(ctx context.Context, clientID ClientID, limit int) ([]ReconciliationRun, error)
}

// RunPruner drops all but the newest keep runs of every client and reports
// how many were removed. Transaction views do not implement it.
type RunPruner interface {
	PruneReconciliationRuns(ctx context.Context, keep int) (int, error)
}
