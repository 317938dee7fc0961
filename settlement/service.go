/*
service.go - Entry points used by the CRUD layer

PURPOSE:
  Every change to a client's financial facts goes through the Service. Each
  mutating call follows the same pattern:

    Coordinator.WithClientLock(client)
      TxStore.WithTx
        persist the mutation
        Engine.Reconcile
      commit
    Project summary

  The mutation and the rebuild share one transaction, so if reconciliation
  fails the mutation is rolled back as well and the caller gets the error
  instead of a stale summary.

VALIDATION:
  hours >= 0, material cost >= 0, payment amount > 0, hourly rate >= 0.
  Items and payments must reference an existing client and cannot move to
  another client.

SEE ALSO:
  - reconcile.go: Engine
  - coordinator.go: Per-client lock
  - api/handlers.go: HTTP front end
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service coordinates mutations and reconciliation.
type Service struct {
	store  TxStore
	engine *Engine
	locks  *Coordinator
	logger zerolog.Logger
}

// NewService wires a Service. A nil engine or coordinator gets a default.
func NewService(store TxStore, engine *Engine, locks *Coordinator, logger zerolog.Logger) *Service {
	if engine == nil {
		engine = NewEngine(logger)
	}
	if locks == nil {
		locks = NewCoordinator()
	}
	return &Service{
		store:  store,
		engine: engine,
		locks:  locks,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// Store returns the underlying store for read-only listings.
func (s *Service) Store() TxStore { return s.store }

// =============================================================================
// CHANGE SETS
// =============================================================================

// ClientChanges holds optional client updates; nil fields are left alone.
type ClientChanges struct {
	Name       *string
	HourlyRate *Money
}

// ItemChanges holds optional item updates. Hours applies to jobs only and
// Cost to materials only.
type ItemChanges struct {
	Date  *Date
	Hours *decimal.Decimal
	Cost  *Money
}

// PaymentChanges holds optional payment updates.
type PaymentChanges struct {
	Date   *Date
	Amount *Money
}

// =============================================================================
// CLIENTS
// =============================================================================

// CreateClient stores a new client with zero credit.
func (s *Service) CreateClient(ctx context.Context, c Client) (*Summary, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidRecord)
	}
	if c.HourlyRate.IsNegative() {
		return nil, &InvalidAmountError{Field: "hourly_rate", Value: c.HourlyRate.String(), Reason: "negative"}
	}
	c.HourlyRate = c.HourlyRate.Round()
	c.AvailableCredit = ZeroMoney

	return s.mutate(ctx, c.ID, "create_client", func(ctx context.Context, tx Store) error {
		if _, err := tx.GetClient(ctx, c.ID); err == nil {
			return fmt.Errorf("%w: client %s", ErrAlreadyExists, c.ID)
		} else if !errors.Is(err, ErrClientNotFound) {
			return err
		}
		return tx.SaveClient(ctx, c)
	})
}

// UpdateClient renames a client or changes its hourly rate. A rate change
// reprices every job, so the client is reconciled either way.
func (s *Service) UpdateClient(ctx context.Context, id ClientID, changes ClientChanges) (*Summary, error) {
	if changes.HourlyRate != nil && changes.HourlyRate.IsNegative() {
		return nil, &InvalidAmountError{Field: "hourly_rate", Value: changes.HourlyRate.String(), Reason: "negative"}
	}
	return s.mutate(ctx, id, "update_client", func(ctx context.Context, tx Store) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		if changes.Name != nil {
			c.Name = *changes.Name
		}
		if changes.HourlyRate != nil {
			c.HourlyRate = changes.HourlyRate.Round()
		}
		return tx.SaveClient(ctx, *c)
	})
}

// =============================================================================
// ITEMS
// =============================================================================

// OnItemCreated persists a new job or material and reconciles its client.
func (s *Service) OnItemCreated(ctx context.Context, item ChargeableItem) (*Summary, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	h := item.Header()
	item = withFlags(item, false, false)

	return s.mutate(ctx, h.ClientID, "item_created", func(ctx context.Context, tx Store) error {
		if _, err := tx.GetClient(ctx, h.ClientID); err != nil {
			return err
		}
		ref := item.Ref()
		if _, err := tx.GetItem(ctx, ref); err == nil {
			return fmt.Errorf("%w: %s %s", ErrAlreadyExists, ref.Kind, ref.ID)
		} else if !errors.Is(err, ErrItemNotFound) {
			return err
		}
		return tx.SaveItem(ctx, item)
	})
}

// OnItemUpdated applies changes to an existing item and reconciles.
func (s *Service) OnItemUpdated(ctx context.Context, ref ItemRef, changes ItemChanges) (*Summary, error) {
	current, err := s.store.GetItem(ctx, ref)
	if err != nil {
		return nil, err
	}
	clientID := current.Header().ClientID

	return s.mutate(ctx, clientID, "item_updated", func(ctx context.Context, tx Store) error {
		item, err := tx.GetItem(ctx, ref)
		if err != nil {
			return err
		}
		updated, err := applyItemChanges(item, changes)
		if err != nil {
			return err
		}
		if err := validateItem(updated); err != nil {
			return err
		}
		return tx.SaveItem(ctx, updated)
	})
}

// OnItemDeleted removes an item; its allocations go with the rebuild.
func (s *Service) OnItemDeleted(ctx context.Context, ref ItemRef) (*Summary, error) {
	current, err := s.store.GetItem(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, current.Header().ClientID, "item_deleted", func(ctx context.Context, tx Store) error {
		return tx.DeleteItem(ctx, ref)
	})
}

func validateItem(item ChargeableItem) error {
	h := item.Header()
	if h.ID == "" || h.ClientID == "" {
		return fmt.Errorf("%w: item id and client id are required", ErrInvalidRecord)
	}
	switch it := item.(type) {
	case Job:
		if it.Hours.IsNegative() {
			return &InvalidAmountError{Field: "hours", Value: it.Hours.String(), Reason: "negative"}
		}
	case Material:
		if it.Cost.IsNegative() {
			return &InvalidAmountError{Field: "cost", Value: it.Cost.String(), Reason: "negative"}
		}
	}
	return nil
}

func applyItemChanges(item ChargeableItem, changes ItemChanges) (ChargeableItem, error) {
	switch it := item.(type) {
	case Job:
		if changes.Cost != nil {
			return nil, &InvalidAmountError{Field: "cost", Value: changes.Cost.String(), Reason: "jobs are priced by hours"}
		}
		if changes.Date != nil {
			it.Date = *changes.Date
		}
		if changes.Hours != nil {
			it.Hours = *changes.Hours
		}
		return it, nil
	case Material:
		if changes.Hours != nil {
			return nil, &InvalidAmountError{Field: "hours", Value: changes.Hours.String(), Reason: "materials have a fixed cost"}
		}
		if changes.Date != nil {
			it.Date = *changes.Date
		}
		if changes.Cost != nil {
			it.Cost = changes.Cost.Round()
		}
		return it, nil
	default:
		panic(fmt.Sprintf("settlement: unknown chargeable item %T", item))
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// OnPaymentCreated persists a payment and reconciles its client.
// Duplicate detection is the caller's job.
func (s *Service) OnPaymentCreated(ctx context.Context, p Payment) (*Summary, error) {
	if p.ID == "" || p.ClientID == "" {
		return nil, fmt.Errorf("%w: payment id and client id are required", ErrInvalidRecord)
	}
	if err := validatePaymentAmount(p.Amount); err != nil {
		return nil, err
	}
	p.Amount = p.Amount.Round()

	return s.mutate(ctx, p.ClientID, "payment_created", func(ctx context.Context, tx Store) error {
		if _, err := tx.GetClient(ctx, p.ClientID); err != nil {
			return err
		}
		if _, err := tx.GetPayment(ctx, p.ID); err == nil {
			return fmt.Errorf("%w: payment %s", ErrAlreadyExists, p.ID)
		} else if !errors.Is(err, ErrPaymentNotFound) {
			return err
		}
		return tx.SavePayment(ctx, p)
	})
}

// OnPaymentUpdated changes a payment's date or amount and reconciles.
func (s *Service) OnPaymentUpdated(ctx context.Context, id PaymentID, changes PaymentChanges) (*Summary, error) {
	if changes.Amount != nil {
		if err := validatePaymentAmount(*changes.Amount); err != nil {
			return nil, err
		}
	}
	current, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, current.ClientID, "payment_updated", func(ctx context.Context, tx Store) error {
		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if changes.Date != nil {
			p.Date = *changes.Date
		}
		if changes.Amount != nil {
			p.Amount = changes.Amount.Round()
		}
		return tx.SavePayment(ctx, *p)
	})
}

// OnPaymentDeleted removes a payment. Items it covered may revert to
// unsettled.
func (s *Service) OnPaymentDeleted(ctx context.Context, id PaymentID) (*Summary, error) {
	current, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, current.ClientID, "payment_deleted", func(ctx context.Context, tx Store) error {
		return tx.DeletePayment(ctx, id)
	})
}

func validatePaymentAmount(m Money) error {
	if !m.IsPositive() {
		return &InvalidAmountError{Field: "amount", Value: m.String(), Reason: "must be positive"}
	}
	return nil
}

// =============================================================================
// MANUAL SETTLEMENT
// =============================================================================

// ForceSettleItems settles items on request, bypassing payment dates.
//
// The request is charged against the client's available credit; if the
// credit does not cover every unsettled item the whole request fails with
// InsufficientCreditError and nothing changes. Accepted items are marked
// forced, which moves them to the front of the matching queue until a later
// run leaves them unsettled, and the client is reconciled.
func (s *Service) ForceSettleItems(ctx context.Context, clientID ClientID, refs []ItemRef) (*Summary, error) {
	return s.mutate(ctx, clientID, "force_settle", func(ctx context.Context, tx Store) error {
		client, allItems, payments, allocs, err := loadClientState(ctx, tx, clientID)
		if err != nil {
			return err
		}

		seen := make(map[ItemRef]bool, len(refs))
		requested := make([]ChargeableItem, 0, len(refs))
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			item, err := tx.GetItem(ctx, ref)
			if err != nil {
				return err
			}
			if item.Header().ClientID != clientID {
				return fmt.Errorf("%s: %w", ref, ErrClientMismatch)
			}
			requested = append(requested, item)
		}

		balances := s.engine.Calc.Compute(*client, allItems, payments, allocs)
		if err := CheckManualSettlement(clientID, balances, requested, client.HourlyRate); err != nil {
			return err
		}

		for _, item := range requested {
			if item.Header().Settled {
				continue
			}
			if err := tx.MarkForced(ctx, item.Ref(), true); err != nil {
				return fmt.Errorf("mark forced %s: %w", item.Ref(), err)
			}
		}
		return nil
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile rebuilds one client without any other change.
func (s *Service) Reconcile(ctx context.Context, clientID ClientID) (*Summary, error) {
	return s.mutate(ctx, clientID, "reconcile", func(context.Context, Store) error { return nil })
}

// ReconcileAll reconciles every client, continuing past failures. It
// returns the number of clients reconciled and the joined errors.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}

	var errs []error
	done := 0
	for _, c := range clients {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.Reconcile(ctx, c.ID); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", c.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// =============================================================================
// READS
// =============================================================================

// GetClientSummary returns the summary of the last committed reconciliation.
// It takes the client lock so it never observes a half-applied mutation.
func (s *Service) GetClientSummary(ctx context.Context, clientID ClientID) (*Summary, error) {
	var summary *Summary
	err := s.locks.WithClientLock(ctx, clientID, func(ctx context.Context) error {
		client, items, payments, allocs, err := loadClientState(ctx, s.store, clientID)
		if err != nil {
			return err
		}
		b := s.engine.Calc.Compute(*client, items, payments, allocs)
		sum := Project(*client, b, payments, allocs)
		summary = &sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListSummaries returns a summary for every client.
func (s *Service) ListSummaries(ctx context.Context) ([]Summary, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(clients))
	for _, c := range clients {
		sum, err := s.GetClientSummary(ctx, c.ID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				continue // deleted between list and read
			}
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

// PendingItems lists the client's unsettled items with their balances.
func (s *Service) PendingItems(ctx context.Context, clientID ClientID) ([]PendingItem, error) {
	var out []PendingItem
	err := s.locks.WithClientLock(ctx, clientID, func(ctx context.Context) error {
		client, items, payments, allocs, err := loadClientState(ctx, s.store, clientID)
		if err != nil {
			return err
		}
		b := s.engine.Calc.Compute(*client, items, payments, allocs)
		out = PendingItems(*client, b, items)
		return nil
	})
	return out, err
}

// Allocations lists the client's allocations. When settled is non-nil only
// allocations of items with that settled state are returned.
func (s *Service) Allocations(ctx context.Context, clientID ClientID, settled *bool) ([]Allocation, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	allocs, err := s.store.ListAllocations(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if settled == nil {
		return allocs, nil
	}
	items, err := s.store.ListItems(ctx, clientID)
	if err != nil {
		return nil, err
	}
	state := make(map[ItemRef]bool, len(items))
	for _, it := range items {
		state[it.Ref()] = it.Header().Settled
	}
	out := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		if state[a.Item] == *settled {
			out = append(out, a)
		}
	}
	return out, nil
}

// Runs returns the most recent reconciliation runs for a client.
func (s *Service) Runs(ctx context.Context, clientID ClientID, limit int) ([]ReconciliationRun, error) {
	rs, ok := s.store.(RunStore)
	if !ok {
		return nil, nil
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return rs.ListReconciliationRuns(ctx, clientID, limit)
}

// PruneRuns trims every client's run log to its newest keep entries.
// keep <= 0 disables pruning.
func (s *Service) PruneRuns(ctx context.Context, keep int) (int, error) {
	p, ok := s.store.(RunPruner)
	if !ok || keep <= 0 {
		return 0, nil
	}
	n, err := p.PruneReconciliationRuns(ctx, keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Int("pruned", n).Int("keep", keep).Msg("run log pruned")
	}
	return n, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

type mutation func(ctx context.Context, tx Store) error

// mutate runs fn and a reconciliation in one transaction under the client
// lock, then projects the committed result.
func (s *Service) mutate(ctx context.Context, clientID ClientID, op string, fn mutation) (*Summary, error) {
	started := time.Now()
	var result *Result

	err := s.locks.WithClientLock(ctx, clientID, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			res, err := s.engine.Reconcile(ctx, tx, clientID)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		s.recordFailure(ctx, clientID, op, started, err)
		return nil, err
	}

	ReconciliationsTotal.WithLabelValues(string(RunCompleted)).Inc()
	s.logger.Info().
		Str("op", op).
		Str("client_id", string(clientID)).
		Int("allocations", len(result.Allocations)).
		Int("flipped", len(result.Flips)).
		Dur("took", time.Since(started)).
		Msg("client reconciled")

	sum := Project(result.Client, result.Balances, result.Payments, result.Allocations)
	return &sum, nil
}

// recordFailure logs a failed operation. Storage failures during a run are
// also counted and, when possible, written to the run log outside the
// rolled-back transaction.
func (s *Service) recordFailure(ctx context.Context, clientID ClientID, op string, started time.Time, err error) {
	if !errors.Is(err, ErrReconciliationFailed) {
		s.logger.Debug().Err(err).Str("op", op).Str("client_id", string(clientID)).Msg("mutation rejected")
		return
	}

	ReconciliationsTotal.WithLabelValues(string(RunFailed)).Inc()
	s.logger.Error().Err(err).Str("op", op).Str("client_id", string(clientID)).Msg("reconciliation failed")

	rs, ok := s.store.(RunStore)
	if !ok {
		return
	}
	run := ReconciliationRun{
		ID:          newRunID(),
		ClientID:    clientID,
		Status:      RunFailed,
		Error:       err.Error(),
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	if saveErr := rs.SaveReconciliationRun(ctx, run); saveErr != nil {
		s.logger.Warn().Err(saveErr).Str("client_id", string(clientID)).Msg("could not record failed run")
	}
}

func loadClientState(ctx context.Context, store Store, clientID ClientID) (*Client, []ChargeableItem, []Payment, []Allocation, error) {
	client, err := store.GetClient(ctx, clientID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	items, err := store.ListItems(ctx, clientID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("list items: %w", err)
	}
	payments, err := store.ListPayments(ctx, clientID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("list payments: %w", err)
	}
	allocs, err := store.ListAllocations(ctx, clientID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("list allocations: %w", err)
	}
	return client, items, payments, allocs, nil
}
