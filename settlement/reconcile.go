/*
reconcile.go - FIFO payment allocation and settlement

PURPOSE:
  Rebuilds a client's allocation set from scratch and derives every item's
  settled flag from it. Nothing is patched incrementally: each run discards
  the previous allocations and matches payments to items again, so the
  result depends only on the current clients, items and payments.

ALGORITHM:
  1. Load client, items and payments.
  2. Queue items: forced items first, then everything else; each group is
     ordered by (date, id).
  3. Order payments by (date, id), each with remaining = amount.
  4. For every queued item, walk the payments taking min(remaining, need)
     until the item is covered or the payments run out. Partial coverage
     keeps its partial allocations.
  5. settled = allocated >= cost. Money is exact at cent scale, so this is
     the half-cent tolerance with no float involved. A previously settled
     item whose payments changed can flip back to unsettled here. A forced
     item that comes out unsettled loses its priority and rejoins FIFO.
  6. Persist: replace the allocation set, write changed flags and the
     client's cached credit.

EXAMPLE:
  Items D1=100, D2=50, D3=30, one payment of 120 dated before all three:

    D1: 100 from payment   settled
    D2:  20 from payment   not settled (30 outstanding)
    D3:   0                not settled
    credit: 0

ATOMICITY:
  All loads happen before the first write. Reconcile writes through the
  Store it is given; the Service hands it a transaction view so that a
  failure anywhere rolls the whole run back (see service.go).

SEE ALSO:
  - balance.go: Credit and debt derived from the result
  - coordinator.go: Serializes runs per client
*/
package settlement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// PLAN - Pure matching result
// =============================================================================

// Flip records an item whose settled flag changed.
type Flip struct {
	Item    ItemRef
	Settled bool
}

// Plan is the outcome of matching, before anything is persisted.
type Plan struct {
	// Items in matching order, with recomputed settled flags.
	Items []ChargeableItem

	// Allocations in matching order.
	Allocations []Allocation

	// Allocated totals per item (zero entries included).
	Allocated map[ItemRef]Money

	// Flips lists items whose settled flag differs from the stored one.
	Flips []Flip

	// Released lists forced items that came out unsettled; their forced
	// flag is cleared.
	Released []ItemRef

	// Unallocated is what is left on the payments after matching.
	Unallocated Money
}

// Allocate matches payments to items oldest-first. It has no side effects.
func Allocate(clientID ClientID, items []ChargeableItem, payments []Payment, rate Money) Plan {
	queue := matchingOrder(items)
	pays := paymentOrder(payments)

	remaining := make([]Money, len(pays))
	for i, p := range pays {
		remaining[i] = p.Amount.ClampNonNegative()
	}

	plan := Plan{
		Items:     make([]ChargeableItem, 0, len(queue)),
		Allocated: make(map[ItemRef]Money, len(queue)),
	}

	for _, item := range queue {
		h := item.Header()
		ref := item.Ref()
		cost := CostOf(item, rate)
		need := cost
		allocated := ZeroMoney

		for i, p := range pays {
			if !need.IsPositive() {
				break
			}
			if !remaining[i].IsPositive() {
				continue
			}
			apply := remaining[i].Min(need)
			plan.Allocations = append(plan.Allocations, Allocation{
				ID:          AllocationIDFor(clientID, p.ID, ref),
				ClientID:    clientID,
				PaymentID:   p.ID,
				Item:        ref,
				AmountUsed:  apply,
				PaymentDate: p.Date,
				ItemDate:    h.Date,
			})
			remaining[i] = remaining[i].Sub(apply)
			need = need.Sub(apply)
			allocated = allocated.Add(apply)
		}

		settled := !allocated.LessThan(cost)
		if settled != h.Settled {
			plan.Flips = append(plan.Flips, Flip{Item: ref, Settled: settled})
		}
		forced := h.Forced
		if forced && !settled {
			forced = false
			plan.Released = append(plan.Released, ref)
		}
		plan.Allocated[ref] = allocated
		plan.Items = append(plan.Items, withFlags(item, settled, forced))
	}

	plan.Unallocated = ZeroMoney
	for _, r := range remaining {
		plan.Unallocated = plan.Unallocated.Add(r)
	}
	return plan
}

// matchingOrder returns forced items first, each group in FIFO order.
func matchingOrder(items []ChargeableItem) []ChargeableItem {
	out := make([]ChargeableItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].Header().Forced, out[j].Header().Forced
		if fi != fj {
			return fi
		}
		return itemBefore(out[i], out[j])
	})
	return out
}

func paymentOrder(payments []Payment) []Payment {
	out := make([]Payment, len(payments))
	copy(out, payments)
	sort.SliceStable(out, func(i, j int) bool { return paymentBefore(out[i], out[j]) })
	return out
}

// =============================================================================
// ENGINE - Load, match, persist
// =============================================================================

// Result is returned by a successful run.
type Result struct {
	Client      Client
	Items       []ChargeableItem
	Payments    []Payment
	Allocations []Allocation
	Flips       []Flip
	Balances    Balances
	Run         ReconciliationRun
}

// Engine runs reconciliations. The zero value is usable.
type Engine struct {
	Logger zerolog.Logger
	Calc   BalanceCalculator

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an engine logging to logger.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{Logger: logger.With().Str("component", "engine").Logger()}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Reconcile rebuilds the allocation set and settled flags for one client.
//
// A missing client is reported as ErrClientNotFound. Any other load or
// write failure is wrapped in ReconciliationError. Callers that need the
// write to be atomic must pass a transaction view (Service does).
func (e *Engine) Reconcile(ctx context.Context, store Store, clientID ClientID) (*Result, error) {
	started := e.now()
	timer := newRunTimer()

	client, err := store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		return nil, &ReconciliationError{ClientID: clientID, Stage: "load_client", Err: err}
	}
	items, err := store.ListItems(ctx, clientID)
	if err != nil {
		return nil, &ReconciliationError{ClientID: clientID, Stage: "load_items", Err: err}
	}
	payments, err := store.ListPayments(ctx, clientID)
	if err != nil {
		return nil, &ReconciliationError{ClientID: clientID, Stage: "load_payments", Err: err}
	}

	plan := Allocate(clientID, items, payments, client.HourlyRate)
	balances := e.Calc.Compute(*client, plan.Items, payments, plan.Allocations)

	if err := store.ReplaceAllocations(ctx, clientID, plan.Allocations); err != nil {
		return nil, &ReconciliationError{ClientID: clientID, Stage: "replace_allocations", Err: err}
	}
	for _, f := range plan.Flips {
		if err := store.MarkSettled(ctx, f.Item, f.Settled); err != nil {
			return nil, &ReconciliationError{ClientID: clientID, Stage: "mark_settled", Err: err}
		}
	}
	for _, ref := range plan.Released {
		if err := store.MarkForced(ctx, ref, false); err != nil {
			return nil, &ReconciliationError{ClientID: clientID, Stage: "clear_forced", Err: err}
		}
	}
	if err := store.SetAvailableCredit(ctx, clientID, balances.AvailableCredit); err != nil {
		return nil, &ReconciliationError{ClientID: clientID, Stage: "cache_credit", Err: err}
	}

	run := ReconciliationRun{
		ID:              newRunID(),
		ClientID:        clientID,
		Status:          RunCompleted,
		Allocations:     len(plan.Allocations),
		Flipped:         len(plan.Flips),
		AvailableCredit: balances.AvailableCredit,
		TotalDebt:       balances.TotalDebt,
		StartedAt:       started,
		CompletedAt:     e.now(),
	}
	if rs, ok := store.(RunStore); ok {
		if err := rs.SaveReconciliationRun(ctx, run); err != nil {
			return nil, &ReconciliationError{ClientID: clientID, Stage: "record_run", Err: err}
		}
	}

	timer.observe()
	AllocationsWritten.Add(float64(len(plan.Allocations)))
	for _, f := range plan.Flips {
		SettlementFlips.WithLabelValues(flipDirection(f)).Inc()
	}

	e.Logger.Debug().
		Str("client_id", string(clientID)).
		Int("items", len(plan.Items)).
		Int("payments", len(payments)).
		Int("allocations", len(plan.Allocations)).
		Int("flipped", len(plan.Flips)).
		Str("available_credit", balances.AvailableCredit.String()).
		Str("total_debt", balances.TotalDebt.String()).
		Msg("reconciled")

	client.AvailableCredit = balances.AvailableCredit
	return &Result{
		Client:      *client,
		Items:       plan.Items,
		Payments:    paymentOrder(payments),
		Allocations: plan.Allocations,
		Flips:       plan.Flips,
		Balances:    balances,
		Run:         run,
	}, nil
}

func newRunID() string { return uuid.NewString() }

func flipDirection(f Flip) string {
	if f.Settled {
		return "settled"
	}
	return "reverted"
}
