/*
balance.go - Client credit and outstanding debt

PURPOSE:
  Derives a client's financial position from items, payments and the
  allocation set. Used by the Engine after each run (to cache credit) and by
  the summary projection.

FORMULAS:
  totalPaid       = sum(payment.amount)
  totalAllocated  = sum(allocation.amountUsed)
  availableCredit = max(0, totalPaid - totalAllocated)
  totalDebt       = sum over unsettled items of max(0, cost - allocated)

  pendingHours is the outstanding money of unsettled jobs expressed at the
  client's rate, rounded per job to two places. A zero rate yields zero
  hours.

MANUAL SETTLEMENT GUARD:
  CheckManualSettlement refuses a force-settle request when the items cost
  more than the available credit. Items are charged against the credit in
  request order, so two items that each fit alone but not together fail.

SEE ALSO:
  - reconcile.go: Produces the allocation set
  - summary.go: Presents these figures
*/
package settlement

import "github.com/shopspring/decimal"

// =============================================================================
// BALANCES
// =============================================================================

type Balances struct {
	TotalPaid       Money
	TotalAllocated  Money
	AvailableCredit Money
	TotalDebt       Money

	// PendingHours is outstanding job money divided by the hourly rate.
	PendingHours decimal.Decimal

	// PendingMaterialsCost is outstanding material money.
	PendingMaterialsCost Money

	// Allocated holds per-item allocation totals.
	Allocated map[ItemRef]Money
}

// AllocatedTo returns the total allocated to ref.
func (b Balances) AllocatedTo(ref ItemRef) Money {
	if m, ok := b.Allocated[ref]; ok {
		return m
	}
	return ZeroMoney
}

// Outstanding returns what remains to be paid on item.
func (b Balances) Outstanding(item ChargeableItem, rate Money) Money {
	return CostOf(item, rate).Sub(b.AllocatedTo(item.Ref())).ClampNonNegative()
}

// BalanceCalculator computes Balances. It holds no state.
type BalanceCalculator struct{}

// Compute derives the balances of client from its records.
func (BalanceCalculator) Compute(client Client, items []ChargeableItem, payments []Payment, allocations []Allocation) Balances {
	b := Balances{
		TotalPaid:            ZeroMoney,
		TotalAllocated:       ZeroMoney,
		TotalDebt:            ZeroMoney,
		PendingHours:         decimal.Zero,
		PendingMaterialsCost: ZeroMoney,
		Allocated:            make(map[ItemRef]Money, len(items)),
	}

	for _, p := range payments {
		b.TotalPaid = b.TotalPaid.Add(p.Amount)
	}
	for _, a := range allocations {
		b.TotalAllocated = b.TotalAllocated.Add(a.AmountUsed)
		b.Allocated[a.Item] = b.AllocatedTo(a.Item).Add(a.AmountUsed)
	}
	b.AvailableCredit = b.TotalPaid.Sub(b.TotalAllocated).ClampNonNegative()

	for _, item := range items {
		if item.Header().Settled {
			continue
		}
		remaining := b.Outstanding(item, client.HourlyRate)
		if remaining.IsZero() {
			continue
		}
		b.TotalDebt = b.TotalDebt.Add(remaining)

		switch item.(type) {
		case Job:
			b.PendingHours = b.PendingHours.Add(remaining.Ratio(client.HourlyRate))
		case Material:
			b.PendingMaterialsCost = b.PendingMaterialsCost.Add(remaining)
		}
	}
	return b
}

// =============================================================================
// MANUAL SETTLEMENT GUARD
// =============================================================================

// CheckManualSettlement verifies that the available credit covers items.
// Already settled items cost nothing and are skipped.
func CheckManualSettlement(clientID ClientID, b Balances, items []ChargeableItem, rate Money) error {
	left := b.AvailableCredit
	for _, item := range items {
		if item.Header().Settled {
			continue
		}
		cost := CostOf(item, rate)
		if cost.GreaterThan(left) {
			return &InsufficientCreditError{
				ClientID:  clientID,
				Item:      item.Ref(),
				Cost:      cost,
				Available: left,
				Shortfall: cost.Sub(left),
			}
		}
		left = left.Sub(cost)
	}
	return nil
}
