/*
summary.go - Read-side projection of a client's balances

PURPOSE:
  Turns the output of a reconciliation run into the shapes callers see:
  the Summary returned by every mutation, and the list of pending items
  with what is left to pay on each.

RULES:
  - No arithmetic beyond grouping; every figure comes from Balances or
    the allocation set
  - PaymentsUsage follows payment FIFO order and omits unused payments
  - Pending items keep matching order (date, id, kind)

SEE ALSO:
  - balance.go: Computes the figures projected here
  - service.go: Returns a Summary after each mutation
*/
package settlement

import "github.com/shopspring/decimal"

// =============================================================================
// SUMMARY - Client-facing projection
// =============================================================================

// Summary is the response shape returned to the CRUD layer after a mutation.
type Summary struct {
	ClientID             ClientID
	Name                 string
	HourlyRate           Money
	PendingHours         decimal.Decimal
	PendingMaterialsCost Money
	TotalDebt            Money
	AvailableCredit      Money
	TotalPaid            Money
	TotalAllocated       Money
	PaymentsUsage        []PaymentUsage
}

// PaymentUsage is how much of one payment has been applied to items.
type PaymentUsage struct {
	PaymentID  PaymentID
	Date       Date
	Amount     Money
	AmountUsed Money
}

// Project builds a Summary. It performs no computation beyond grouping.
// Payments appear in FIFO order; payments with no allocation are omitted.
func Project(client Client, b Balances, payments []Payment, allocations []Allocation) Summary {
	used := make(map[PaymentID]Money, len(payments))
	for _, a := range allocations {
		used[a.PaymentID] = used[a.PaymentID].Add(a.AmountUsed)
	}

	usage := make([]PaymentUsage, 0, len(used))
	for _, p := range paymentOrder(payments) {
		u, ok := used[p.ID]
		if !ok || !u.IsPositive() {
			continue
		}
		usage = append(usage, PaymentUsage{
			PaymentID:  p.ID,
			Date:       p.Date,
			Amount:     p.Amount,
			AmountUsed: u,
		})
	}

	return Summary{
		ClientID:             client.ID,
		Name:                 client.Name,
		HourlyRate:           client.HourlyRate,
		PendingHours:         b.PendingHours,
		PendingMaterialsCost: b.PendingMaterialsCost,
		TotalDebt:            b.TotalDebt,
		AvailableCredit:      b.AvailableCredit,
		TotalPaid:            b.TotalPaid,
		TotalAllocated:       b.TotalAllocated,
		PaymentsUsage:        usage,
	}
}

// =============================================================================
// PENDING ITEMS - Unsettled items with what is left to pay
// =============================================================================

// PendingItem is an unsettled item and its outstanding balance.
type PendingItem struct {
	Item        ChargeableItem
	Cost        Money
	Allocated   Money
	Outstanding Money
}

// PendingItems lists unsettled items oldest first.
func PendingItems(client Client, b Balances, items []ChargeableItem) []PendingItem {
	sorted := make([]ChargeableItem, len(items))
	copy(sorted, items)
	SortItems(sorted)

	var out []PendingItem
	for _, item := range sorted {
		if item.Header().Settled {
			continue
		}
		out = append(out, PendingItem{
			Item:        item,
			Cost:        CostOf(item, client.HourlyRate),
			Allocated:   b.AllocatedTo(item.Ref()),
			Outstanding: b.Outstanding(item, client.HourlyRate),
		})
	}
	return out
}
