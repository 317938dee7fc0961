package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconciledBalances(client Client, items []ChargeableItem, payments []Payment) Balances {
	plan := Allocate(client.ID, items, payments, client.HourlyRate)
	return BalanceCalculator{}.Compute(client, plan.Items, payments, plan.Allocations)
}

func TestCompute_JobAndMaterialExample(t *testing.T) {
	// GIVEN: rate 20, job 5h (100) on Jan 1, material 40 on Jan 2,
	//        payment 100 on Jan 1
	client := Client{ID: testClient, HourlyRate: MustMoney("20")}
	items := []ChargeableItem{job("j1", jan(1), "5"), material("m1", jan(2), "40")}
	payments := []Payment{payment("p1", jan(1), "100")}

	// WHEN
	b := reconciledBalances(client, items, payments)

	// THEN
	assert.Equal(t, "40.00", b.TotalDebt.String())
	assert.Equal(t, "0.00", b.AvailableCredit.String())
	assert.Equal(t, "100.00", b.TotalPaid.String())
	assert.Equal(t, "100.00", b.TotalAllocated.String())
	assert.True(t, b.PendingHours.IsZero())
	assert.Equal(t, "40.00", b.PendingMaterialsCost.String())
}

func TestCompute_PartialJobReducesPendingHours(t *testing.T) {
	// GIVEN: a 4h job at 25/h (100) with 60 paid
	client := Client{ID: testClient, HourlyRate: MustMoney("25")}
	items := []ChargeableItem{job("j1", jan(1), "4")}
	payments := []Payment{payment("p1", jan(1), "60")}

	b := reconciledBalances(client, items, payments)

	// THEN: 40 outstanding = 1.6 hours
	assert.Equal(t, "40.00", b.TotalDebt.String())
	assert.Equal(t, "1.60", b.PendingHours.StringFixed(2))
	assert.True(t, b.PendingMaterialsCost.IsZero())
}

func TestCompute_ZeroRateYieldsZeroHours(t *testing.T) {
	client := Client{ID: testClient, HourlyRate: ZeroMoney}
	b := reconciledBalances(client, []ChargeableItem{job("j1", jan(1), "8")}, nil)

	assert.True(t, b.PendingHours.IsZero())
	assert.True(t, b.TotalDebt.IsZero(), "free job costs nothing")
}

func TestCompute_CreditConservation(t *testing.T) {
	client := Client{ID: testClient, HourlyRate: MustMoney("10")}
	items := []ChargeableItem{job("j1", jan(1), "1"), material("m1", jan(2), "5.55")}
	payments := []Payment{payment("p1", jan(1), "20"), payment("p2", jan(3), "3.33")}

	b := reconciledBalances(client, items, payments)

	// totalPaid - totalAllocated == availableCredit, never negative
	assert.True(t, b.TotalPaid.Sub(b.TotalAllocated).Equal(b.AvailableCredit))
	assert.Equal(t, "7.78", b.AvailableCredit.String())
	assert.True(t, b.TotalDebt.IsZero())
}

func TestCompute_SkipsSettledItems(t *testing.T) {
	// A settled item with no allocation (forced or stale) adds no debt.
	settled := material("m1", jan(1), "50")
	settled.Settled = true

	b := BalanceCalculator{}.Compute(Client{ID: testClient}, []ChargeableItem{settled}, nil, nil)
	assert.True(t, b.TotalDebt.IsZero())
}

func TestCompute_DebtMonotonicity(t *testing.T) {
	client := Client{ID: testClient, HourlyRate: MustMoney("20")}
	items := []ChargeableItem{material("m1", jan(1), "30")}
	payments := []Payment{payment("p1", jan(1), "10")}

	before := reconciledBalances(client, items, payments)
	require.True(t, before.AvailableCredit.IsZero())

	// WHEN: a new unsettled item arrives and there is no credit to absorb it
	after := reconciledBalances(client, append(items, job("j2", jan(2), "2")), payments)

	// THEN: debt grows by exactly its cost
	assert.Equal(t, before.TotalDebt.Add(MustMoney("40")).String(), after.TotalDebt.String())
}

func TestCompute_NewItemConsumesCredit(t *testing.T) {
	client := Client{ID: testClient, HourlyRate: MustMoney("20")}
	payments := []Payment{payment("p1", jan(1), "100")}

	before := reconciledBalances(client, nil, payments)
	after := reconciledBalances(client, []ChargeableItem{material("m1", jan(2), "30")}, payments)

	assert.Equal(t, "100.00", before.AvailableCredit.String())
	assert.Equal(t, "70.00", after.AvailableCredit.String())
	assert.True(t, after.TotalDebt.IsZero())
}

// =============================================================================
// MANUAL SETTLEMENT GUARD
// =============================================================================

func TestCheckManualSettlement_WithinCredit(t *testing.T) {
	b := Balances{AvailableCredit: MustMoney("50")}
	err := CheckManualSettlement(testClient, b, []ChargeableItem{material("m1", jan(1), "50")}, ZeroMoney)
	assert.NoError(t, err, "cost equal to credit is allowed")
}

func TestCheckManualSettlement_Shortfall(t *testing.T) {
	b := Balances{AvailableCredit: MustMoney("30")}
	item := job("j1", jan(1), "2")

	err := CheckManualSettlement(testClient, b, []ChargeableItem{item}, MustMoney("20"))

	require.ErrorIs(t, err, ErrInsufficientCredit)
	var credErr *InsufficientCreditError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, item.Ref(), credErr.Item)
	assert.Equal(t, "40.00", credErr.Cost.String())
	assert.Equal(t, "30.00", credErr.Available.String())
	assert.Equal(t, "10.00", credErr.Shortfall.String())
}

func TestCheckManualSettlement_Cumulative(t *testing.T) {
	// GIVEN: two items that each fit alone but not together
	b := Balances{AvailableCredit: MustMoney("50")}
	items := []ChargeableItem{material("m1", jan(1), "30"), material("m2", jan(2), "30")}

	err := CheckManualSettlement(testClient, b, items, ZeroMoney)

	var credErr *InsufficientCreditError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ItemID("m2"), credErr.Item.ID)
	assert.Equal(t, "20.00", credErr.Available.String())
	assert.Equal(t, "10.00", credErr.Shortfall.String())
}

func TestCheckManualSettlement_SkipsSettled(t *testing.T) {
	settled := material("m1", jan(1), "500")
	settled.Settled = true

	err := CheckManualSettlement(testClient, Balances{}, []ChargeableItem{settled}, ZeroMoney)
	assert.NoError(t, err)
}

// =============================================================================
// SUMMARY PROJECTION
// =============================================================================

func TestProject_PaymentsUsageInFIFOOrder(t *testing.T) {
	client := Client{ID: testClient, Name: "Acme", HourlyRate: MustMoney("25")}
	items := []ChargeableItem{job("j1", jan(3), "4")}
	payments := []Payment{
		payment("p3", jan(9), "15"), // unused
		payment("p2", jan(5), "40"),
		payment("p1", jan(4), "60"),
	}
	plan := Allocate(client.ID, items, payments, client.HourlyRate)
	b := BalanceCalculator{}.Compute(client, plan.Items, payments, plan.Allocations)

	s := Project(client, b, payments, plan.Allocations)

	assert.Equal(t, testClient, s.ClientID)
	assert.Equal(t, "Acme", s.Name)
	require.Len(t, s.PaymentsUsage, 2, "unused payments are omitted")
	assert.Equal(t, PaymentID("p1"), s.PaymentsUsage[0].PaymentID)
	assert.Equal(t, "60.00", s.PaymentsUsage[0].AmountUsed.String())
	assert.Equal(t, PaymentID("p2"), s.PaymentsUsage[1].PaymentID)
	assert.Equal(t, "40.00", s.PaymentsUsage[1].AmountUsed.String())
	assert.Equal(t, "15.00", s.AvailableCredit.String())
}

func TestPendingItems(t *testing.T) {
	client := Client{ID: testClient, HourlyRate: MustMoney("20")}
	items := []ChargeableItem{
		material("m2", jan(3), "30"),
		job("j1", jan(1), "5"),
		material("m1", jan(2), "50"),
	}
	payments := []Payment{payment("p1", jan(1), "120")}
	plan := Allocate(client.ID, items, payments, client.HourlyRate)
	b := BalanceCalculator{}.Compute(client, plan.Items, payments, plan.Allocations)

	pending := PendingItems(client, b, plan.Items)

	require.Len(t, pending, 2)
	assert.Equal(t, ItemID("m1"), pending[0].Item.Header().ID)
	assert.Equal(t, "20.00", pending[0].Allocated.String())
	assert.Equal(t, "30.00", pending[0].Outstanding.String())
	assert.Equal(t, ItemID("m2"), pending[1].Item.Header().ID)
	assert.Equal(t, "30.00", pending[1].Outstanding.String())
}
