package settlement_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/settlement/store"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var errDiskFull = errors.New("disk full")

// faultyStore fails allocation writes on demand.
type faultyStore struct {
	*store.TxMemory
	failReplace bool
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(settlement.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(tx settlement.Store) error {
		return fn(&faultyView{Store: tx, fail: f.failReplace})
	})
}

type faultyView struct {
	settlement.Store
	fail bool
}

func (v *faultyView) ReplaceAllocations(ctx context.Context, id settlement.ClientID, allocs []settlement.Allocation) error {
	if v.fail {
		return errDiskFull
	}
	return v.Store.ReplaceAllocations(ctx, id, allocs)
}

func newService(t *testing.T) (*settlement.Service, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	return settlement.NewService(mem, nil, nil, zerolog.Nop()), mem
}

func day(d int) settlement.Date { return settlement.NewDate(2025, time.January, d) }

func money(s string) settlement.Money { return settlement.MustMoney(s) }

func newJob(client, id string, date settlement.Date, hours string) settlement.Job {
	return settlement.Job{
		ItemHeader: settlement.ItemHeader{ID: settlement.ItemID(id), ClientID: settlement.ClientID(client), Date: date},
		Hours:      decimal.RequireFromString(hours),
	}
}

func newMaterial(client, id string, date settlement.Date, cost string) settlement.Material {
	return settlement.Material{
		ItemHeader: settlement.ItemHeader{ID: settlement.ItemID(id), ClientID: settlement.ClientID(client), Date: date},
		Cost:       money(cost),
	}
}

func newPayment(client, id string, date settlement.Date, amount string) settlement.Payment {
	return settlement.Payment{ID: settlement.PaymentID(id), ClientID: settlement.ClientID(client), Date: date, Amount: money(amount)}
}

func createClient(t *testing.T, svc *settlement.Service, id, rate string) {
	t.Helper()
	_, err := svc.CreateClient(context.Background(), settlement.Client{ID: settlement.ClientID(id), Name: id, HourlyRate: money(rate)})
	require.NoError(t, err)
}

func itemSettled(t *testing.T, s settlement.Store, ref settlement.ItemRef) bool {
	t.Helper()
	item, err := s.GetItem(context.Background(), ref)
	require.NoError(t, err)
	return item.Header().Settled
}

func jobRef(id string) settlement.ItemRef {
	return settlement.ItemRef{Kind: settlement.KindJob, ID: settlement.ItemID(id)}
}

func materialRef(id string) settlement.ItemRef {
	return settlement.ItemRef{Kind: settlement.KindMaterial, ID: settlement.ItemID(id)}
}

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestService_JobAndMaterialExample(t *testing.T) {
	// GIVEN: rate 20, job 5h Jan 1, material 40 Jan 2, payment 100 Jan 1
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")

	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)
	_, err = svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(2), "40"))
	require.NoError(t, err)

	// WHEN
	sum, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "100"))
	require.NoError(t, err)

	// THEN
	assert.True(t, itemSettled(t, mem, jobRef("j1")))
	assert.False(t, itemSettled(t, mem, materialRef("m1")))
	assert.Equal(t, "40.00", sum.TotalDebt.String())
	assert.Equal(t, "0.00", sum.AvailableCredit.String())
	assert.Equal(t, "40.00", sum.PendingMaterialsCost.String())
	assert.True(t, sum.PendingHours.IsZero())
	require.Len(t, sum.PaymentsUsage, 1)
	assert.Equal(t, "100.00", sum.PaymentsUsage[0].AmountUsed.String())

	client, err := mem.GetClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "0.00", client.AvailableCredit.String(), "cached credit written with the run")
}

func TestService_Reversal(t *testing.T) {
	// GIVEN: a job settled by one payment, with some spare credit
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")

	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)
	sum, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(2), "130"))
	require.NoError(t, err)
	require.True(t, itemSettled(t, mem, jobRef("j1")))
	require.Equal(t, "30.00", sum.AvailableCredit.String())

	// WHEN: the payment is deleted
	sum, err = svc.OnPaymentDeleted(ctx, "p1")
	require.NoError(t, err)

	// THEN: the job reverts and the credit is gone
	assert.False(t, itemSettled(t, mem, jobRef("j1")))
	assert.Equal(t, "0.00", sum.AvailableCredit.String())
	assert.Equal(t, "100.00", sum.TotalDebt.String())
	assert.Empty(t, sum.PaymentsUsage)

	allocs, err := mem.ListAllocations(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, allocs)
}

func TestService_ItemDeletedReleasesCredit(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")

	_, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "50"))
	require.NoError(t, err)
	sum, err := svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(2), "50"))
	require.NoError(t, err)
	require.True(t, sum.AvailableCredit.IsZero())

	sum, err = svc.OnItemDeleted(ctx, materialRef("m1"))
	require.NoError(t, err)

	assert.Equal(t, "50.00", sum.AvailableCredit.String())
	_, err = mem.GetItem(ctx, materialRef("m1"))
	assert.ErrorIs(t, err, settlement.ErrItemNotFound)
}

func TestService_RateChangeReprices(t *testing.T) {
	// GIVEN: a 5h job at 20/h settled by 100
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "100"))
	require.NoError(t, err)
	require.True(t, itemSettled(t, mem, jobRef("j1")))

	// WHEN: the rate goes to 30
	rate := money("30")
	sum, err := svc.UpdateClient(ctx, "acme", settlement.ClientChanges{HourlyRate: &rate})
	require.NoError(t, err)

	// THEN: the job now costs 150 and is 50 short
	assert.False(t, itemSettled(t, mem, jobRef("j1")))
	assert.Equal(t, "50.00", sum.TotalDebt.String())
	assert.Equal(t, "1.67", sum.PendingHours.StringFixed(2))
	assert.Equal(t, "30.00", sum.HourlyRate.String())
}

func TestService_ItemUpdated(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "10")
	_, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "30"))
	require.NoError(t, err)
	_, err = svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(2), "50"))
	require.NoError(t, err)
	require.False(t, itemSettled(t, mem, materialRef("m1")))

	// WHEN: the material cost drops below what was paid
	cost := money("25")
	sum, err := svc.OnItemUpdated(ctx, materialRef("m1"), settlement.ItemChanges{Cost: &cost})
	require.NoError(t, err)

	assert.True(t, itemSettled(t, mem, materialRef("m1")))
	assert.Equal(t, "5.00", sum.AvailableCredit.String())

	// Hours cannot be set on a material.
	hours := decimal.NewFromInt(2)
	_, err = svc.OnItemUpdated(ctx, materialRef("m1"), settlement.ItemChanges{Hours: &hours})
	assert.ErrorIs(t, err, settlement.ErrInvalidAmount)
}

func TestService_PaymentUpdated(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "60"))
	require.NoError(t, err)
	require.False(t, itemSettled(t, mem, jobRef("j1")))

	amount := money("100")
	sum, err := svc.OnPaymentUpdated(ctx, "p1", settlement.PaymentChanges{Amount: &amount})
	require.NoError(t, err)

	assert.True(t, itemSettled(t, mem, jobRef("j1")))
	assert.True(t, sum.TotalDebt.IsZero())
}

func TestService_Idempotent(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "17.50")
	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "3.25"))
	require.NoError(t, err)
	_, err = svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(1), "19.99"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(3), "45"))
	require.NoError(t, err)

	before, err := mem.ListAllocations(ctx, "acme")
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, "acme")
	require.NoError(t, err)

	after, err := mem.ListAllocations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Item, after[i].Item)
		assert.True(t, before[i].AmountUsed.Equal(after[i].AmountUsed))
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestService_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")

	_, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p0", day(1), "0"))
	assert.ErrorIs(t, err, settlement.ErrInvalidAmount, "payments must be positive")

	bad := newJob("acme", "j1", day(1), "1")
	bad.Hours = decimal.NewFromInt(-1)
	_, err = svc.OnItemCreated(ctx, bad)
	assert.ErrorIs(t, err, settlement.ErrInvalidAmount)

	_, err = svc.OnItemCreated(ctx, newMaterial("nobody", "m1", day(1), "5"))
	assert.ErrorIs(t, err, settlement.ErrClientNotFound)

	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "", day(1), "5"))
	assert.ErrorIs(t, err, settlement.ErrInvalidRecord)
	assert.True(t, settlement.IsClientError(err))

	_, err = svc.OnPaymentDeleted(ctx, "missing")
	assert.ErrorIs(t, err, settlement.ErrPaymentNotFound)

	_, err = svc.Reconcile(ctx, "nobody")
	assert.ErrorIs(t, err, settlement.ErrClientNotFound)
}

func TestService_CreateRejectsTakenIDs(t *testing.T) {
	// GIVEN: acme owns a settled job j1 and payment p1
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	createClient(t, svc, "blue", "20")
	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "100"))
	require.NoError(t, err)

	// WHEN: blue tries to create records under acme's IDs
	_, err = svc.OnItemCreated(ctx, newJob("blue", "j1", day(3), "1"))
	assert.ErrorIs(t, err, settlement.ErrAlreadyExists)
	assert.True(t, settlement.IsClientError(err))

	_, err = svc.OnPaymentCreated(ctx, newPayment("blue", "p1", day(3), "5"))
	assert.ErrorIs(t, err, settlement.ErrAlreadyExists)

	_, err = svc.CreateClient(ctx, settlement.Client{ID: "acme", Name: "Impostor", HourlyRate: money("99")})
	assert.ErrorIs(t, err, settlement.ErrAlreadyExists)

	// THEN: acme is untouched and a fresh run changes nothing
	item, err := mem.GetItem(ctx, jobRef("j1"))
	require.NoError(t, err)
	assert.Equal(t, settlement.ClientID("acme"), item.Header().ClientID)
	assert.True(t, item.Header().Settled)

	p, err := mem.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, settlement.ClientID("acme"), p.ClientID)

	client, err := mem.GetClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", client.Name)
	assert.Equal(t, "20.00", client.HourlyRate.String())

	sum, err := svc.Reconcile(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "0.00", sum.AvailableCredit.String())
	assert.Equal(t, "100.00", sum.TotalAllocated.String())

	// AND: the same id under another kind is a different item
	_, err = svc.OnItemCreated(ctx, newMaterial("blue", "j1", day(3), "5"))
	assert.NoError(t, err)
}

// =============================================================================
// FORCED SETTLEMENT
// =============================================================================

func TestService_ForceSettle_RejectsWithoutCredit(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	_, err := svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(1), "40"))
	require.NoError(t, err)

	_, err = svc.ForceSettleItems(ctx, "acme", []settlement.ItemRef{materialRef("m1")})

	var credErr *settlement.InsufficientCreditError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "40.00", credErr.Shortfall.String())
	assert.False(t, itemSettled(t, mem, materialRef("m1")), "nothing changes")
}

func TestService_ForceSettle_UsesImportedCredit(t *testing.T) {
	// GIVEN: records imported straight into the store, never reconciled.
	// The persisted allocation set is empty so the whole payment is credit.
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "old", day(1), "60")))
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "new", day(9), "60")))
	require.NoError(t, mem.SavePayment(ctx, newPayment("acme", "p1", day(1), "60")))

	// WHEN: the newer item is force-settled
	sum, err := svc.ForceSettleItems(ctx, "acme", []settlement.ItemRef{materialRef("new")})
	require.NoError(t, err)

	// THEN: it jumps the FIFO queue
	assert.True(t, itemSettled(t, mem, materialRef("new")))
	assert.False(t, itemSettled(t, mem, materialRef("old")))
	assert.Equal(t, "60.00", sum.TotalDebt.String())

	forced, err := mem.GetItem(ctx, materialRef("new"))
	require.NoError(t, err)
	assert.True(t, forced.Header().Forced)
}

func TestService_ForceSettle_AllOrNothing(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "a", day(1), "30")))
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "b", day(2), "30")))
	require.NoError(t, mem.SavePayment(ctx, newPayment("acme", "p1", day(1), "50")))

	_, err := svc.ForceSettleItems(ctx, "acme", []settlement.ItemRef{materialRef("a"), materialRef("b")})
	require.ErrorIs(t, err, settlement.ErrInsufficientCredit)

	for _, id := range []string{"a", "b"} {
		item, err := mem.GetItem(ctx, materialRef(id))
		require.NoError(t, err)
		assert.False(t, item.Header().Forced, "%s must not be marked", id)
	}
}

func TestService_ForceSettle_PriorityEndsWhenUnsettled(t *testing.T) {
	// GIVEN: an imported payment force-settles a newer item
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "newer", day(5), "50")))
	require.NoError(t, mem.SavePayment(ctx, newPayment("acme", "p1", day(1), "50")))
	_, err := svc.ForceSettleItems(ctx, "acme", []settlement.ItemRef{materialRef("newer")})
	require.NoError(t, err)

	// WHEN: its payment goes away, an older item appears, then new money
	_, err = svc.OnPaymentDeleted(ctx, "p1")
	require.NoError(t, err)
	_, err = svc.OnItemCreated(ctx, newMaterial("acme", "older", day(2), "50"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p2", day(6), "50"))
	require.NoError(t, err)

	// THEN: FIFO applies again
	assert.True(t, itemSettled(t, mem, materialRef("older")))
	assert.False(t, itemSettled(t, mem, materialRef("newer")))

	item, err := mem.GetItem(ctx, materialRef("newer"))
	require.NoError(t, err)
	assert.False(t, item.Header().Forced)
}

func TestService_ForceSettle_WrongClient(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")
	createClient(t, svc, "blue", "0")
	require.NoError(t, mem.SaveItem(ctx, newMaterial("blue", "m1", day(1), "0")))

	_, err := svc.ForceSettleItems(ctx, "acme", []settlement.ItemRef{materialRef("m1")})
	assert.ErrorIs(t, err, settlement.ErrClientMismatch)
}

// =============================================================================
// FAILURE SEMANTICS
// =============================================================================

func TestEngine_StorageFailureLeavesAllocationsIntact(t *testing.T) {
	// GIVEN: a reconciled client
	mem := store.NewTxMemory()
	ctx := context.Background()
	engine := settlement.NewEngine(zerolog.Nop())
	require.NoError(t, mem.SaveClient(ctx, settlement.Client{ID: "acme", HourlyRate: money("20")}))
	require.NoError(t, mem.SaveItem(ctx, newJob("acme", "j1", day(1), "5")))
	require.NoError(t, mem.SavePayment(ctx, newPayment("acme", "p1", day(1), "100")))
	_, err := engine.Reconcile(ctx, mem, "acme")
	require.NoError(t, err)
	before, err := mem.ListAllocations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, before, 1)

	// WHEN: a later run cannot write allocations
	require.NoError(t, mem.DeletePayment(ctx, "p1"))
	_, err = engine.Reconcile(ctx, &faultyView{Store: mem, fail: true}, "acme")

	// THEN: the failure is typed and nothing was written
	require.ErrorIs(t, err, settlement.ErrReconciliationFailed)
	require.ErrorIs(t, err, errDiskFull)
	var recErr *settlement.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "replace_allocations", recErr.Stage)

	after, err := mem.ListAllocations(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.True(t, itemSettled(t, mem, jobRef("j1")), "flag untouched")
}

func TestService_FailedReconcileRollsBackMutation(t *testing.T) {
	// GIVEN: a reconciled client on a store that will start failing
	fs := &faultyStore{TxMemory: store.NewTxMemory()}
	svc := settlement.NewService(fs, nil, nil, zerolog.Nop())
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	_, err := svc.OnItemCreated(ctx, newJob("acme", "j1", day(1), "5"))
	require.NoError(t, err)

	// WHEN: a payment is added but the rebuild fails
	fs.failReplace = true
	sum, err := svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "100"))

	// THEN: the caller sees the error and the payment was never stored
	require.ErrorIs(t, err, settlement.ErrReconciliationFailed)
	assert.Nil(t, sum)
	_, err = fs.GetPayment(ctx, "p1")
	assert.ErrorIs(t, err, settlement.ErrPaymentNotFound)
	assert.False(t, itemSettled(t, fs, jobRef("j1")))

	// AND: the failure is in the run log
	runs, err := svc.Runs(ctx, "acme", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, settlement.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "disk full")

	// AND: once storage recovers a retry succeeds
	fs.failReplace = false
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "100"))
	require.NoError(t, err)
	assert.True(t, itemSettled(t, fs, jobRef("j1")))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestService_ConcurrentMutationsConverge(t *testing.T) {
	// GIVEN: two clients, each with a 100 job
	svc, mem := newService(t)
	ctx := context.Background()
	for _, c := range []string{"acme", "blue"} {
		createClient(t, svc, c, "20")
		_, err := svc.OnItemCreated(ctx, newJob(c, "job-"+c, day(1), "5"))
		require.NoError(t, err)
	}

	// WHEN: 40 payments of 10 arrive concurrently, 20 per client
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		client := "acme"
		if i%2 == 1 {
			client = "blue"
		}
		wg.Add(1)
		go func(i int, client string) {
			defer wg.Done()
			_, err := svc.OnPaymentCreated(ctx, newPayment(client, fmt.Sprintf("p-%02d", i), day(1+i%20), "10"))
			assert.NoError(t, err)
		}(i, client)
	}
	wg.Wait()

	// THEN: each client converged to the same state a serial run would give
	for _, c := range []string{"acme", "blue"} {
		sum, err := svc.GetClientSummary(ctx, settlement.ClientID(c))
		require.NoError(t, err)
		assert.Equal(t, "200.00", sum.TotalPaid.String(), c)
		assert.Equal(t, "100.00", sum.TotalAllocated.String(), c)
		assert.Equal(t, "100.00", sum.AvailableCredit.String(), c)
		assert.True(t, itemSettled(t, mem, jobRef("job-"+c)), c)

		allocs, err := mem.ListAllocations(ctx, settlement.ClientID(c))
		require.NoError(t, err)
		assert.Len(t, allocs, 10, "%s: ten oldest payments cover the job", c)
	}
}

// =============================================================================
// READS
// =============================================================================

func TestService_ReadViews(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "20")
	createClient(t, svc, "blue", "30")
	_, err := svc.OnItemCreated(ctx, newMaterial("acme", "m1", day(1), "100"))
	require.NoError(t, err)
	_, err = svc.OnItemCreated(ctx, newMaterial("acme", "m2", day(2), "50"))
	require.NoError(t, err)
	_, err = svc.OnPaymentCreated(ctx, newPayment("acme", "p1", day(1), "120"))
	require.NoError(t, err)

	pending, err := svc.PendingItems(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "30.00", pending[0].Outstanding.String())

	settled := true
	allocs, err := svc.Allocations(ctx, "acme", &settled)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, materialRef("m1"), allocs[0].Item)

	all, err := svc.Allocations(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	summaries, err := svc.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	runs, err := svc.Runs(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 4, "create client plus three mutations")
	assert.Equal(t, settlement.RunCompleted, runs[0].Status)
	assert.Equal(t, "30.00", runs[0].TotalDebt.String(), "newest first")
}

func TestService_ReconcileAll(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	createClient(t, svc, "acme", "0")
	createClient(t, svc, "blue", "0")

	// Imported outside the service, so not yet reconciled.
	require.NoError(t, mem.SaveItem(ctx, newMaterial("acme", "m1", day(1), "10")))
	require.NoError(t, mem.SavePayment(ctx, newPayment("acme", "p1", day(1), "10")))

	done, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	assert.True(t, itemSettled(t, mem, materialRef("m1")))
}
