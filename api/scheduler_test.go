package api

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

func TestScheduler_SweepRepairsImportedRecords(t *testing.T) {
	// GIVEN: records written straight to the store, never reconciled
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.SaveClient(ctx, settlement.Client{ID: "acme", Name: "Acme", HourlyRate: settlement.MustMoney("20")}))
	require.NoError(t, store.SaveItem(ctx, settlement.Material{
		ItemHeader: settlement.ItemHeader{ID: "m1", ClientID: "acme", Date: settlement.NewDate(2025, time.January, 2)},
		Cost:       settlement.MustMoney("40"),
	}))
	require.NoError(t, store.SavePayment(ctx, settlement.Payment{
		ID: "p1", ClientID: "acme", Date: settlement.NewDate(2025, time.January, 1), Amount: settlement.MustMoney("50"),
	}))

	svc := settlement.NewService(store, nil, nil, zerolog.Nop())
	sched := NewReconciliationScheduler(svc, zerolog.Nop())

	// WHEN
	done := sched.Sweep(ctx)

	// THEN
	assert.Equal(t, 1, done)
	item, err := store.GetItem(ctx, settlement.ItemRef{Kind: settlement.KindMaterial, ID: "m1"})
	require.NoError(t, err)
	assert.True(t, item.Header().Settled)

	client, err := store.GetClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "10.00", client.AvailableCredit.String())
}

func TestScheduler_SweepPrunesRunLog(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	svc := settlement.NewService(store, nil, nil, zerolog.Nop())
	_, err = svc.CreateClient(ctx, settlement.Client{ID: "acme", Name: "Acme", HourlyRate: settlement.MustMoney("20")})
	require.NoError(t, err)

	sched := NewReconciliationScheduler(svc, zerolog.Nop())
	sched.RunRetention = 3

	// WHEN: many sweeps run over an unchanged client
	for i := 0; i < 10; i++ {
		sched.Sweep(ctx)
	}

	// THEN: the run log stays bounded
	runs, err := svc.Runs(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestScheduler_StartStop(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := NewReconciliationScheduler(settlement.NewService(store, nil, nil, zerolog.Nop()), zerolog.Nop())
	sched.CheckInterval = 10 * time.Millisecond

	sched.Start()
	sched.Start() // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
	sched.Stop()
}

func TestScheduler_Disabled(t *testing.T) {
	sched := NewReconciliationScheduler(nil, zerolog.Nop())
	sched.Enabled = false

	sched.Start()
	sched.Stop()
}
