// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	clients     map[settlement.ClientID]settlement.Client
	items       map[settlement.ItemRef]settlement.ChargeableItem
	payments    map[settlement.PaymentID]settlement.Payment
	allocations map[settlement.ClientID][]settlement.Allocation
	runs        []settlement.ReconciliationRun
}

func NewMemory() *Memory {
	return &Memory{
		clients:     make(map[settlement.ClientID]settlement.Client),
		items:       make(map[settlement.ItemRef]settlement.ChargeableItem),
		payments:    make(map[settlement.PaymentID]settlement.Payment),
		allocations: make(map[settlement.ClientID][]settlement.Allocation),
	}
}

// Every exported method takes the lock and delegates to a *Locked method.
// The transaction view calls the *Locked methods directly while WithTx
// holds the write lock.

func (m *Memory) GetClient(_ context.Context, id settlement.ClientID) (*settlement.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClientLocked(id)
}

func (m *Memory) ListClients(_ context.Context) ([]settlement.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClientsLocked(), nil
}

func (m *Memory) SaveClient(_ context.Context, c settlement.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) SetAvailableCredit(_ context.Context, id settlement.ClientID, credit settlement.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCreditLocked(id, credit)
}

func (m *Memory) GetItem(_ context.Context, ref settlement.ItemRef) (settlement.ChargeableItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getItemLocked(ref)
}

func (m *Memory) ListItems(_ context.Context, clientID settlement.ClientID) ([]settlement.ChargeableItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listItemsLocked(clientID), nil
}

func (m *Memory) SaveItem(_ context.Context, item settlement.ChargeableItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Ref()] = item
	return nil
}

func (m *Memory) DeleteItem(_ context.Context, ref settlement.ItemRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteItemLocked(ref)
}

func (m *Memory) MarkSettled(_ context.Context, ref settlement.ItemRef, settled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setFlagsLocked(ref, func(h *settlement.ItemHeader) { h.Settled = settled })
}

func (m *Memory) MarkForced(_ context.Context, ref settlement.ItemRef, forced bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setFlagsLocked(ref, func(h *settlement.ItemHeader) { h.Forced = forced })
}

func (m *Memory) GetPayment(_ context.Context, id settlement.PaymentID) (*settlement.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id)
}

func (m *Memory) ListPayments(_ context.Context, clientID settlement.ClientID) ([]settlement.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPaymentsLocked(clientID), nil
}

func (m *Memory) SavePayment(_ context.Context, p settlement.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id settlement.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) ListAllocations(_ context.Context, clientID settlement.ClientID) ([]settlement.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAllocationsLocked(clientID), nil
}

func (m *Memory) ReplaceAllocations(_ context.Context, clientID settlement.ClientID, allocs []settlement.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceAllocationsLocked(clientID, allocs)
	return nil
}

func (m *Memory) SaveReconciliationRun(_ context.Context, run settlement.ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListReconciliationRuns(_ context.Context, clientID settlement.ClientID, limit int) ([]settlement.ReconciliationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRunsLocked(clientID, limit), nil
}

// PruneReconciliationRuns keeps the newest keep runs per client.
func (m *Memory) PruneReconciliationRuns(_ context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[settlement.ClientID]int)
	kept := make([]bool, len(m.runs))
	n := 0
	for i := len(m.runs) - 1; i >= 0; i-- {
		id := m.runs[i].ClientID
		seen[id]++
		if seen[id] <= keep {
			kept[i] = true
			n++
		}
	}

	out := make([]settlement.ReconciliationRun, 0, n)
	for i, run := range m.runs {
		if kept[i] {
			out = append(out, run)
		}
	}
	pruned := len(m.runs) - len(out)
	m.runs = out
	return pruned, nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = make(map[settlement.ClientID]settlement.Client)
	m.items = make(map[settlement.ItemRef]settlement.ChargeableItem)
	m.payments = make(map[settlement.PaymentID]settlement.Payment)
	m.allocations = make(map[settlement.ClientID][]settlement.Allocation)
	m.runs = nil
	return nil
}

// =============================================================================
// LOCKED HELPERS
// =============================================================================

func (m *Memory) getClientLocked(id settlement.ClientID) (*settlement.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, settlement.ErrClientNotFound
	}
	return &c, nil
}

func (m *Memory) listClientsLocked() []settlement.Client {
	out := make([]settlement.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) setCreditLocked(id settlement.ClientID, credit settlement.Money) error {
	c, ok := m.clients[id]
	if !ok {
		return settlement.ErrClientNotFound
	}
	c.AvailableCredit = credit
	m.clients[id] = c
	return nil
}

func (m *Memory) getItemLocked(ref settlement.ItemRef) (settlement.ChargeableItem, error) {
	item, ok := m.items[ref]
	if !ok {
		return nil, settlement.ErrItemNotFound
	}
	return item, nil
}

func (m *Memory) listItemsLocked(clientID settlement.ClientID) []settlement.ChargeableItem {
	var out []settlement.ChargeableItem
	for _, item := range m.items {
		if item.Header().ClientID == clientID {
			out = append(out, item)
		}
	}
	settlement.SortItems(out)
	return out
}

func (m *Memory) deleteItemLocked(ref settlement.ItemRef) error {
	if _, ok := m.items[ref]; !ok {
		return settlement.ErrItemNotFound
	}
	delete(m.items, ref)
	return nil
}

func (m *Memory) setFlagsLocked(ref settlement.ItemRef, set func(*settlement.ItemHeader)) error {
	item, ok := m.items[ref]
	if !ok {
		return settlement.ErrItemNotFound
	}
	switch it := item.(type) {
	case settlement.Job:
		set(&it.ItemHeader)
		m.items[ref] = it
	case settlement.Material:
		set(&it.ItemHeader)
		m.items[ref] = it
	}
	return nil
}

func (m *Memory) getPaymentLocked(id settlement.PaymentID) (*settlement.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, settlement.ErrPaymentNotFound
	}
	return &p, nil
}

func (m *Memory) listPaymentsLocked(clientID settlement.ClientID) []settlement.Payment {
	var out []settlement.Payment
	for _, p := range m.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) deletePaymentLocked(id settlement.PaymentID) error {
	if _, ok := m.payments[id]; !ok {
		return settlement.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) listAllocationsLocked(clientID settlement.ClientID) []settlement.Allocation {
	src := m.allocations[clientID]
	out := make([]settlement.Allocation, len(src))
	copy(out, src)
	return out
}

func (m *Memory) replaceAllocationsLocked(clientID settlement.ClientID, allocs []settlement.Allocation) {
	if len(allocs) == 0 {
		delete(m.allocations, clientID)
		return
	}
	m.allocations[clientID] = append([]settlement.Allocation(nil), allocs...)
}

// listRunsLocked returns newest first.
func (m *Memory) listRunsLocked(clientID settlement.ClientID, limit int) []settlement.ReconciliationRun {
	var out []settlement.ReconciliationRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].ClientID != clientID {
			continue
		}
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized by the store's write lock.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(settlement.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	clients     map[settlement.ClientID]settlement.Client
	items       map[settlement.ItemRef]settlement.ChargeableItem
	payments    map[settlement.PaymentID]settlement.Payment
	allocations map[settlement.ClientID][]settlement.Allocation
	runs        int
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		clients:     make(map[settlement.ClientID]settlement.Client, len(tm.clients)),
		items:       make(map[settlement.ItemRef]settlement.ChargeableItem, len(tm.items)),
		payments:    make(map[settlement.PaymentID]settlement.Payment, len(tm.payments)),
		allocations: make(map[settlement.ClientID][]settlement.Allocation, len(tm.allocations)),
		runs:        len(tm.runs),
	}
	for k, v := range tm.clients {
		s.clients[k] = v
	}
	for k, v := range tm.items {
		s.items[k] = v
	}
	for k, v := range tm.payments {
		s.payments[k] = v
	}
	for k, v := range tm.allocations {
		s.allocations[k] = append([]settlement.Allocation(nil), v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.clients = s.clients
	tm.items = s.items
	tm.payments = s.payments
	tm.allocations = s.allocations
	tm.runs = tm.runs[:s.runs]
}

// txMemoryView is the Store handed to WithTx callbacks. The parent's write
// lock is already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetClient(_ context.Context, id settlement.ClientID) (*settlement.Client, error) {
	return tv.parent.getClientLocked(id)
}

func (tv *txMemoryView) ListClients(_ context.Context) ([]settlement.Client, error) {
	return tv.parent.listClientsLocked(), nil
}

func (tv *txMemoryView) SaveClient(_ context.Context, c settlement.Client) error {
	tv.parent.clients[c.ID] = c
	return nil
}

func (tv *txMemoryView) SetAvailableCredit(_ context.Context, id settlement.ClientID, credit settlement.Money) error {
	return tv.parent.setCreditLocked(id, credit)
}

func (tv *txMemoryView) GetItem(_ context.Context, ref settlement.ItemRef) (settlement.ChargeableItem, error) {
	return tv.parent.getItemLocked(ref)
}

func (tv *txMemoryView) ListItems(_ context.Context, clientID settlement.ClientID) ([]settlement.ChargeableItem, error) {
	return tv.parent.listItemsLocked(clientID), nil
}

func (tv *txMemoryView) SaveItem(_ context.Context, item settlement.ChargeableItem) error {
	tv.parent.items[item.Ref()] = item
	return nil
}

func (tv *txMemoryView) DeleteItem(_ context.Context, ref settlement.ItemRef) error {
	return tv.parent.deleteItemLocked(ref)
}

func (tv *txMemoryView) MarkSettled(_ context.Context, ref settlement.ItemRef, settled bool) error {
	return tv.parent.setFlagsLocked(ref, func(h *settlement.ItemHeader) { h.Settled = settled })
}

func (tv *txMemoryView) MarkForced(_ context.Context, ref settlement.ItemRef, forced bool) error {
	return tv.parent.setFlagsLocked(ref, func(h *settlement.ItemHeader) { h.Forced = forced })
}

func (tv *txMemoryView) GetPayment(_ context.Context, id settlement.PaymentID) (*settlement.Payment, error) {
	return tv.parent.getPaymentLocked(id)
}

func (tv *txMemoryView) ListPayments(_ context.Context, clientID settlement.ClientID) ([]settlement.Payment, error) {
	return tv.parent.listPaymentsLocked(clientID), nil
}

func (tv *txMemoryView) SavePayment(_ context.Context, p settlement.Payment) error {
	tv.parent.payments[p.ID] = p
	return nil
}

func (tv *txMemoryView) DeletePayment(_ context.Context, id settlement.PaymentID) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txMemoryView) ListAllocations(_ context.Context, clientID settlement.ClientID) ([]settlement.Allocation, error) {
	return tv.parent.listAllocationsLocked(clientID), nil
}

func (tv *txMemoryView) ReplaceAllocations(_ context.Context, clientID settlement.ClientID, allocs []settlement.Allocation) error {
	tv.parent.replaceAllocationsLocked(clientID, allocs)
	return nil
}

func (tv *txMemoryView) SaveReconciliationRun(_ context.Context, run settlement.ReconciliationRun) error {
	tv.parent.runs = append(tv.parent.runs, run)
	return nil
}

func (tv *txMemoryView) ListReconciliationRuns(_ context.Context, clientID settlement.ClientID, limit int) ([]settlement.ReconciliationRun, error) {
	return tv.parent.listRunsLocked(clientID, limit), nil
}

var (
	_ settlement.TxStore   = (*TxMemory)(nil)
	_ settlement.RunStore  = (*TxMemory)(nil)
	_ settlement.RunPruner = (*TxMemory)(nil)
	_ settlement.RunStore  = (*txMemoryView)(nil)
)
