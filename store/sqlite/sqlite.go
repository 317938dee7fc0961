/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements settlement.TxStore and settlement.RunStore using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  settlement.Store:    Clients, jobs, materials, payments, allocations
  settlement.TxStore:  Atomic mutation + reconciliation
  settlement.RunStore: Reconciliation run log

KEY TABLES:
  clients:             Client records with the cached available credit
  jobs, materials:     The two chargeable item variants
  payments:            Money received
  allocations:         Engine-owned payment-to-item links, replaced per run
  reconciliation_runs: One row per reconciliation attempt

MONEY:
  Amounts and hours are stored as TEXT decimal strings and parsed back with
  shopspring/decimal. REAL columns would reintroduce float rounding.

CONCURRENCY:
  The pool is limited to one connection. SQLite allows a single writer
  anyway, and ":memory:" databases are per-connection, so every caller
  shares the one database. Per-client ordering is the Coordinator's job.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash recovery.

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := settlement.NewService(store, nil, nil, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/settlement"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements settlement.Store against a querier.
type queries struct {
	q querier
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hourly_rate TEXT NOT NULL DEFAULT '0',
		available_credit TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Jobs: cost = hours x client.hourly_rate
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		settled INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_client_date
		ON jobs(client_id, date, id);

	-- Materials: fixed cost
	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		cost TEXT NOT NULL,
		settled INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_materials_client_date
		ON materials(client_id, date, id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_client_date
		ON payments(client_id, date, id);

	-- Allocations (replaced wholesale by every reconciliation run).
	-- item_kind/item_id is polymorphic, so there is no item foreign key;
	-- a deleted item or payment loses its rows on the next run.
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		payment_id TEXT NOT NULL,
		item_kind TEXT NOT NULL CHECK (item_kind IN ('job', 'material')),
		item_id TEXT NOT NULL,
		amount_used TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		item_date TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_client
		ON allocations(client_id, seq);
	CREATE INDEX IF NOT EXISTS idx_allocations_item
		ON allocations(item_kind, item_id);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		status TEXT NOT NULL,
		allocations INTEGER NOT NULL DEFAULT 0,
		flipped INTEGER NOT NULL DEFAULT 0,
		available_credit TEXT NOT NULL DEFAULT '0',
		total_debt TEXT NOT NULL DEFAULT '0',
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_client
		ON reconciliation_runs(client_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_status
		ON reconciliation_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (settlement.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store settlement.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{q: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the view handed to WithTx callbacks. It runs every statement
// on the open transaction.
type txStore struct {
	queries
}

// =============================================================================
// CLIENTS
// =============================================================================

func (q queries) GetClient(ctx context.Context, id settlement.ClientID) (*settlement.Client, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, name, hourly_rate, available_credit
		FROM clients WHERE id = ?
	`, id)

	var c settlement.Client
	var rate, credit string
	if err := row.Scan(&c.ID, &c.Name, &rate, &credit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	var err error
	if c.HourlyRate, err = parseMoney(rate); err != nil {
		return nil, err
	}
	if c.AvailableCredit, err = parseMoney(credit); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q queries) ListClients(ctx context.Context) ([]settlement.Client, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, name, hourly_rate, available_credit
		FROM clients ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []settlement.Client
	for rows.Next() {
		var c settlement.Client
		var rate, credit string
		if err := rows.Scan(&c.ID, &c.Name, &rate, &credit); err != nil {
			return nil, err
		}
		if c.HourlyRate, err = parseMoney(rate); err != nil {
			return nil, err
		}
		if c.AvailableCredit, err = parseMoney(credit); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (q queries) SaveClient(ctx context.Context, c settlement.Client) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, hourly_rate, available_credit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hourly_rate = excluded.hourly_rate,
			available_credit = excluded.available_credit,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, c.HourlyRate.String(), c.AvailableCredit.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (q queries) SetAvailableCredit(ctx context.Context, id settlement.ClientID, credit settlement.Money) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE clients SET available_credit = ?, updated_at = ? WHERE id = ?
	`, credit.String(), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to cache credit: %w", err)
	}
	return requireRow(res, settlement.ErrClientNotFound)
}

// =============================================================================
// ITEMS (jobs + materials)
// =============================================================================

func (q queries) GetItem(ctx context.Context, ref settlement.ItemRef) (settlement.ChargeableItem, error) {
	var item settlement.ChargeableItem
	var err error
	switch ref.Kind {
	case settlement.KindJob:
		item, err = scanJob(q.q.QueryRowContext(ctx, `
			SELECT id, client_id, date, hours, settled, forced FROM jobs WHERE id = ?
		`, ref.ID))
	case settlement.KindMaterial:
		item, err = scanMaterial(q.q.QueryRowContext(ctx, `
			SELECT id, client_id, date, cost, settled, forced FROM materials WHERE id = ?
		`, ref.ID))
	default:
		return nil, settlement.ErrItemNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", ref, err)
	}
	return item, nil
}

func (q queries) ListItems(ctx context.Context, clientID settlement.ClientID) ([]settlement.ChargeableItem, error) {
	var items []settlement.ChargeableItem

	jobRows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, date, hours, settled, forced
		FROM jobs WHERE client_id = ? ORDER BY date, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	for jobRows.Next() {
		job, err := scanJob(jobRows)
		if err != nil {
			jobRows.Close()
			return nil, err
		}
		items = append(items, job)
	}
	if err := closeRows(jobRows); err != nil {
		return nil, err
	}

	matRows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, date, cost, settled, forced
		FROM materials WHERE client_id = ? ORDER BY date, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	for matRows.Next() {
		mat, err := scanMaterial(matRows)
		if err != nil {
			matRows.Close()
			return nil, err
		}
		items = append(items, mat)
	}
	if err := closeRows(matRows); err != nil {
		return nil, err
	}

	settlement.SortItems(items)
	return items, nil
}

func (q queries) SaveItem(ctx context.Context, item settlement.ChargeableItem) error {
	h := item.Header()
	now := time.Now().UTC().Format(time.RFC3339)

	var err error
	switch it := item.(type) {
	case settlement.Job:
		_, err = q.q.ExecContext(ctx, `
			INSERT INTO jobs (id, client_id, date, hours, settled, forced, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				date = excluded.date,
				hours = excluded.hours,
				settled = excluded.settled,
				forced = excluded.forced
		`, h.ID, h.ClientID, h.Date.String(), it.Hours.String(), h.Settled, h.Forced, now)
	case settlement.Material:
		_, err = q.q.ExecContext(ctx, `
			INSERT INTO materials (id, client_id, date, cost, settled, forced, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				date = excluded.date,
				cost = excluded.cost,
				settled = excluded.settled,
				forced = excluded.forced
		`, h.ID, h.ClientID, h.Date.String(), it.Cost.String(), h.Settled, h.Forced, now)
	}
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.Ref(), err)
	}
	return nil
}

func (q queries) DeleteItem(ctx context.Context, ref settlement.ItemRef) error {
	table, err := itemTable(ref)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", ref.ID)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", ref, err)
	}
	return requireRow(res, settlement.ErrItemNotFound)
}

func (q queries) MarkSettled(ctx context.Context, ref settlement.ItemRef, settled bool) error {
	return q.setItemFlag(ctx, ref, "settled", settled)
}

func (q queries) MarkForced(ctx context.Context, ref settlement.ItemRef, forced bool) error {
	return q.setItemFlag(ctx, ref, "forced", forced)
}

func (q queries) setItemFlag(ctx context.Context, ref settlement.ItemRef, column string, value bool) error {
	table, err := itemTable(ref)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, "UPDATE "+table+" SET "+column+" = ? WHERE id = ?", value, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s on %s: %w", column, ref, err)
	}
	return requireRow(res, settlement.ErrItemNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (q queries) GetPayment(ctx context.Context, id settlement.PaymentID) (*settlement.Payment, error) {
	p, err := scanPayment(q.q.QueryRowContext(ctx, `
		SELECT id, client_id, date, amount FROM payments WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

func (q queries) ListPayments(ctx context.Context, clientID settlement.ClientID) ([]settlement.Payment, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, date, amount
		FROM payments WHERE client_id = ? ORDER BY date, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []settlement.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q queries) SavePayment(ctx context.Context, p settlement.Payment) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO payments (id, client_id, date, amount, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			amount = excluded.amount
	`, p.ID, p.ClientID, p.Date.String(), p.Amount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (q queries) DeletePayment(ctx context.Context, id settlement.PaymentID) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return requireRow(res, settlement.ErrPaymentNotFound)
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (q queries) ListAllocations(ctx context.Context, clientID settlement.ClientID) ([]settlement.Allocation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, payment_id, item_kind, item_id, amount_used, payment_date, item_date
		FROM allocations WHERE client_id = ? ORDER BY seq
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocs []settlement.Allocation
	for rows.Next() {
		var a settlement.Allocation
		var amount, paymentDate, itemDate string
		if err := rows.Scan(&a.ID, &a.ClientID, &a.PaymentID, &a.Item.Kind, &a.Item.ID,
			&amount, &paymentDate, &itemDate); err != nil {
			return nil, err
		}
		if a.AmountUsed, err = parseMoney(amount); err != nil {
			return nil, err
		}
		if a.PaymentDate, err = settlement.ParseDate(paymentDate); err != nil {
			return nil, err
		}
		if a.ItemDate, err = settlement.ParseDate(itemDate); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// ReplaceAllocations deletes the client's allocations and inserts allocs.
// Callers wanting atomicity run it inside WithTx.
func (q queries) ReplaceAllocations(ctx context.Context, clientID settlement.ClientID, allocs []settlement.Allocation) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM allocations WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to clear allocations: %w", err)
	}

	for i, a := range allocs {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO allocations
			(id, client_id, payment_id, item_kind, item_id, amount_used, payment_date, item_date, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, clientID, a.PaymentID, a.Item.Kind, a.Item.ID, a.AmountUsed.String(),
			a.PaymentDate.String(), a.ItemDate.String(), i)
		if err != nil {
			return fmt.Errorf("failed to insert allocation %s: %w", a.ID, err)
		}
	}
	return nil
}

// =============================================================================
// RECONCILIATION RUNS (settlement.RunStore interface)
// =============================================================================

// runTimeLayout is fixed width so that started_at sorts chronologically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveReconciliationRun saves a reconciliation run.
func (q queries) SaveReconciliationRun(ctx context.Context, r settlement.ReconciliationRun) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, client_id, status, allocations, flipped,
			available_credit, total_debt, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.ClientID, r.Status, r.Allocations, r.Flipped,
		r.AvailableCredit.String(), r.TotalDebt.String(), nullString(r.Error),
		r.StartedAt.UTC().Format(runTimeLayout), r.CompletedAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run: %w", err)
	}
	return nil
}

// ListReconciliationRuns returns a client's runs, newest first.
func (q queries) ListReconciliationRuns(ctx context.Context, clientID settlement.ClientID, limit int) ([]settlement.ReconciliationRun, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, status, allocations, flipped, available_credit, total_debt,
			error, started_at, completed_at
		FROM reconciliation_runs
		WHERE client_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []settlement.ReconciliationRun
	for rows.Next() {
		var r settlement.ReconciliationRun
		var credit, debt, startedAt, completedAt string
		var runErr sql.NullString
		if err := rows.Scan(
			&r.ID, &r.ClientID, &r.Status, &r.Allocations, &r.Flipped,
			&credit, &debt, &runErr, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		if r.AvailableCredit, err = parseMoney(credit); err != nil {
			return nil, err
		}
		if r.TotalDebt, err = parseMoney(debt); err != nil {
			return nil, err
		}
		r.Error = runErr.String
		r.StartedAt, _ = time.Parse(runTimeLayout, startedAt)
		r.CompletedAt, _ = time.Parse(runTimeLayout, completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneReconciliationRuns keeps the newest keep runs per client.
func (s *Store) PruneReconciliationRuns(ctx context.Context, keep int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reconciliation_runs WHERE rowid IN (
			SELECT rowid FROM (
				SELECT rowid, ROW_NUMBER() OVER (
					PARTITION BY client_id ORDER BY started_at DESC, rowid DESC
				) AS rn
				FROM reconciliation_runs
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune reconciliation runs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"allocations", "reconciliation_runs", "jobs", "materials", "payments", "clients"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (settlement.Job, error) {
	var j settlement.Job
	var date, hours string
	if err := row.Scan(&j.ID, &j.ClientID, &date, &hours, &j.Settled, &j.Forced); err != nil {
		return j, err
	}
	var err error
	if j.Date, err = settlement.ParseDate(date); err != nil {
		return j, err
	}
	if j.Hours, err = decimal.NewFromString(hours); err != nil {
		return j, fmt.Errorf("corrupt hours %q on job %s: %w", hours, j.ID, err)
	}
	return j, nil
}

func scanMaterial(row rowScanner) (settlement.Material, error) {
	var m settlement.Material
	var date, cost string
	if err := row.Scan(&m.ID, &m.ClientID, &date, &cost, &m.Settled, &m.Forced); err != nil {
		return m, err
	}
	var err error
	if m.Date, err = settlement.ParseDate(date); err != nil {
		return m, err
	}
	if m.Cost, err = parseMoney(cost); err != nil {
		return m, err
	}
	return m, nil
}

func scanPayment(row rowScanner) (settlement.Payment, error) {
	var p settlement.Payment
	var date, amount string
	if err := row.Scan(&p.ID, &p.ClientID, &date, &amount); err != nil {
		return p, err
	}
	var err error
	if p.Date, err = settlement.ParseDate(date); err != nil {
		return p, err
	}
	if p.Amount, err = parseMoney(amount); err != nil {
		return p, err
	}
	return p, nil
}

func parseMoney(value string) (settlement.Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return settlement.Money{}, fmt.Errorf("corrupt money value %q: %w", value, err)
	}
	return settlement.NewMoney(d), nil
}

func itemTable(ref settlement.ItemRef) (string, error) {
	switch ref.Kind {
	case settlement.KindJob:
		return "jobs", nil
	case settlement.KindMaterial:
		return "materials", nil
	}
	return "", settlement.ErrItemNotFound
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var (
	_ settlement.TxStore   = (*Store)(nil)
	_ settlement.RunStore  = (*Store)(nil)
	_ settlement.RunPruner = (*Store)(nil)
	_ settlement.RunStore  = (*txStore)(nil)
)
