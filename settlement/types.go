/*
Package settlement provides the payment allocation and settlement engine.

PURPOSE:
  Tracks, per client, chargeable items (jobs billed by the hour and materials
  with a fixed cost) and payments, and keeps an accurate picture of which
  items are settled, how much unallocated credit the client holds, and what
  the client still owes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: fixed-point amount rounded to cents (never float)
  - ChargeableItem: sealed sum type, Job | Material
  - Payment: money received from a client
  - Allocation: the part of a payment applied to one item

DESIGN PRINCIPLES:
  1. Derived, never edited: allocations, settled flags and the client's
     available credit are rebuilt from scratch by the Engine
  2. Precision: decimal.Decimal rounded to MoneyScale, so comparisons are exact
  3. Determinism: FIFO by (date, id) and content-derived allocation IDs make
     every run reproducible

USAGE:
  rate := settlement.MustMoney("20")
  job := settlement.Job{
      ItemHeader: settlement.ItemHeader{ID: "job-1", ClientID: "c-1", Date: settlement.NewDate(2025, time.January, 1)},
      Hours:      decimal.NewFromInt(5),
  }
  settlement.CostOf(job, rate) // 100.00

SEE ALSO:
  - reconcile.go: FIFO matching
  - balance.go: credit and debt
  - service.go: entry points used by the CRUD layer
*/
package settlement

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point amount, always rounded to MoneyScale
// =============================================================================

// MoneyScale is the number of decimal places every Money value carries.
const MoneyScale = 2

// Money is an amount of currency rounded to MoneyScale decimal places.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// ZeroMoney is 0.00.
var ZeroMoney = Money{}

// NewMoney rounds d to MoneyScale.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(MoneyScale)}
}

// MoneyFromCents builds an amount from its smallest unit.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -MoneyScale)}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney("amount", s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney parses a finite, non-negative decimal string.
func ParseMoney(field, s string) (Money, error) {
	d, err := parseNonNegative(field, s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

// ParseHours parses a finite, non-negative number of hours.
func ParseHours(field, s string) (decimal.Decimal, error) {
	return parseNonNegative(field, s)
}

func parseNonNegative(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &InvalidAmountError{Field: field, Value: s, Reason: "empty"}
	}
	// decimal accepts neither NaN nor Inf, so a successful parse is finite.
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Field: field, Value: s, Reason: "not a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &InvalidAmountError{Field: field, Value: s, Reason: "negative"}
	}
	return d, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) MulDecimal(f decimal.Decimal) Money { return NewMoney(m.d.Mul(f)) }
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) Round() Money { return NewMoney(m.d) }
func (m Money) String() string { return m.d.StringFixed(MoneyScale) }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

// ClampNonNegative returns m, or zero when m is negative.
func (m Money) ClampNonNegative() Money {
	if m.IsNegative() {
		return ZeroMoney
	}
	return m
}

// Ratio divides m by o, rounded to MoneyScale. Zero divisors yield zero.
func (m Money) Ratio(o Money) decimal.Decimal {
	if o.IsZero() {
		return decimal.Zero
	}
	return m.d.DivRound(o.d, MoneyScale)
}

// MarshalJSON encodes as a bare number with MoneyScale decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseMoney("amount", s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type ItemID string
type PaymentID string
type AllocationID string

// ItemKind discriminates the ChargeableItem variants.
type ItemKind string

const (
	KindJob      ItemKind = "job"
	KindMaterial ItemKind = "material"
)

// ItemRef identifies an item across both variants.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   ItemID   `json:"id"`
}

func (r ItemRef) String() string { return string(r.Kind) + ":" + string(r.ID) }

// ParseItemKind validates a kind string.
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindJob, KindMaterial:
		return ItemKind(s), nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// =============================================================================
// CLIENT
// =============================================================================

type Client struct {
	ID         ClientID
	Name       string
	HourlyRate Money

	// AvailableCredit is written by reconciliation runs only.
	AvailableCredit Money
}

// =============================================================================
// CHARGEABLE ITEM - Job | Material
// =============================================================================

// ItemHeader carries the fields shared by both variants.
type ItemHeader struct {
	ID       ItemID
	ClientID ClientID
	Date     Date

	// Settled is owned by the Engine.
	Settled bool

	// Forced marks an item whose settlement was requested manually; forced
	// items are matched ahead of the FIFO queue.
	Forced bool
}

// ChargeableItem is implemented only by Job and Material.
type ChargeableItem interface {
	Header() ItemHeader
	Ref() ItemRef
	chargeable()
}

// Job is time billed at the client's hourly rate.
type Job struct {
	ItemHeader
	Hours decimal.Decimal
}

// Material has a cost fixed at entry.
type Material struct {
	ItemHeader
	Cost Money
}

func (j Job) Header() ItemHeader { return j.ItemHeader }
func (j Job) Ref() ItemRef { return ItemRef{Kind: KindJob, ID: j.ID} }
func (Job) chargeable() {}
func (m Material) Header() ItemHeader { return m.ItemHeader }
func (m Material) Ref() ItemRef { return ItemRef{Kind: KindMaterial, ID: m.ID} }
func (Material) chargeable() {}

// CostOf returns the billable cost of an item at the given hourly rate.
func CostOf(item ChargeableItem, rate Money) Money {
	switch it := item.(type) {
	case Job:
		return rate.MulDecimal(it.Hours)
	case Material:
		return it.Cost
	default:
		panic(fmt.Sprintf("settlement: unknown chargeable item %T", item))
	}
}

// withFlags returns a copy of item with its settlement flags replaced.
func withFlags(item ChargeableItem, settled, forced bool) ChargeableItem {
	switch it := item.(type) {
	case Job:
		it.Settled, it.Forced = settled, forced
		return it
	case Material:
		it.Settled, it.Forced = settled, forced
		return it
	default:
		panic(fmt.Sprintf("settlement: unknown chargeable item %T", item))
	}
}

// SortItems orders items oldest first, in place.
func SortItems(items []ChargeableItem) {
	sort.SliceStable(items, func(i, j int) bool { return itemBefore(items[i], items[j]) })
}

// itemBefore is the FIFO ordering: date, then id, then kind.
func itemBefore(a, b ChargeableItem) bool {
	ha, hb := a.Header(), b.Header()
	if !ha.Date.Equal(hb.Date) {
		return ha.Date.Before(hb.Date)
	}
	if ha.ID != hb.ID {
		return ha.ID < hb.ID
	}
	return a.Ref().Kind < b.Ref().Kind
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	ID       PaymentID
	ClientID ClientID
	Date     Date
	Amount   Money
}

func paymentBefore(a, b Payment) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// =============================================================================
// ALLOCATION - Engine-owned link between a payment and an item
// =============================================================================

type Allocation struct {
	ID          AllocationID
	ClientID    ClientID
	PaymentID   PaymentID
	Item        ItemRef
	AmountUsed  Money
	PaymentDate Date
	ItemDate    Date
}

// allocationNamespace seeds content-derived allocation IDs.
var allocationNamespace = uuid.MustParse("6f1c9a4e-2d7b-4c8e-9a51-3b0f7d2e8c14")

// AllocationIDFor is stable for a (client, payment, item) triple, so re-running
// reconciliation on unchanged data yields identical allocation sets.
func AllocationIDFor(clientID ClientID, paymentID PaymentID, item ItemRef) AllocationID {
	key := string(clientID) + "\x00" + string(paymentID) + "\x00" + item.String()
	return AllocationID(uuid.NewSHA1(allocationNamespace, []byte(key)).String())
}

// =============================================================================
// RECONCILIATION RUN - Audit record of one Engine run
// =============================================================================

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type ReconciliationRun struct {
	ID              string
	ClientID        ClientID
	Status          RunStatus
	Allocations     int
	Flipped         int
	AvailableCredit Money
	TotalDebt       Money
	Error           string
	StartedAt       time.Time
	CompletedAt     time.Time
}
