/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Request amounts are json.Number, so clients may send 12.5 or "12.5".
  Responses encode money as bare numbers with two decimals.

VALIDATION:
  Validation is done in handlers and the settlement Service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/summary.go: Summary projection
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateClientRequest struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	HourlyRate json.Number `json:"hourly_rate"`
}

type UpdateClientRequest struct {
	Name       *string      `json:"name"`
	HourlyRate *json.Number `json:"hourly_rate"`
}

type CreateJobRequest struct {
	ID       string      `json:"id"`
	ClientID string      `json:"client_id"`
	Date     string      `json:"date"`
	Hours    json.Number `json:"hours"`
}

type UpdateJobRequest struct {
	Date  *string      `json:"date"`
	Hours *json.Number `json:"hours"`
}

type CreateMaterialRequest struct {
	ID       string      `json:"id"`
	ClientID string      `json:"client_id"`
	Date     string      `json:"date"`
	Cost     json.Number `json:"cost"`
}

type UpdateMaterialRequest struct {
	Date *string      `json:"date"`
	Cost *json.Number `json:"cost"`
}

type CreatePaymentRequest struct {
	ID       string      `json:"id"`
	ClientID string      `json:"client_id"`
	Date     string      `json:"date"`
	Amount   json.Number `json:"amount"`
}

type UpdatePaymentRequest struct {
	Date   *string      `json:"date"`
	Amount *json.Number `json:"amount"`
}

// SettleRequest asks for a manual settlement of the listed items.
type SettleRequest struct {
	Items []ItemRefDTO `json:"items"`
}

type ItemRefDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ClientDTO struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	HourlyRate      settlement.Money `json:"hourly_rate"`
	AvailableCredit settlement.Money `json:"available_credit"`
}

// ItemDTO represents a job or a material. Hours is set for jobs only.
type ItemDTO struct {
	Kind     string           `json:"kind"`
	ID       string           `json:"id"`
	ClientID string           `json:"client_id"`
	Date     settlement.Date  `json:"date"`
	Hours    *json.Number     `json:"hours,omitempty"`
	Cost     settlement.Money `json:"cost"`
	Settled  bool             `json:"settled"`
	Forced   bool             `json:"forced"`
}

type PendingItemDTO struct {
	ItemDTO
	Allocated   settlement.Money `json:"allocated"`
	Outstanding settlement.Money `json:"outstanding"`
}

type PaymentDTO struct {
	ID       string           `json:"id"`
	ClientID string           `json:"client_id"`
	Date     settlement.Date  `json:"date"`
	Amount   settlement.Money `json:"amount"`
}

type AllocationDTO struct {
	ID          string           `json:"id"`
	PaymentID   string           `json:"payment_id"`
	ItemKind    string           `json:"item_kind"`
	ItemID      string           `json:"item_id"`
	AmountUsed  settlement.Money `json:"amount_used"`
	PaymentDate settlement.Date  `json:"payment_date"`
	ItemDate    settlement.Date  `json:"item_date"`
}

type PaymentUsageDTO struct {
	PaymentID  string           `json:"payment_id"`
	Date       settlement.Date  `json:"date"`
	Amount     settlement.Money `json:"amount"`
	AmountUsed settlement.Money `json:"amount_used"`
}

// SummaryDTO is returned by every mutating endpoint.
type SummaryDTO struct {
	ClientID             string            `json:"client_id"`
	Name                 string            `json:"name"`
	HourlyRate           settlement.Money  `json:"hourly_rate"`
	PendingHours         json.Number       `json:"pending_hours"`
	PendingMaterialsCost settlement.Money  `json:"pending_materials_cost"`
	TotalDebt            settlement.Money  `json:"total_debt"`
	AvailableCredit      settlement.Money  `json:"available_credit"`
	TotalPaid            settlement.Money  `json:"total_paid"`
	TotalAllocated       settlement.Money  `json:"total_allocated"`
	PaymentsUsage        []PaymentUsageDTO `json:"payments_usage"`
}

type RunDTO struct {
	ID              string           `json:"id"`
	ClientID        string           `json:"client_id"`
	Status          string           `json:"status"`
	Allocations     int              `json:"allocations"`
	Flipped         int              `json:"flipped"`
	AvailableCredit settlement.Money `json:"available_credit"`
	TotalDebt       settlement.Money `json:"total_debt"`
	Error           string           `json:"error,omitempty"`
	StartedAt       string           `json:"started_at"`
	CompletedAt     string           `json:"completed_at"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Details   string            `json:"details,omitempty"`
	Shortfall *settlement.Money `json:"shortfall,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toClientDTO(c settlement.Client) ClientDTO {
	return ClientDTO{
		ID:              string(c.ID),
		Name:            c.Name,
		HourlyRate:      c.HourlyRate,
		AvailableCredit: c.AvailableCredit,
	}
}

func toItemDTO(item settlement.ChargeableItem, rate settlement.Money) ItemDTO {
	h := item.Header()
	dto := ItemDTO{
		Kind:     string(item.Ref().Kind),
		ID:       string(h.ID),
		ClientID: string(h.ClientID),
		Date:     h.Date,
		Cost:     settlement.CostOf(item, rate),
		Settled:  h.Settled,
		Forced:   h.Forced,
	}
	if job, ok := item.(settlement.Job); ok {
		hours := json.Number(job.Hours.String())
		dto.Hours = &hours
	}
	return dto
}

func toPaymentDTO(p settlement.Payment) PaymentDTO {
	return PaymentDTO{
		ID:       string(p.ID),
		ClientID: string(p.ClientID),
		Date:     p.Date,
		Amount:   p.Amount,
	}
}

func toAllocationDTO(a settlement.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:          string(a.ID),
		PaymentID:   string(a.PaymentID),
		ItemKind:    string(a.Item.Kind),
		ItemID:      string(a.Item.ID),
		AmountUsed:  a.AmountUsed,
		PaymentDate: a.PaymentDate,
		ItemDate:    a.ItemDate,
	}
}

// ToSummaryDTO converts a summary for JSON output.
func ToSummaryDTO(s settlement.Summary) SummaryDTO {
	usage := make([]PaymentUsageDTO, 0, len(s.PaymentsUsage))
	for _, u := range s.PaymentsUsage {
		usage = append(usage, PaymentUsageDTO{
			PaymentID:  string(u.PaymentID),
			Date:       u.Date,
			Amount:     u.Amount,
			AmountUsed: u.AmountUsed,
		})
	}
	return SummaryDTO{
		ClientID:             string(s.ClientID),
		Name:                 s.Name,
		HourlyRate:           s.HourlyRate,
		PendingHours:         json.Number(s.PendingHours.StringFixed(2)),
		PendingMaterialsCost: s.PendingMaterialsCost,
		TotalDebt:            s.TotalDebt,
		AvailableCredit:      s.AvailableCredit,
		TotalPaid:            s.TotalPaid,
		TotalAllocated:       s.TotalAllocated,
		PaymentsUsage:        usage,
	}
}

func toRunDTO(r settlement.ReconciliationRun) RunDTO {
	return RunDTO{
		ID:              r.ID,
		ClientID:        string(r.ClientID),
		Status:          string(r.Status),
		Allocations:     r.Allocations,
		Flipped:         r.Flipped,
		AvailableCredit: r.AvailableCredit,
		TotalDebt:       r.TotalDebt,
		Error:           r.Error,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:     r.CompletedAt.UTC().Format(time.RFC3339),
	}
}
