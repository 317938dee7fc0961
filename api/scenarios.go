/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, jobs,
	materials and payments that demonstrate a specific allocation behavior.

AVAILABLE SCENARIOS:

	fifo-partial:     One payment spread oldest-first over three materials
	job-and-material: Hourly job settled, material still pending
	payment-reversal: Job covered by two payments; delete one to see it revert
	multi-client:     Several clients for the all-clients summary view

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create clients
 3. Add items and payments through the Service, so every step is reconciled

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "fifo-partial"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a scenarioData entry to scenarioFixtures

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context
  - settlement/service.go: Operations used to load the data
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fifo-partial",
		Name:        "FIFO Partial Allocation",
		Description: "Materials of 100, 50 and 30 with a single 120 payment: first settled, second partial, third untouched",
	},
	{
		ID:          "job-and-material",
		Name:        "Job and Material",
		Description: "5h job at 20/h settled by a 100 payment; 40 material left as debt",
	},
	{
		ID:          "payment-reversal",
		Name:        "Payment Reversal",
		Description: "A 100 job covered by payments of 60 and 40; delete either payment to see the job revert",
	},
	{
		ID:          "multi-client",
		Name:        "Multiple Clients",
		Description: "Three clients with credit, debt and a fully settled account",
	},
}

type scenarioClient struct {
	id   string
	name string
	rate string
}

type scenarioJob struct {
	id, client string
	date       settlement.Date
	hours      string
}

type scenarioMaterial struct {
	id, client string
	date       settlement.Date
	cost       string
}

type scenarioPayment struct {
	id, client string
	date       settlement.Date
	amount     string
}

type scenarioData struct {
	clients   []scenarioClient
	jobs      []scenarioJob
	materials []scenarioMaterial
	payments  []scenarioPayment
}

func day(month time.Month, d int) settlement.Date { return settlement.NewDate(2025, month, d) }

var scenarioFixtures = map[string]scenarioData{
	"fifo-partial": {
		clients: []scenarioClient{{"acme", "Acme Builders", "20"}},
		materials: []scenarioMaterial{
			{"m-1", "acme", day(time.January, 10), "100"},
			{"m-2", "acme", day(time.January, 11), "50"},
			{"m-3", "acme", day(time.January, 12), "30"},
		},
		payments: []scenarioPayment{{"p-1", "acme", day(time.January, 5), "120"}},
	},
	"job-and-material": {
		clients:   []scenarioClient{{"blue", "Blue Plumbing", "20"}},
		jobs:      []scenarioJob{{"j-1", "blue", day(time.January, 1), "5"}},
		materials: []scenarioMaterial{{"m-1", "blue", day(time.January, 2), "40"}},
		payments:  []scenarioPayment{{"p-1", "blue", day(time.January, 1), "100"}},
	},
	"payment-reversal": {
		clients: []scenarioClient{{"cedar", "Cedar Homes", "25"}},
		jobs:    []scenarioJob{{"j-1", "cedar", day(time.February, 3), "4"}},
		payments: []scenarioPayment{
			{"p-1", "cedar", day(time.February, 4), "60"},
			{"p-2", "cedar", day(time.February, 5), "40"},
		},
	},
	"multi-client": {
		clients: []scenarioClient{
			{"acme", "Acme Builders", "30"},
			{"blue", "Blue Plumbing", "45"},
			{"cedar", "Cedar Homes", "25"},
		},
		jobs: []scenarioJob{
			{"j-a1", "acme", day(time.March, 3), "8"},
			{"j-a2", "acme", day(time.March, 10), "6.5"},
			{"j-b1", "blue", day(time.March, 4), "2"},
			{"j-c1", "cedar", day(time.March, 5), "4"},
		},
		materials: []scenarioMaterial{
			{"m-a1", "acme", day(time.March, 3), "120.50"},
			{"m-b1", "blue", day(time.March, 4), "35"},
		},
		payments: []scenarioPayment{
			{"p-a1", "acme", day(time.March, 15), "300"},
			{"p-b1", "blue", day(time.March, 20), "200"},
			{"p-c1", "cedar", day(time.March, 6), "100"},
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, ok := scenarioFixtures[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.loadScenario(ctx, data); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, data scenarioData) error {
	for _, c := range data.clients {
		rate, err := settlement.ParseMoney("hourly_rate", c.rate)
		if err != nil {
			return err
		}
		if _, err := h.Service.CreateClient(ctx, settlement.Client{
			ID:         settlement.ClientID(c.id),
			Name:       c.name,
			HourlyRate: rate,
		}); err != nil {
			return fmt.Errorf("client %s: %w", c.id, err)
		}
	}

	for _, j := range data.jobs {
		hours, err := decimal.NewFromString(j.hours)
		if err != nil {
			return err
		}
		job := settlement.Job{
			ItemHeader: settlement.ItemHeader{ID: settlement.ItemID(j.id), ClientID: settlement.ClientID(j.client), Date: j.date},
			Hours:      hours,
		}
		if _, err := h.Service.OnItemCreated(ctx, job); err != nil {
			return fmt.Errorf("job %s: %w", j.id, err)
		}
	}

	for _, m := range data.materials {
		mat := settlement.Material{
			ItemHeader: settlement.ItemHeader{ID: settlement.ItemID(m.id), ClientID: settlement.ClientID(m.client), Date: m.date},
			Cost:       settlement.MustMoney(m.cost),
		}
		if _, err := h.Service.OnItemCreated(ctx, mat); err != nil {
			return fmt.Errorf("material %s: %w", m.id, err)
		}
	}

	for _, p := range data.payments {
		payment := settlement.Payment{
			ID:       settlement.PaymentID(p.id),
			ClientID: settlement.ClientID(p.client),
			Date:     p.date,
			Amount:   settlement.MustMoney(p.amount),
		}
		if _, err := h.Service.OnPaymentCreated(ctx, payment); err != nil {
			return fmt.Errorf("payment %s: %w", p.id, err)
		}
	}
	return nil
}
