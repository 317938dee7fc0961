/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the settlement Service via REST API. Handles HTTP request/response,
  JSON serialization, request validation, and delegates every financial
  change to the Service so that it is reconciled before the response is
  written.

ENDPOINTS:
  Clients:
    GET    /api/clients                      List clients
    POST   /api/clients                      Create client
    GET    /api/clients/{id}                 Client record
    PUT    /api/clients/{id}                 Rename / change hourly rate
    GET    /api/clients/{id}/summary         Debt, credit, payment usage
    GET    /api/clients/{id}/items           Jobs and materials
    GET    /api/clients/{id}/pending         Unsettled items with balances
    GET    /api/clients/{id}/payments        Payments
    GET    /api/clients/{id}/allocations     Allocations (?settled=true|false)
    GET    /api/clients/{id}/runs            Reconciliation history (?limit=N)
    POST   /api/clients/{id}/reconcile       Rebuild allocations now
    POST   /api/clients/{id}/settle          Manual settlement of items

  Items and payments:
    POST/PUT/DELETE /api/jobs[/{id}]
    POST/PUT/DELETE /api/materials[/{id}]
    POST/PUT/DELETE /api/payments[/{id}]

  Reconciliation:
    GET    /api/summaries                    Summary of every client
    POST   /api/reconciliation/run           Reconcile every client

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Client, item or payment not found
  - 409: Duplicate payment
  - 422: Insufficient credit for a manual settlement
  - 500: Reconciliation or storage failure

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the storage the API runs on.
type Backend interface {
	settlement.TxStore
	settlement.RunStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *settlement.Service
	Store   Backend
	Logger  zerolog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil service is built over store.
func NewHandler(store Backend, svc *settlement.Service, logger zerolog.Logger) *Handler {
	if svc == nil {
		svc = settlement.NewService(store, settlement.NewEngine(logger), settlement.NewCoordinator(), logger)
	}
	return &Handler{
		Service: svc,
		Store:   store,
		Logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": dtos})
}

// CreateClient creates a client.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if req.HourlyRate == "" {
		req.HourlyRate = "0"
	}
	rate, err := settlement.ParseMoney("hourly_rate", req.HourlyRate.String())
	if err != nil {
		h.writeServiceError(w, "Invalid hourly rate", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	summary, err := h.Service.CreateClient(r.Context(), settlement.Client{
		ID:         settlement.ClientID(req.ID),
		Name:       req.Name,
		HourlyRate: rate,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, ToSummaryDTO(*summary))
}

// GetClient returns a client record.
// GET /api/clients/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.Store.GetClient(r.Context(), clientParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// UpdateClient renames a client or changes its hourly rate.
// PUT /api/clients/{id}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	changes := settlement.ClientChanges{Name: req.Name}
	if req.HourlyRate != nil {
		rate, err := settlement.ParseMoney("hourly_rate", req.HourlyRate.String())
		if err != nil {
			h.writeServiceError(w, "Invalid hourly rate", err)
			return
		}
		changes.HourlyRate = &rate
	}

	summary, err := h.Service.UpdateClient(r.Context(), clientParam(r), changes)
	if err != nil {
		h.writeServiceError(w, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// GetSummary returns the client's debt and credit picture.
// GET /api/clients/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetClientSummary(r.Context(), clientParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// ListSummaries returns a summary for every client.
// GET /api/summaries
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.ListSummaries(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list summaries", err)
		return
	}
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = ToSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": dtos})
}

// ListItems returns the client's jobs and materials, oldest first.
// GET /api/clients/{id}/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client, err := h.Store.GetClient(ctx, clientParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get client", err)
		return
	}
	items, err := h.Store.ListItems(ctx, client.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item, client.HourlyRate)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": dtos})
}

// ListPending returns unsettled items with what is left to pay.
// GET /api/clients/{id}/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := clientParam(r)
	client, err := h.Store.GetClient(ctx, id)
	if err != nil {
		h.writeServiceError(w, "Failed to get client", err)
		return
	}
	pending, err := h.Service.PendingItems(ctx, id)
	if err != nil {
		h.writeServiceError(w, "Failed to list pending items", err)
		return
	}

	dtos := make([]PendingItemDTO, len(pending))
	for i, p := range pending {
		dtos[i] = PendingItemDTO{
			ItemDTO:     toItemDTO(p.Item, client.HourlyRate),
			Allocated:   p.Allocated,
			Outstanding: p.Outstanding,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": dtos})
}

// ListPayments returns the client's payments, oldest first.
// GET /api/clients/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := clientParam(r)
	if _, err := h.Store.GetClient(ctx, id); err != nil {
		h.writeServiceError(w, "Failed to get client", err)
		return
	}
	payments, err := h.Store.ListPayments(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": dtos})
}

// ListAllocations returns the client's allocations.
// GET /api/clients/{id}/allocations?settled=true
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	var settled *bool
	if raw := r.URL.Query().Get("settled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid settled filter", err)
			return
		}
		settled = &v
	}

	allocs, err := h.Service.Allocations(r.Context(), clientParam(r), settled)
	if err != nil {
		h.writeServiceError(w, "Failed to list allocations", err)
		return
	}
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": dtos})
}

// ListRuns returns reconciliation history, newest first.
// GET /api/clients/{id}/runs?limit=20
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Service.Runs(r.Context(), clientParam(r), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to get reconciliation runs", err)
		return
	}
	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// ReconcileClient rebuilds one client's allocations.
// POST /api/clients/{id}/reconcile
func (h *Handler) ReconcileClient(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Reconcile(r.Context(), clientParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// SettleItems marks items settled on request, subject to available credit.
// POST /api/clients/{id}/settle
func (h *Handler) SettleItems(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "At least one item is required", nil)
		return
	}

	refs := make([]settlement.ItemRef, 0, len(req.Items))
	for _, it := range req.Items {
		kind, err := settlement.ParseItemKind(it.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid item kind", err)
			return
		}
		refs = append(refs, settlement.ItemRef{Kind: kind, ID: settlement.ItemID(it.ID)})
	}

	summary, err := h.Service.ForceSettleItems(r.Context(), clientParam(r), refs)
	if err != nil {
		h.writeServiceError(w, "Failed to settle items", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// ReconcileAll reconciles every client.
// POST /api/reconciliation/run
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	done, err := h.Service.ReconcileAll(r.Context())
	resp := map[string]any{"reconciled": done}
	if err != nil {
		resp["errors"] = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// JOB / MATERIAL HANDLERS
// =============================================================================

// CreateJob records billable hours.
// POST /api/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	hours, err := settlement.ParseHours("hours", req.Hours.String())
	if err != nil {
		h.writeServiceError(w, "Invalid hours", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	job := settlement.Job{
		ItemHeader: settlement.ItemHeader{
			ID:       settlement.ItemID(req.ID),
			ClientID: settlement.ClientID(req.ClientID),
			Date:     date,
		},
		Hours: hours,
	}
	summary, err := h.Service.OnItemCreated(r.Context(), job)
	if err != nil {
		h.writeServiceError(w, "Failed to create job", err)
		return
	}
	writeJSON(w, http.StatusCreated, ToSummaryDTO(*summary))
}

// UpdateJob changes a job's date or hours.
// PUT /api/jobs/{id}
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var req UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var changes settlement.ItemChanges
	if req.Date != nil {
		d, err := settlement.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		changes.Date = &d
	}
	if req.Hours != nil {
		hours, err := settlement.ParseHours("hours", req.Hours.String())
		if err != nil {
			h.writeServiceError(w, "Invalid hours", err)
			return
		}
		changes.Hours = &hours
	}

	h.updateItem(w, r, settlement.KindJob, changes)
}

// DeleteJob removes a job.
// DELETE /api/jobs/{id}
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, settlement.KindJob)
}

// CreateMaterial records a fixed-cost material.
// POST /api/materials
func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req CreateMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	cost, err := settlement.ParseMoney("cost", req.Cost.String())
	if err != nil {
		h.writeServiceError(w, "Invalid cost", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	material := settlement.Material{
		ItemHeader: settlement.ItemHeader{
			ID:       settlement.ItemID(req.ID),
			ClientID: settlement.ClientID(req.ClientID),
			Date:     date,
		},
		Cost: cost,
	}
	summary, err := h.Service.OnItemCreated(r.Context(), material)
	if err != nil {
		h.writeServiceError(w, "Failed to create material", err)
		return
	}
	writeJSON(w, http.StatusCreated, ToSummaryDTO(*summary))
}

// UpdateMaterial changes a material's date or cost.
// PUT /api/materials/{id}
func (h *Handler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	var req UpdateMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var changes settlement.ItemChanges
	if req.Date != nil {
		d, err := settlement.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		changes.Date = &d
	}
	if req.Cost != nil {
		cost, err := settlement.ParseMoney("cost", req.Cost.String())
		if err != nil {
			h.writeServiceError(w, "Invalid cost", err)
			return
		}
		changes.Cost = &cost
	}

	h.updateItem(w, r, settlement.KindMaterial, changes)
}

// DeleteMaterial removes a material.
// DELETE /api/materials/{id}
func (h *Handler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, settlement.KindMaterial)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request, kind settlement.ItemKind, changes settlement.ItemChanges) {
	ref := settlement.ItemRef{Kind: kind, ID: settlement.ItemID(chi.URLParam(r, "id"))}
	summary, err := h.Service.OnItemUpdated(r.Context(), ref, changes)
	if err != nil {
		h.writeServiceError(w, "Failed to update "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request, kind settlement.ItemKind) {
	ref := settlement.ItemRef{Kind: kind, ID: settlement.ItemID(chi.URLParam(r, "id"))}
	summary, err := h.Service.OnItemDeleted(r.Context(), ref)
	if err != nil {
		h.writeServiceError(w, "Failed to delete "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment records a payment. A payment with the same client, date and
// amount as an existing one is rejected as a duplicate.
// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	amount, err := settlement.ParseMoney("amount", req.Amount.String())
	if err != nil {
		h.writeServiceError(w, "Invalid amount", err)
		return
	}

	clientID := settlement.ClientID(req.ClientID)
	if dup, err := h.isDuplicatePayment(ctx, clientID, date, amount); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check for duplicates", err)
		return
	} else if dup {
		h.writeServiceError(w, "Payment already recorded", settlement.ErrDuplicatePayment)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	summary, err := h.Service.OnPaymentCreated(ctx, settlement.Payment{
		ID:       settlement.PaymentID(req.ID),
		ClientID: clientID,
		Date:     date,
		Amount:   amount,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, ToSummaryDTO(*summary))
}

// UpdatePayment changes a payment's date or amount.
// PUT /api/payments/{id}
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var changes settlement.PaymentChanges
	if req.Date != nil {
		d, err := settlement.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		changes.Date = &d
	}
	if req.Amount != nil {
		amount, err := settlement.ParseMoney("amount", req.Amount.String())
		if err != nil {
			h.writeServiceError(w, "Invalid amount", err)
			return
		}
		changes.Amount = &amount
	}

	summary, err := h.Service.OnPaymentUpdated(r.Context(), settlement.PaymentID(chi.URLParam(r, "id")), changes)
	if err != nil {
		h.writeServiceError(w, "Failed to update payment", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

// DeletePayment removes a payment; items it covered may revert to pending.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.OnPaymentDeleted(r.Context(), settlement.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSummaryDTO(*summary))
}

func (h *Handler) isDuplicatePayment(ctx context.Context, clientID settlement.ClientID, date settlement.Date, amount settlement.Money) (bool, error) {
	existing, err := h.Store.ListPayments(ctx, clientID)
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if p.Date.Equal(date) && p.Amount.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func clientParam(r *http.Request) settlement.ClientID {
	return settlement.ClientID(chi.URLParam(r, "id"))
}

func parseDateOrToday(s string) (settlement.Date, error) {
	if s == "" {
		return settlement.Today(), nil
	}
	return settlement.ParseDate(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps settlement errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var insufficient *settlement.InsufficientCreditError

	switch {
	case settlement.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &insufficient):
		shortfall := insufficient.Shortfall
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     message,
			Details:   err.Error(),
			Shortfall: &shortfall,
		})
	case errors.Is(err, settlement.ErrDuplicatePayment), errors.Is(err, settlement.ErrAlreadyExists):
		writeError(w, http.StatusConflict, message, err)
	case settlement.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.Logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
