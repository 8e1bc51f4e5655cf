/*
handlers.go - HTTP API handlers for the cost and settlement engine

PURPOSE:

	Exposes the allocation, settlement and reporting engines via REST API.
	Handles HTTP request/response, JSON serialization, and delegates to
	domain logic.

ENDPOINTS:

	Allocation:
	  POST   /api/allocate                              One-shot split of a total across weights
	  POST   /api/cost-tables                           Close a weight table and persist it
	  GET    /api/cost-tables/{projectID}               Fetch a project's table
	  POST   /api/cost-tables/{projectID}/land          Set the shared land value
	  POST   /api/cost-tables/{projectID}/monthly       Record one competency's shared cost
	  GET    /api/cost-tables/{projectID}/allocations   Per-unit split (land or ?competency=mm/aaaa)

	Installments:
	  POST   /api/units/{unitID}/plan                   Generate and persist a payment schedule
	  GET    /api/units/{unitID}/installments           Schedule with derived statuses
	  GET    /api/installments/{id}/status              Derived status of one installment

	Settlement:
	  POST   /api/installments/{id}/settle              Pay into a single installment
	  POST   /api/units/{unitID}/settle-lot             Lump sum across one installment type
	  POST   /api/units/{unitID}/settle                 Close every open installment of a unit

	Reports:
	  GET    /api/reports/{year}/{month}                Competency receipts report

ARCHITECTURE:

	Handler struct holds all dependencies:
	- Store: persistence (installments, ledger, cost tables)
	- Orchestrator: settlement strategies
	- Ledger: derived statuses
	- Aggregator: competency reports
	- Metrics: prometheus counters

REQUEST FLOW:
 1. Parse HTTP request
 2. Validate input
 3. Call domain logic (orchestrator, ledger, aggregator)
 4. Serialize response
 5. Handle errors

ERROR HANDLING:

	Errors are returned as JSON with appropriate HTTP status:
	- 400: Validation errors, invalid input
	- 404: Resource not found
	- 409: Conflict (duplicate cost, re-settle without confirmation)
	- 422: Settlement impossible with the given amount or candidates
	- 500: Internal errors

SECURITY NOTE:

	Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/report"
	"github.com/edifica/obra-engine/settlement"
)

// Storage is the persistence surface the API needs. Both store/kv and
// store/sqlite satisfy it.
type Storage interface {
	settlement.Store
	allocation.TableStore
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Store        Storage
	Orchestrator *settlement.Orchestrator
	Ledger       *settlement.Ledger
	Aggregator   *report.Aggregator
	Metrics      *Metrics

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the engines on top of the given store.
func NewHandler(store Storage, orch *settlement.Orchestrator, metrics *Metrics) *Handler {
	return &Handler{
		Store:        store,
		Orchestrator: orch,
		Ledger:       settlement.NewLedger(store),
		Aggregator:   report.NewAggregator(store),
		Metrics:      metrics,
	}
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// Allocate splits a total across raw weights without touching storage.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := finance.ParseMoney(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, "At least one weight is required", nil)
		return
	}
	weights := make([]finance.Weight, len(req.Weights))
	for i, raw := range req.Weights {
		wt, err := finance.ParseWeight(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid weight at position %d", i), err)
			return
		}
		weights[i] = wt
	}

	shares := allocation.Allocate(total, weights)
	resp := AllocateResponse{Shares: make([]string, len(shares))}
	var sum finance.Money
	for i, s := range shares {
		resp.Shares[i] = s.String()
		sum = sum.Add(s)
	}
	resp.Sum = sum.String()
	writeJSON(w, http.StatusOK, resp)
}

// CreateCostTable closes the submitted weight rows and persists the
// table. Re-closing an existing project's table bumps its version and
// carries the recorded costs over.
func (h *Handler) CreateCostTable(w http.ResponseWriter, r *http.Request) {
	var req CreateCostTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", nil)
		return
	}

	principal, err := parseDraftShares(req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal shares", err)
		return
	}
	special, err := parseDraftShares(req.Special)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid special shares", err)
		return
	}

	shares, err := allocation.CloseWeights(principal, special)
	if err != nil {
		writeEngineError(w, "Weight table closure failed", err)
		return
	}

	now := time.Now().UTC()
	table := &allocation.CostTable{
		ProjectID: req.ProjectID,
		Shares:    shares,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.LandValue != "" {
		land, err := finance.ParseMoney(req.LandValue)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid land value", err)
			return
		}
		table.LandValue = land
	}

	// Re-closure keeps the previous table's costs and bumps its version.
	if prev, err := h.Store.Table(r.Context(), req.ProjectID); err == nil {
		table.Version = prev.Version + 1
		table.CreatedAt = prev.CreatedAt
		table.MonthlyCosts = prev.MonthlyCosts
		if table.LandValue.IsZero() {
			table.LandValue = prev.LandValue
		}
	} else if !finance.IsNotFound(err) {
		writeError(w, http.StatusInternalServerError, "Failed to load existing table", err)
		return
	}

	if err := h.Store.SaveTable(r.Context(), table); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save cost table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostTableDTO(table))
}

// GetCostTable returns a project's persisted table.
func (h *Handler) GetCostTable(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	table, err := h.Store.Table(r.Context(), projectID)
	if err != nil {
		writeEngineError(w, "Failed to load cost table", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostTableDTO(table))
}

// SetLandValue records the land value shared across the table.
func (h *Handler) SetLandValue(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req SetLandValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := finance.ParseMoney(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Invalid land value", err)
		return
	}

	table, err := h.Store.Table(r.Context(), projectID)
	if err != nil {
		writeEngineError(w, "Failed to load cost table", err)
		return
	}
	table.LandValue = amount
	table.UpdatedAt = time.Now().UTC()
	if err := h.Store.SaveTable(r.Context(), table); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save cost table", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostTableDTO(table))
}

// AddMonthlyCost records one competency's shared cost on the table.
func (h *Handler) AddMonthlyCost(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req AddMonthlyCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	competency, err := finance.ParseCompetency(req.Competency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid competency, expected mm/aaaa", err)
		return
	}
	amount, err := finance.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	table, err := h.Store.Table(r.Context(), projectID)
	if err != nil {
		writeEngineError(w, "Failed to load cost table", err)
		return
	}
	cost := allocation.MonthlyCost{
		ID:         uuid.NewString(),
		Competency: competency,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := table.AddMonthlyCost(cost); err != nil {
		writeEngineError(w, "Failed to add monthly cost", err)
		return
	}
	table.UpdatedAt = time.Now().UTC()
	if err := h.Store.SaveTable(r.Context(), table); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save cost table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostTableDTO(table))
}

// GetAllocations splits the land value (default) or one competency's
// cost (?competency=mm/aaaa) across the table's units.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	table, err := h.Store.Table(r.Context(), projectID)
	if err != nil {
		writeEngineError(w, "Failed to load cost table", err)
		return
	}

	source := "land"
	var allocations []allocation.UnitAllocation
	var total finance.Money
	if raw := r.URL.Query().Get("competency"); raw != "" {
		competency, err := finance.ParseCompetency(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid competency, expected mm/aaaa", err)
			return
		}
		allocations, err = table.AllocateMonth(competency)
		if err != nil {
			writeEngineError(w, "No cost recorded for competency", err)
			return
		}
		source = competency.String()
	} else {
		allocations = table.AllocateLand()
	}

	resp := AllocationReportDTO{
		ProjectID:   projectID,
		Source:      source,
		Allocations: make([]UnitAllocationDTO, 0, len(allocations)),
	}
	for _, a := range allocations {
		resp.Allocations = append(resp.Allocations, UnitAllocationDTO{UnitID: a.UnitID, Amount: a.Amount.String()})
		total = total.Add(a.Amount)
	}
	resp.Total = total.String()
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// CreatePlan generates a unit's schedule and persists it. Fails once
// the unit has ledger movement.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", nil)
		return
	}

	items := make([]settlement.PlanItem, 0, len(req.Items))
	for i, item := range req.Items {
		firstDue, err := finance.ParseDate(item.FirstDue)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid first_due at item %d", i), err)
			return
		}
		amount, err := finance.ParseMoney(item.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount at item %d", i), err)
			return
		}
		items = append(items, settlement.PlanItem{
			Type:     settlement.InstallmentType(item.Type),
			FirstDue: firstDue,
			Count:    item.Count,
			Amount:   amount,
		})
	}

	installments, err := settlement.GeneratePlan(req.ProjectID, unitID, items, time.Now().UTC())
	if err != nil {
		writeEngineError(w, "Plan generation failed", err)
		return
	}
	if err := h.Store.SaveInstallments(r.Context(), unitID, installments); err != nil {
		writeEngineError(w, "Failed to save schedule", err)
		return
	}

	dtos := make([]InstallmentDTO, 0, len(installments))
	for _, inst := range installments {
		dtos = append(dtos, toInstallmentDTO(inst, string(settlement.StateAberta)))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// ListInstallments returns a unit's schedule with derived statuses.
func (h *Handler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	installments, err := h.Store.InstallmentsByUnit(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list installments", err)
		return
	}
	statuses, err := h.Ledger.UnitStatuses(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive statuses", err)
		return
	}

	dtos := make([]InstallmentDTO, 0, len(installments))
	for _, inst := range installments {
		dtos = append(dtos, toInstallmentDTO(inst, string(statuses[inst.ID].State)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatus returns the derived status of one installment.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, err := h.Store.Installment(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Installment not found", err)
		return
	}
	status, err := h.Ledger.Status(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to derive status", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(id, inst.Expected, status))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// SettleOne pays into a single installment, optionally closing the gap
// with a discount.
func (h *Handler) SettleOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SettleOneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, date, ok := parseAmountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}

	batch, err := h.Orchestrator.SettleOne(r.Context(), settlement.SettleOneInput{
		InstallmentID:   id,
		Amount:          amount,
		Date:            date,
		WithDiscount:    req.WithDiscount,
		ConfirmResettle: req.ConfirmResettle,
	})
	if err != nil {
		writeEngineError(w, "Settlement failed", err)
		return
	}
	h.Metrics.RecordBatch(batch)
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// SettleLot applies a lump sum to one installment type of a unit.
func (h *Handler) SettleLot(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	var req SettleLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, date, ok := parseAmountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}

	batch, err := h.Orchestrator.SettleLot(r.Context(), settlement.SettleLotInput{
		UnitID:        unitID,
		Type:          settlement.InstallmentType(req.Type),
		Amount:        amount,
		Date:          date,
		Discount:      req.Discount,
		RequiredCount: req.RequiredCount,
	})
	if err != nil {
		writeEngineError(w, "Lot settlement failed", err)
		return
	}
	h.Metrics.RecordBatch(batch)
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// SettleUnit closes every open installment of a unit. Requires both
// confirmation flags.
func (h *Handler) SettleUnit(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	var req SettleUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, date, ok := parseAmountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}

	batch, err := h.Orchestrator.SettleUnit(r.Context(), settlement.SettleUnitInput{
		UnitID:        unitID,
		Amount:        amount,
		Date:          date,
		Confirm:       req.Confirm,
		ConfirmListed: req.ConfirmListed,
	})
	if err != nil {
		writeEngineError(w, "Unit settlement failed", err)
		return
	}
	h.Metrics.RecordBatch(batch)
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport builds the receipts report for one competency.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	competency, err := finance.NewCompetency(time.Month(month), year)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid competency", err)
		return
	}

	rep, err := h.Aggregator.Build(r.Context(), competency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDraftShares(rows []DraftShareDTO) ([]allocation.DraftShare, error) {
	out := make([]allocation.DraftShare, 0, len(rows))
	for _, row := range rows {
		if row.UnitID == "" {
			return nil, fmt.Errorf("missing unit_id")
		}
		weight, err := finance.ParseWeight(row.Weight)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", row.UnitID, err)
		}
		out = append(out, allocation.DraftShare{UnitID: row.UnitID, Weight: weight, Label: row.Label})
	}
	return out, nil
}

func parseAmountAndDate(w http.ResponseWriter, rawAmount, rawDate string) (finance.Money, finance.Date, bool) {
	amount, err := finance.ParseMoney(rawAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return 0, finance.Date{}, false
	}
	date, err := finance.ParseDate(rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected yyyy-mm-dd", err)
		return 0, finance.Date{}, false
	}
	return amount, date, true
}

func toStatusDTO(installmentID string, expected finance.Money, st settlement.Status) StatusDTO {
	return StatusDTO{
		InstallmentID: installmentID,
		State:         string(st.State),
		Received:      st.Received.String(),
		Discount:      st.Discount.String(),
		Quitacao:      st.Quitacao.String(),
		Variance:      st.Variance.String(),
		Outstanding:   st.Outstanding(expected).String(),
	}
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

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, finance.ErrAlreadySettled),
		errors.Is(err, finance.ErrDuplicateCost),
		errors.Is(err, finance.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, finance.ErrNoSettlableInstallment),
		errors.Is(err, finance.ErrInsufficientCandidates):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
