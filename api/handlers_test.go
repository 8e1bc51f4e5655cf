/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- One-shot allocation endpoint
- Cost table lifecycle (closure, land, monthly costs, allocations)
- Schedule creation and the settlement endpoints
- Competency report endpoint
- Error status mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edifica/obra-engine/events"
	"github.com/edifica/obra-engine/settlement"
	"github.com/edifica/obra-engine/store/kv"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := kv.New(kv.NewMemory())
	orch := settlement.NewOrchestrator(store, events.Noop{})
	h := NewHandler(store, orch, NewMetrics())
	return NewRouter(h)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =============================================================================
// ALLOCATION
// =============================================================================

func TestAllocateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a total that does not divide evenly across three weights
	req := AllocateRequest{Total: "100.00", Weights: []string{"1.0", "1.0", "1.0"}}

	// WHEN: allocating
	rec := doJSON(t, srv, http.MethodPost, "/api/allocate", req)

	// THEN: shares close exactly on the total, remainder on the first index
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AllocateResponse](t, rec)
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, resp.Shares)
	assert.Equal(t, "100.00", resp.Sum)
}

func TestAllocateEndpoint_InvalidInput(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/allocate", AllocateRequest{Total: "abc", Weights: []string{"1.0"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/allocate", AllocateRequest{Total: "10.00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCostTableLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a draft table whose principal weights sum to 100
	create := CreateCostTableRequest{
		ProjectID: "OB01",
		Principal: []DraftShareDTO{
			{UnitID: "AP101", Weight: "40.0"},
			{UnitID: "AP102", Weight: "35.0"},
		},
		Special: []DraftShareDTO{
			{UnitID: "LOJA1", Weight: "25.0", Label: "Loja"},
		},
	}

	// WHEN: closing it
	rec := doJSON(t, srv, http.MethodPost, "/api/cost-tables", create)

	// THEN: version 1 with every share colored
	require.Equal(t, http.StatusCreated, rec.Code)
	table := decode[CostTableDTO](t, rec)
	assert.Equal(t, 1, table.Version)
	require.Len(t, table.Shares, 3)
	for _, s := range table.Shares {
		assert.NotEmpty(t, s.Color)
	}

	// WHEN: recording land value and one monthly cost
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables/OB01/land", SetLandValueRequest{Amount: "120000.00"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables/OB01/monthly", AddMonthlyCostRequest{Competency: "05/2026", Amount: "9000.00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// THEN: the land split closes on the land value
	rec = doJSON(t, srv, http.MethodGet, "/api/cost-tables/OB01/allocations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	land := decode[AllocationReportDTO](t, rec)
	assert.Equal(t, "land", land.Source)
	assert.Equal(t, "120000.00", land.Total)

	// AND: the monthly split closes on the recorded cost
	rec = doJSON(t, srv, http.MethodGet, "/api/cost-tables/OB01/allocations?competency=05/2026", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	month := decode[AllocationReportDTO](t, rec)
	assert.Equal(t, "05/2026", month.Source)
	assert.Equal(t, "9000.00", month.Total)
}

func TestCostTableErrors(t *testing.T) {
	srv := newTestServer(t)

	// Unknown project is 404
	rec := doJSON(t, srv, http.MethodGet, "/api/cost-tables/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Non-positive weight is 400
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables", CreateCostTableRequest{
		ProjectID: "OB01",
		Principal: []DraftShareDTO{{UnitID: "AP101", Weight: "0.0"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Create a valid table, then a duplicate monthly cost is 409
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables", CreateCostTableRequest{
		ProjectID: "OB01",
		Principal: []DraftShareDTO{{UnitID: "AP101", Weight: "100.0"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables/OB01/monthly", AddMonthlyCostRequest{Competency: "05/2026", Amount: "9000.00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables/OB01/monthly", AddMonthlyCostRequest{Competency: "05/2026", Amount: "1.00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCostTableReclosureBumpsVersion(t *testing.T) {
	srv := newTestServer(t)

	create := CreateCostTableRequest{
		ProjectID: "OB01",
		Principal: []DraftShareDTO{{UnitID: "AP101", Weight: "100.0"}},
		LandValue: "50000.00",
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/cost-tables", create)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Re-closing carries the land value over and bumps the version
	create.LandValue = ""
	create.Principal = []DraftShareDTO{
		{UnitID: "AP101", Weight: "60.0"},
		{UnitID: "AP102", Weight: "40.0"},
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/cost-tables", create)
	require.Equal(t, http.StatusCreated, rec.Code)
	table := decode[CostTableDTO](t, rec)
	assert.Equal(t, 2, table.Version)
	assert.Equal(t, "50000.00", table.LandValue)
	assert.Len(t, table.Shares, 2)
}

// =============================================================================
// SCHEDULES AND SETTLEMENT
// =============================================================================

func createPlan(t *testing.T, srv http.Handler, unitID string, count int, amount string) []InstallmentDTO {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/units/"+unitID+"/plan", CreatePlanRequest{
		ProjectID: "OB01",
		Items: []PlanItemDTO{
			{Type: "Mensal", FirstDue: "2026-03-10", Count: count, Amount: amount},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[[]InstallmentDTO](t, rec)
}

func TestCreatePlanAndListInstallments(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a three-installment monthly schedule
	installments := createPlan(t, srv, "AP101", 3, "500.00")
	require.Len(t, installments, 3)
	assert.Equal(t, "2026-03-10", installments[0].DueDate)
	assert.Equal(t, "2026-05-10", installments[2].DueDate)

	// THEN: the listing shows every installment open
	rec := doJSON(t, srv, http.MethodGet, "/api/units/AP101/installments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]InstallmentDTO](t, rec)
	require.Len(t, listed, 3)
	for _, inst := range listed {
		assert.Equal(t, "ABERTA", inst.Status)
	}
}

func TestCreatePlan_RejectedOnceSettled(t *testing.T) {
	srv := newTestServer(t)
	installments := createPlan(t, srv, "AP101", 2, "500.00")

	rec := doJSON(t, srv, http.MethodPost, "/api/installments/"+installments[0].ID+"/settle", SettleOneRequest{
		Amount: "500.00", Date: "2026-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/units/AP101/plan", CreatePlanRequest{
		ProjectID: "OB01",
		Items:     []PlanItemDTO{{Type: "Mensal", FirstDue: "2026-06-10", Count: 1, Amount: "100.00"}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettleOneEndpoint(t *testing.T) {
	srv := newTestServer(t)
	installments := createPlan(t, srv, "AP101", 1, "1000.00")
	id := installments[0].ID

	// WHEN: paying 700 with the discount flag
	rec := doJSON(t, srv, http.MethodPost, "/api/installments/"+id+"/settle", SettleOneRequest{
		Amount: "700.00", Date: "2026-03-15", WithDiscount: true,
	})

	// THEN: one payment and one gap-closing discount in the same batch
	require.Equal(t, http.StatusCreated, rec.Code)
	batch := decode[BatchDTO](t, rec)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, "700.00", batch.Received)
	assert.Equal(t, "300.00", batch.Discounted)
	assert.Contains(t, batch.ID, "PAG-")
	assert.Equal(t, []string{id}, batch.Settled)

	// AND: the status endpoint reflects the settlement
	rec = doJSON(t, srv, http.MethodGet, "/api/installments/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, "QUITADA", status.State)
	assert.Equal(t, "700.00", status.Received)
	assert.Equal(t, "300.00", status.Discount)
	assert.Equal(t, "0.00", status.Outstanding)
}

func TestSettleOneEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t)
	installments := createPlan(t, srv, "AP101", 1, "1000.00")
	id := installments[0].ID

	// Unknown installment is 404
	rec := doJSON(t, srv, http.MethodPost, "/api/installments/nope/settle", SettleOneRequest{
		Amount: "10.00", Date: "2026-03-15",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unparseable amount is 400
	rec = doJSON(t, srv, http.MethodPost, "/api/installments/"+id+"/settle", SettleOneRequest{
		Amount: "abc", Date: "2026-03-15",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Re-settling without confirmation is 409
	rec = doJSON(t, srv, http.MethodPost, "/api/installments/"+id+"/settle", SettleOneRequest{
		Amount: "1000.00", Date: "2026-03-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/installments/"+id+"/settle", SettleOneRequest{
		Amount: "50.00", Date: "2026-03-16",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettleLotEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createPlan(t, srv, "AP101", 3, "500.00")

	// WHEN: 1200 walks three mensais of 500 in due-date order
	rec := doJSON(t, srv, http.MethodPost, "/api/units/AP101/settle-lot", SettleLotRequest{
		Type: "Mensal", Amount: "1200.00", Date: "2026-03-20",
	})

	// THEN: two fully settled, the surplus parked on the second
	require.Equal(t, http.StatusCreated, rec.Code)
	batch := decode[BatchDTO](t, rec)
	assert.Contains(t, batch.ID, "LOTE-")
	assert.Equal(t, "1200.00", batch.Received)
	assert.Len(t, batch.Settled, 2)
}

func TestSettleLotEndpoint_AmountTooSmall(t *testing.T) {
	srv := newTestServer(t)
	createPlan(t, srv, "AP101", 3, "500.00")

	rec := doJSON(t, srv, http.MethodPost, "/api/units/AP101/settle-lot", SettleLotRequest{
		Type: "Mensal", Amount: "499.99", Date: "2026-03-20",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSettleUnitEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createPlan(t, srv, "AP101", 2, "500.00")

	// Missing confirmation flags is 409
	rec := doJSON(t, srv, http.MethodPost, "/api/units/AP101/settle", SettleUnitRequest{
		Amount: "700.00", Date: "2026-03-20", Confirm: true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: confirmed, the amount plus discounts closes the whole unit
	rec = doJSON(t, srv, http.MethodPost, "/api/units/AP101/settle", SettleUnitRequest{
		Amount: "700.00", Date: "2026-03-20", Confirm: true, ConfirmListed: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	batch := decode[BatchDTO](t, rec)
	assert.Contains(t, batch.ID, "QUITAR-")
	assert.Equal(t, "700.00", batch.Received)
	assert.Equal(t, "300.00", batch.Discounted)
	assert.Len(t, batch.Settled, 2)

	// THEN: nothing remains open
	rec = doJSON(t, srv, http.MethodGet, "/api/units/AP101/installments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, inst := range decode[[]InstallmentDTO](t, rec) {
		assert.Equal(t, "QUITADA", inst.Status)
	}
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	installments := createPlan(t, srv, "AP101", 1, "1000.00")

	rec := doJSON(t, srv, http.MethodPost, "/api/installments/"+installments[0].ID+"/settle", SettleOneRequest{
		Amount: "700.00", Date: "2026-03-15", WithDiscount: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: building the March report
	rec = doJSON(t, srv, http.MethodGet, "/api/reports/2026/3", nil)

	// THEN: previsto + variacao + desconto == recebido
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[ReportDTO](t, rec)
	assert.Equal(t, "03/2026", rep.Competency)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "1000.00", rep.Rows[0].Previsto)
	assert.Equal(t, "-300.00", rep.Rows[0].Desconto)
	assert.Equal(t, "700.00", rep.Rows[0].Recebido)
	assert.Equal(t, "0.00", rep.Rows[0].Variacao)
	assert.Equal(t, "700.00", rep.Total.Recebido)
}

func TestReportEndpoint_InvalidCompetency(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/2026/13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/reports/abcd/3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS AND METRICS
// =============================================================================

func TestScenarioEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 4)

	for _, s := range list {
		rec = doJSON(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("scenario %s", s.ID))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[ScenarioDTO](t, rec)
	assert.Equal(t, list[len(list)-1].ID, current.ID)

	rec = doJSON(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	installments := createPlan(t, srv, "AP101", 1, "100.00")

	rec := doJSON(t, srv, http.MethodPost, "/api/installments/"+installments[0].ID+"/settle", SettleOneRequest{
		Amount: "100.00", Date: "2026-03-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "obra_settlements_total")
	assert.Contains(t, body, "obra_ledger_entries_total")
}
