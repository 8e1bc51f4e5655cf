/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates a cost table,
	payment schedules and ledger movement that demonstrate specific
	features.

AVAILABLE SCENARIOS:

	quadro-basico:     Closed weight table with land and monthly costs
	vendas-parceladas: Two sold units with schedules and partial payments
	quitacao-lote:     Lump-sum lot settlement over monthly installments
	fechamento-mes:    Movement spread over months for the receipts report

HOW SCENARIOS WORK:
 1. Reset the store when it supports it (clear all data)
 2. Close and save a weight table
 3. Generate per-unit schedules
 4. Run settlements through the orchestrator

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "vendas-parceladas"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Settlement and allocation handlers
  - settlement/orchestrator.go: Settlement strategies
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "quadro-basico",
		Name:        "Quadro de Custos",
		Description: "Closed weight table with land value and two monthly costs",
		Category:    "allocation",
	},
	{
		ID:          "vendas-parceladas",
		Name:        "Vendas Parceladas",
		Description: "Two sold units with schedules, one partially paid",
		Category:    "settlement",
	},
	{
		ID:          "quitacao-lote",
		Name:        "Quitação em Lote",
		Description: "Lump sum walking monthly installments in due-date order",
		Category:    "settlement",
	},
	{
		ID:          "fechamento-mes",
		Name:        "Fechamento do Mês",
		Description: "Payments and discounts spread over months for the receipts report",
		Category:    "report",
	},
}

// resetter is satisfied by stores that can be wiped (store/sqlite).
type resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario wipes the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if rs, ok := h.Store.(resetter); ok {
		if err := rs.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
			return
		}
	}

	var err error
	switch req.ScenarioID {
	case "quadro-basico":
		err = loadQuadroBasicoScenario(ctx, h)
	case "vendas-parceladas":
		err = loadVendasParceladasScenario(ctx, h)
	case "quitacao-lote":
		err = loadQuitacaoLoteScenario(ctx, h)
	case "fechamento-mes":
		err = loadFechamentoMesScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID, "status": "loaded"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadQuadroBasicoScenario: a four-unit table closed to 100, with the
// land value and two monthly costs recorded.
func loadQuadroBasicoScenario(ctx context.Context, h *Handler) error {
	shares, err := allocation.CloseWeights(
		[]allocation.DraftShare{
			{UnitID: "AP101", Weight: finance.MustParseWeight("30.0"), Label: "Final 1"},
			{UnitID: "AP102", Weight: finance.MustParseWeight("30.0"), Label: "Final 2"},
			{UnitID: "AP201", Weight: finance.MustParseWeight("30.0"), Label: "Final 1"},
		},
		[]allocation.DraftShare{
			{UnitID: "LOJA1", Weight: finance.MustParseWeight("10.0"), Label: "Loja térrea"},
		},
	)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	table := &allocation.CostTable{
		ProjectID: "OB-DEMO",
		Shares:    shares,
		LandValue: finance.MustParseMoney("850000.00"),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, raw := range []string{"42180.57", "39990.10"} {
		competency, err := finance.NewCompetency(time.Month(i+1), now.Year())
		if err != nil {
			return err
		}
		cost := allocation.MonthlyCost{
			ID:         uuid.NewString(),
			Competency: competency,
			Amount:     finance.MustParseMoney(raw),
			CreatedAt:  now,
		}
		if err := table.AddMonthlyCost(cost); err != nil {
			return err
		}
	}
	return h.Store.SaveTable(ctx, table)
}

// loadVendasParceladasScenario: two sold units; the first pays its
// entrada in full and one mensal partially.
func loadVendasParceladasScenario(ctx context.Context, h *Handler) error {
	today := finance.Today()
	for i, unitID := range []string{"AP101", "AP102"} {
		installments, err := settlement.GeneratePlan("OB-DEMO", unitID, []settlement.PlanItem{
			{Type: settlement.TypeEntrada, FirstDue: today, Count: 1, Amount: finance.MustParseMoney("25000.00")},
			{Type: settlement.TypeMensal, FirstDue: today.AddMonthsKeepDay(1), Count: 12, Amount: finance.MustParseMoney("4200.00")},
		}, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := h.Store.SaveInstallments(ctx, unitID, installments); err != nil {
			return err
		}
		if i > 0 {
			continue
		}
		// AP101: entrada settled, first mensal half paid.
		if _, err := h.Orchestrator.SettleOne(ctx, settlement.SettleOneInput{
			InstallmentID: installments[0].ID,
			Amount:        finance.MustParseMoney("25000.00"),
			Date:          today,
		}); err != nil {
			return err
		}
		if _, err := h.Orchestrator.SettleOne(ctx, settlement.SettleOneInput{
			InstallmentID: installments[1].ID,
			Amount:        finance.MustParseMoney("2100.00"),
			Date:          today,
		}); err != nil {
			return err
		}
	}
	return nil
}

// loadQuitacaoLoteScenario: six mensais, a lump sum that fully settles
// the first few in due-date order.
func loadQuitacaoLoteScenario(ctx context.Context, h *Handler) error {
	today := finance.Today()
	installments, err := settlement.GeneratePlan("OB-DEMO", "AP301", []settlement.PlanItem{
		{Type: settlement.TypeMensal, FirstDue: today, Count: 6, Amount: finance.MustParseMoney("3500.00")},
	}, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := h.Store.SaveInstallments(ctx, "AP301", installments); err != nil {
		return err
	}
	_, err = h.Orchestrator.SettleLot(ctx, settlement.SettleLotInput{
		UnitID: "AP301",
		Type:   settlement.TypeMensal,
		Amount: finance.MustParseMoney("12000.00"),
		Date:   today,
	})
	return err
}

// loadFechamentoMesScenario: receipts across three months, including a
// discount settlement, so the competency report has history to show.
func loadFechamentoMesScenario(ctx context.Context, h *Handler) error {
	start := finance.Today().AddMonthsKeepDay(-3)
	installments, err := settlement.GeneratePlan("OB-DEMO", "AP401", []settlement.PlanItem{
		{Type: settlement.TypeMensal, FirstDue: start, Count: 4, Amount: finance.MustParseMoney("5000.00")},
	}, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := h.Store.SaveInstallments(ctx, "AP401", installments); err != nil {
		return err
	}

	// Month 1: full payment. Month 2: partial then discount-closed.
	if _, err := h.Orchestrator.SettleOne(ctx, settlement.SettleOneInput{
		InstallmentID: installments[0].ID,
		Amount:        finance.MustParseMoney("5000.00"),
		Date:          start,
	}); err != nil {
		return err
	}
	if _, err := h.Orchestrator.SettleOne(ctx, settlement.SettleOneInput{
		InstallmentID: installments[1].ID,
		Amount:        finance.MustParseMoney("4400.00"),
		Date:          start.AddMonthsKeepDay(1),
		WithDiscount:  true,
	}); err != nil {
		return err
	}
	// Month 3: late partial payment on the third mensal.
	_, err = h.Orchestrator.SettleOne(ctx, settlement.SettleOneInput{
		InstallmentID: installments[2].ID,
		Amount:        finance.MustParseMoney("1500.00"),
		Date:          start.AddMonthsKeepDay(2),
	})
	return err
}
