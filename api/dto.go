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

AMOUNTS ON THE WIRE:

	Monetary values travel as decimal strings ("1234.56"), weights as
	7-decimal strings ("0.0012345"). Clients never see raw centavo or
	fixed-point integers.

VALIDATION:

	Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/report"
	"github.com/edifica/obra-engine/settlement"
)

// =============================================================================
// ALLOCATION
// =============================================================================

// AllocateRequest splits a total across weights.
type AllocateRequest struct {
	Total   string   `json:"total"`
	Weights []string `json:"weights"`
}

type AllocateResponse struct {
	Shares []string `json:"shares"`
	Sum    string   `json:"sum"`
}

// =============================================================================
// COST TABLES
// =============================================================================

// DraftShareDTO is one input row for weight closure.
type DraftShareDTO struct {
	UnitID string `json:"unit_id"`
	Weight string `json:"weight"`
	Label  string `json:"label,omitempty"`
}

// CreateCostTableRequest closes a weight table and persists it.
type CreateCostTableRequest struct {
	ProjectID string          `json:"project_id"`
	Principal []DraftShareDTO `json:"principal"`
	Special   []DraftShareDTO `json:"special"`
	LandValue string          `json:"land_value,omitempty"`
}

type WeightedShareDTO struct {
	UnitID string `json:"unit_id"`
	Weight string `json:"weight"`
	Kind   string `json:"kind"`
	Label  string `json:"label,omitempty"`
	Color  string `json:"color"`
}

type CostTableDTO struct {
	ProjectID    string             `json:"project_id"`
	Shares       []WeightedShareDTO `json:"shares"`
	LandValue    string             `json:"land_value"`
	MonthlyCosts []MonthlyCostDTO   `json:"monthly_costs"`
	Version      int                `json:"version"`
}

type MonthlyCostDTO struct {
	ID         string `json:"id"`
	Competency string `json:"competency"`
	Amount     string `json:"amount"`
}

// SetLandValueRequest records the land value shared by a table.
type SetLandValueRequest struct {
	Amount string `json:"amount"`
}

// AddMonthlyCostRequest records one competency's shared cost.
type AddMonthlyCostRequest struct {
	Competency string `json:"competency"`
	Amount     string `json:"amount"`
}

type UnitAllocationDTO struct {
	UnitID string `json:"unit_id"`
	Amount string `json:"amount"`
}

type AllocationReportDTO struct {
	ProjectID   string              `json:"project_id"`
	Source      string              `json:"source"` // "land" or a competency
	Allocations []UnitAllocationDTO `json:"allocations"`
	Total       string              `json:"total"`
}

// =============================================================================
// INSTALLMENTS AND SETTLEMENT
// =============================================================================

// PlanItemDTO is one run of same-typed installments.
type PlanItemDTO struct {
	Type     string `json:"type"`
	FirstDue string `json:"first_due"`
	Count    int    `json:"count"`
	Amount   string `json:"amount"`
}

// CreatePlanRequest generates and persists a unit's schedule.
type CreatePlanRequest struct {
	ProjectID string        `json:"project_id"`
	Items     []PlanItemDTO `json:"items"`
}

type InstallmentDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	UnitID    string `json:"unit_id"`
	Type      string `json:"type"`
	Expected  string `json:"expected"`
	DueDate   string `json:"due_date"`
	Status    string `json:"status,omitempty"`
}

type StatusDTO struct {
	InstallmentID string `json:"installment_id"`
	State         string `json:"state"`
	Received      string `json:"received"`
	Discount      string `json:"discount"`
	Quitacao      string `json:"quitacao"`
	Variance      string `json:"variance"`
	Outstanding   string `json:"outstanding"`
}

// SettleOneRequest pays into a single installment.
type SettleOneRequest struct {
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	WithDiscount    bool   `json:"with_discount"`
	ConfirmResettle bool   `json:"confirm_resettle"`
}

// SettleLotRequest applies a lump sum to one installment type.
type SettleLotRequest struct {
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Discount      bool   `json:"discount"`
	RequiredCount int    `json:"required_count,omitempty"`
}

// SettleUnitRequest settles every open installment of a unit.
type SettleUnitRequest struct {
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Confirm       bool   `json:"confirm"`
	ConfirmListed bool   `json:"confirm_listed"`
}

type LedgerEntryDTO struct {
	ID            string `json:"id"`
	InstallmentID string `json:"installment_id"`
	UnitID        string `json:"unit_id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	BatchID       string `json:"batch_id,omitempty"`
}

type BatchDTO struct {
	ID         string           `json:"id"`
	Mode       string           `json:"mode"`
	UnitID     string           `json:"unit_id"`
	Entries    []LedgerEntryDTO `json:"entries"`
	Settled    []string         `json:"settled"`
	Received   string           `json:"received"`
	Discounted string           `json:"discounted"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportRowDTO struct {
	ProjectID     string `json:"project_id"`
	UnitID        string `json:"unit_id"`
	InstallmentID string `json:"installment_id"`
	Type          string `json:"type"`
	DueDate       string `json:"due_date"`
	Previsto      string `json:"previsto"`
	Variacao      string `json:"variacao"`
	Desconto      string `json:"desconto"`
	Recebido      string `json:"recebido"`
}

type ReportTotalsDTO struct {
	Previsto string `json:"previsto"`
	Variacao string `json:"variacao"`
	Desconto string `json:"desconto"`
	Recebido string `json:"recebido"`
}

type ReportUnitDTO struct {
	ProjectID string `json:"project_id"`
	UnitID    string `json:"unit_id"`
	ReportTotalsDTO
}

type ReportProjectDTO struct {
	ProjectID string `json:"project_id"`
	ReportTotalsDTO
}

type ReportDTO struct {
	Competency string             `json:"competency"`
	Rows       []ReportRowDTO     `json:"rows"`
	Units      []ReportUnitDTO    `json:"units"`
	Projects   []ReportProjectDTO `json:"projects"`
	Total      ReportTotalsDTO    `json:"total"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toWeightedShareDTO(s allocation.WeightedShare) WeightedShareDTO {
	return WeightedShareDTO{
		UnitID: s.UnitID,
		Weight: s.Weight.String(),
		Kind:   string(s.Kind),
		Label:  s.Label,
		Color:  s.DisplayGroup,
	}
}

func toCostTableDTO(t *allocation.CostTable) CostTableDTO {
	dto := CostTableDTO{
		ProjectID:    t.ProjectID,
		LandValue:    t.LandValue.String(),
		Version:      t.Version,
		Shares:       make([]WeightedShareDTO, 0, len(t.Shares)),
		MonthlyCosts: make([]MonthlyCostDTO, 0, len(t.MonthlyCosts)),
	}
	for _, s := range t.Shares {
		dto.Shares = append(dto.Shares, toWeightedShareDTO(s))
	}
	for _, mc := range t.MonthlyCosts {
		dto.MonthlyCosts = append(dto.MonthlyCosts, MonthlyCostDTO{
			ID:         mc.ID,
			Competency: mc.Competency.String(),
			Amount:     mc.Amount.String(),
		})
	}
	return dto
}

func toInstallmentDTO(inst settlement.Installment, status string) InstallmentDTO {
	return InstallmentDTO{
		ID:        inst.ID,
		ProjectID: inst.ProjectID,
		UnitID:    inst.UnitID,
		Type:      string(inst.Type),
		Expected:  inst.Expected.String(),
		DueDate:   inst.DueDate.String(),
		Status:    status,
	}
}

func toLedgerEntryDTO(e settlement.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:            e.ID,
		InstallmentID: e.InstallmentID,
		UnitID:        e.UnitID,
		Kind:          string(e.Kind),
		Amount:        e.Amount.String(),
		Date:          e.Date.String(),
		BatchID:       e.BatchID,
	}
}

func toBatchDTO(b *settlement.Batch) BatchDTO {
	dto := BatchDTO{
		ID:         b.ID,
		Mode:       string(b.Mode),
		UnitID:     b.UnitID,
		Entries:    make([]LedgerEntryDTO, 0, len(b.Entries)),
		Settled:    b.Settled,
		Received:   b.Received().String(),
		Discounted: b.Discounted().String(),
	}
	if dto.Settled == nil {
		dto.Settled = []string{}
	}
	for _, e := range b.Entries {
		dto.Entries = append(dto.Entries, toLedgerEntryDTO(e))
	}
	return dto
}

func toReportTotalsDTO(t report.Totals) ReportTotalsDTO {
	return ReportTotalsDTO{
		Previsto: t.Previsto.String(),
		Variacao: t.Variacao.String(),
		Desconto: t.Desconto.String(),
		Recebido: t.Recebido.String(),
	}
}

func toReportDTO(rep *report.Report) ReportDTO {
	dto := ReportDTO{
		Competency: rep.Competency.String(),
		Rows:       make([]ReportRowDTO, 0, len(rep.Rows)),
		Units:      make([]ReportUnitDTO, 0, len(rep.Units)),
		Projects:   make([]ReportProjectDTO, 0, len(rep.Projects)),
		Total:      toReportTotalsDTO(rep.Total),
	}
	for _, row := range rep.Rows {
		dto.Rows = append(dto.Rows, ReportRowDTO{
			ProjectID:     row.ProjectID,
			UnitID:        row.UnitID,
			InstallmentID: row.InstallmentID,
			Type:          string(row.Type),
			DueDate:       row.DueDate.String(),
			Previsto:      row.Previsto.String(),
			Variacao:      row.Variacao.String(),
			Desconto:      row.Desconto.String(),
			Recebido:      row.Recebido.String(),
		})
	}
	for _, u := range rep.Units {
		dto.Units = append(dto.Units, ReportUnitDTO{ProjectID: u.ProjectID, UnitID: u.UnitID, ReportTotalsDTO: toReportTotalsDTO(u.Totals)})
	}
	for _, p := range rep.Projects {
		dto.Projects = append(dto.Projects, ReportProjectDTO{ProjectID: p.ProjectID, ReportTotalsDTO: toReportTotalsDTO(p.Totals)})
	}
	return dto
}
