package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// SCHEDULE GENERATION - from a compact plan description to installments
// =============================================================================

// PlanItem describes one run of same-typed installments: Count
// occurrences of Amount, the first falling due on FirstDue and the
// rest stepping forward by the type's natural interval (Mensal +1
// month, Semestral +6, Anual +12; every other type repeats FirstDue).
type PlanItem struct {
	Type     InstallmentType
	FirstDue finance.Date
	Count    int
	Amount   finance.Money
}

func monthStep(t InstallmentType) int {
	switch t {
	case TypeMensal:
		return 1
	case TypeSemestral:
		return 6
	case TypeAnual:
		return 12
	default:
		return 0
	}
}

// GeneratePlan expands a unit's plan items into its installment
// schedule, sorted by due date. Sequence numbers follow item order,
// then occurrence order, and break due-date ties, so the schedule
// round-trips deterministically.
func GeneratePlan(projectID, unitID string, items []PlanItem, now time.Time) ([]Installment, error) {
	if unitID == "" {
		return nil, fmt.Errorf("%w: unit id required", finance.ErrNotFound)
	}
	var out []Installment
	seq := 0
	for i, item := range items {
		if !item.Type.Valid() {
			return nil, fmt.Errorf("item %d: %w: unknown installment type %q", i, finance.ErrInvalidAmount, item.Type)
		}
		if item.Count <= 0 {
			return nil, fmt.Errorf("item %d: %w: count must be positive", i, finance.ErrInvalidAmount)
		}
		if !item.Amount.IsPositive() {
			return nil, fmt.Errorf("item %d: %w: installment of %s", i, finance.ErrInvalidAmount, item.Amount)
		}
		if item.FirstDue.IsZero() {
			return nil, fmt.Errorf("item %d: %w", i, finance.ErrInvalidDate)
		}
		step := monthStep(item.Type)
		for n := 0; n < item.Count; n++ {
			due := item.FirstDue
			if step > 0 {
				due = item.FirstDue.AddMonthsKeepDay(step * n)
			}
			out = append(out, Installment{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				UnitID:    unitID,
				Type:      item.Type,
				Sequence:  seq,
				Expected:  item.Amount,
				DueDate:   due,
				CreatedAt: now,
			})
			seq++
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty plan", finance.ErrInvalidAmount)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].DueDate.Equal(out[b].DueDate) {
			return out[a].DueDate.Before(out[b].DueDate)
		}
		return out[a].Sequence < out[b].Sequence
	})
	return out, nil
}
