/*
costtable.go - The persisted cost-allocation table (Quadro de Custos)

PURPOSE:

	A project keeps one closed weight table plus the shared costs that get
	split across it: the land value and one cost entry per monthly
	competency. Allocations are computed on demand through the Allocation
	Engine; only the table and its raw cost entries are persisted.

LIFECYCLE:

	Closure produces the share list; once a table is saved its shares are
	immutable. Re-running closure yields a new version of the table (the
	version counter increments, costs carry over).
*/
package allocation

import (
	"context"
	"time"

	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// COST TABLE
// =============================================================================

// MonthlyCost is one shared cost entry for a competency. At most one
// entry per competency exists on a table.
type MonthlyCost struct {
	ID         string
	Competency finance.Competency
	Amount     finance.Money
	CreatedAt  time.Time
}

// CostTable is the weighted-share table for one project.
type CostTable struct {
	ProjectID    string
	Shares       []WeightedShare
	LandValue    finance.Money
	MonthlyCosts []MonthlyCost
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UnitShare returns the share for a unit, if present.
func (t *CostTable) UnitShare(unitID string) (WeightedShare, bool) {
	for _, s := range t.Shares {
		if s.UnitID == unitID {
			return s, true
		}
	}
	return WeightedShare{}, false
}

func (t *CostTable) weights() []finance.Weight {
	w := make([]finance.Weight, len(t.Shares))
	for i, s := range t.Shares {
		w[i] = s.Weight
	}
	return w
}

// UnitAllocation pairs a unit with its centavo share of one total.
type UnitAllocation struct {
	UnitID string
	Amount finance.Money
}

// AllocateTotal splits an arbitrary total across the table's shares.
func (t *CostTable) AllocateTotal(total finance.Money) []UnitAllocation {
	cents := Allocate(total, t.weights())
	out := make([]UnitAllocation, len(t.Shares))
	for i, s := range t.Shares {
		out[i] = UnitAllocation{UnitID: s.UnitID, Amount: cents[i]}
	}
	return out
}

// AllocateLand splits the table's land value across units.
func (t *CostTable) AllocateLand() []UnitAllocation {
	return t.AllocateTotal(t.LandValue)
}

// AllocateMonth splits the monthly cost recorded for the competency.
// Returns ErrNotFound when no cost exists for that month.
func (t *CostTable) AllocateMonth(c finance.Competency) ([]UnitAllocation, error) {
	for _, mc := range t.MonthlyCosts {
		if mc.Competency == c {
			return t.AllocateTotal(mc.Amount), nil
		}
	}
	return nil, finance.ErrNotFound
}

// AddMonthlyCost records a cost entry for a competency. At most one
// entry per competency: a second attempt fails with ErrDuplicateCost.
func (t *CostTable) AddMonthlyCost(mc MonthlyCost) error {
	if !mc.Amount.IsPositive() {
		return finance.ErrInvalidAmount
	}
	if !mc.Competency.Valid() {
		return finance.ErrInvalidCompetency
	}
	for _, existing := range t.MonthlyCosts {
		if existing.Competency == mc.Competency {
			return finance.ErrDuplicateCost
		}
	}
	t.MonthlyCosts = append(t.MonthlyCosts, mc)
	return nil
}

// =============================================================================
// TABLE STORE
// =============================================================================

// TableStore persists cost tables keyed by project.
type TableStore interface {
	SaveTable(ctx context.Context, table *CostTable) error

	// Table returns the table for a project, or ErrNotFound.
	Table(ctx context.Context, projectID string) (*CostTable, error)
}
