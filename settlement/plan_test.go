package settlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

func planItem(typ settlement.InstallmentType, firstDue string, count int, amount string) settlement.PlanItem {
	return settlement.PlanItem{
		Type:     typ,
		FirstDue: finance.MustParseDate(firstDue),
		Count:    count,
		Amount:   money(amount),
	}
}

func dueDates(installments []settlement.Installment) []string {
	out := make([]string, len(installments))
	for i, inst := range installments {
		out[i] = inst.DueDate.String()
	}
	return out
}

// =============================================================================
// SCHEDULE GENERATION TESTS
// =============================================================================

func TestGeneratePlan_Mensal_StepsOneMonth(t *testing.T) {
	plan, err := settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{
		planItem(settlement.TypeMensal, "2026-01-10", 3, "500.00"),
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-10", "2026-02-10", "2026-03-10"}, dueDates(plan))
	for i, inst := range plan {
		assert.Equal(t, "0011", inst.UnitID)
		assert.Equal(t, money("500.00"), inst.Expected)
		assert.Equal(t, i, inst.Sequence)
		assert.NotEmpty(t, inst.ID)
	}
}

func TestGeneratePlan_Mensal_ClampsToMonthEnd(t *testing.T) {
	// GIVEN: a monthly schedule anchored on January 31st
	// THEN: February clamps to the 28th and the anchor day returns in March

	plan, err := settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{
		planItem(settlement.TypeMensal, "2026-01-31", 3, "100.00"),
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-31", "2026-02-28", "2026-03-31"}, dueDates(plan))
}

func TestGeneratePlan_SemestralAndAnual_Steps(t *testing.T) {
	plan, err := settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{
		planItem(settlement.TypeSemestral, "2026-01-15", 2, "2000.00"),
		planItem(settlement.TypeAnual, "2026-06-01", 2, "5000.00"),
	}, time.Now())
	require.NoError(t, err)

	// Output comes back in due-date order, interleaving the two items.
	assert.Equal(t, []string{"2026-01-15", "2026-06-01", "2026-07-15", "2027-06-01"}, dueDates(plan))
}

func TestGeneratePlan_NonRecurring_RepeatsFirstDue(t *testing.T) {
	plan, err := settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{
		planItem(settlement.TypeEntrada, "2026-01-05", 2, "300.00"),
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-05", "2026-01-05"}, dueDates(plan))
}

func TestGeneratePlan_SequenceSpansItems(t *testing.T) {
	plan, err := settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{
		planItem(settlement.TypeEntrada, "2026-01-05", 1, "300.00"),
		planItem(settlement.TypeMensal, "2026-02-10", 2, "500.00"),
	}, time.Now())
	require.NoError(t, err)

	require.Len(t, plan, 3)
	for i, inst := range plan {
		assert.Equal(t, i, inst.Sequence)
	}
	assert.Equal(t, settlement.TypeEntrada, plan[0].Type)
	assert.Equal(t, settlement.TypeMensal, plan[1].Type)
}

func TestGeneratePlan_Validation(t *testing.T) {
	now := time.Now()
	valid := planItem(settlement.TypeMensal, "2026-01-10", 1, "100.00")

	_, err := settlement.GeneratePlan("OB01", "", []settlement.PlanItem{valid}, now)
	assert.Error(t, err, "unit id required")

	_, err = settlement.GeneratePlan("OB01", "0011", nil, now)
	assert.Error(t, err, "empty plan")

	bad := valid
	bad.Count = 0
	_, err = settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{bad}, now)
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)

	bad = valid
	bad.Amount = money("-1.00")
	_, err = settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{bad}, now)
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)

	bad = valid
	bad.Type = "Quinzenal"
	_, err = settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{bad}, now)
	assert.Error(t, err)

	bad = valid
	bad.FirstDue = finance.Date{}
	_, err = settlement.GeneratePlan("OB01", "0011", []settlement.PlanItem{bad}, now)
	assert.ErrorIs(t, err, finance.ErrInvalidDate)
}
