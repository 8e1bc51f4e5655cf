package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
	"github.com/edifica/obra-engine/store/kv"
)

func money(s string) finance.Money { return finance.MustParseMoney(s) }

func inst(id, unitID, expected, due string) settlement.Installment {
	return settlement.Installment{
		ID:       id,
		UnitID:   unitID,
		Type:     settlement.TypeMensal,
		Expected: money(expected),
		DueDate:  finance.MustParseDate(due),
	}
}

func entry(id, installmentID, unitID, amount string) settlement.LedgerEntry {
	return settlement.LedgerEntry{
		ID:            id,
		InstallmentID: installmentID,
		UnitID:        unitID,
		Kind:          settlement.KindPagamento,
		Amount:        money(amount),
		Date:          finance.MustParseDate("2026-03-12"),
	}
}

// =============================================================================
// SCHEDULE PERSISTENCE
// =============================================================================

func TestStore_SaveAndLoadInstallments_RoundTrip(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	saved := []settlement.Installment{
		inst("p-1", "0011", "500.00", "2026-01-10"),
		inst("p-2", "0011", "500.00", "2026-02-10"),
	}
	require.NoError(t, store.SaveInstallments(ctx, "0011", saved))

	loaded, err := store.InstallmentsByUnit(ctx, "0011")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded, "insertion order and values survive the round trip")

	units, err := store.Units(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0011"}, units)
}

func TestStore_Installment_LookupAcrossUnits(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.SaveInstallments(ctx, "0011", []settlement.Installment{inst("p-1", "0011", "500.00", "2026-01-10")}))
	require.NoError(t, store.SaveInstallments(ctx, "0021", []settlement.Installment{inst("p-2", "0021", "300.00", "2026-01-10")}))

	found, err := store.Installment(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, "0021", found.UnitID)

	_, err = store.Installment(ctx, "missing")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func TestStore_SaveInstallments_RejectedOnceLedgered(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.SaveInstallments(ctx, "0011", []settlement.Installment{inst("p-1", "0011", "500.00", "2026-01-10")}))
	require.NoError(t, store.AppendEntries(ctx, []settlement.LedgerEntry{entry("e-1", "p-1", "0011", "100.00")}))

	err := store.SaveInstallments(ctx, "0011", []settlement.Installment{inst("p-9", "0011", "900.00", "2026-01-10")})
	assert.Error(t, err, "a schedule with history cannot be replaced")
}

// =============================================================================
// LEDGER PERSISTENCE
// =============================================================================

func TestStore_AppendEntries_AppendOnlyAccumulation(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.SaveInstallments(ctx, "0011", []settlement.Installment{
		inst("p-1", "0011", "500.00", "2026-01-10"),
		inst("p-2", "0011", "500.00", "2026-02-10"),
	}))

	require.NoError(t, store.AppendEntries(ctx, []settlement.LedgerEntry{entry("e-1", "p-1", "0011", "100.00")}))
	require.NoError(t, store.AppendEntries(ctx, []settlement.LedgerEntry{
		entry("e-2", "p-1", "0011", "50.00"),
		entry("e-3", "p-2", "0011", "200.00"),
	}))

	all, err := store.EntriesByUnit(ctx, "0011")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e-1", all[0].ID, "earlier batches stay in front")

	only, err := store.EntriesByInstallment(ctx, "p-1")
	require.NoError(t, err)
	assert.Len(t, only, 2)
}

func TestStore_AllEntries_SpansUnits(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.SaveInstallments(ctx, "0011", []settlement.Installment{inst("p-1", "0011", "500.00", "2026-01-10")}))
	require.NoError(t, store.SaveInstallments(ctx, "0021", []settlement.Installment{inst("p-2", "0021", "300.00", "2026-01-10")}))

	require.NoError(t, store.AppendEntries(ctx, []settlement.LedgerEntry{
		entry("e-1", "p-1", "0011", "100.00"),
		entry("e-2", "p-2", "0021", "100.00"),
	}))

	all, err := store.AllEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	installments, err := store.AllInstallments(ctx)
	require.NoError(t, err)
	assert.Len(t, installments, 2)
}

// =============================================================================
// COST TABLES
// =============================================================================

func TestStore_CostTable_RoundTrip(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	table := &allocation.CostTable{
		ProjectID: "OB01",
		LandValue: money("250000.00"),
		Shares: []allocation.WeightedShare{
			{UnitID: "0011", Weight: finance.MustParseWeight("0.5"), Kind: allocation.SharePrincipal},
			{UnitID: "0012", Weight: finance.MustParseWeight("0.5"), Kind: allocation.SharePrincipal},
		},
	}
	require.NoError(t, store.SaveTable(ctx, table))

	loaded, err := store.Table(ctx, "OB01")
	require.NoError(t, err)
	assert.Equal(t, table.LandValue, loaded.LandValue)
	assert.Len(t, loaded.Shares, 2)

	projects, err := store.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"OB01"}, projects)

	_, err = store.Table(ctx, "OB99")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func TestStore_Reset_WipesEverything(t *testing.T) {
	store := kv.New(kv.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.SaveInstallments(ctx, "0011", []settlement.Installment{
		inst("p-1", "0011", "500.00", "2026-01-10"),
	}))
	require.NoError(t, store.AppendEntries(ctx, []settlement.LedgerEntry{
		entry("e-1", "p-1", "0011", "200.00"),
	}))
	require.NoError(t, store.SaveTable(ctx, &allocation.CostTable{ProjectID: "OB01"}))

	require.NoError(t, store.Reset(ctx))

	units, err := store.Units(ctx)
	require.NoError(t, err)
	assert.Empty(t, units)

	entries, err := store.AllEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Table(ctx, "OB01")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}
