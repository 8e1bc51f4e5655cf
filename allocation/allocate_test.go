package allocation_test

import (
	"testing"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) finance.Money   { return finance.MustParseMoney(s) }
func weight(s string) finance.Weight { return finance.MustParseWeight(s) }

func sumMoney(ms []finance.Money) finance.Money {
	var total finance.Money
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

// =============================================================================
// EXACT-SUM PROPERTY
// =============================================================================

func TestAllocate_EqualWeights_SumsExactly(t *testing.T) {
	// GIVEN: R$ 100,00 split across three equal weights
	// WHEN: allocating
	// THEN: cents sum to 10000, first entry absorbs the extra cent

	out := allocation.Allocate(money("100,00"), []finance.Weight{
		weight("1"), weight("1"), weight("1"),
	})

	if got := sumMoney(out); got != money("100,00") {
		t.Fatalf("expected sum 10000 cents, got %s", got)
	}
	if out[0] != finance.Money(3334) || out[1] != finance.Money(3333) || out[2] != finance.Money(3333) {
		t.Errorf("expected [3334 3333 3333], got %v", out)
	}
}

func TestAllocate_AwkwardWeights_AlwaysCloses(t *testing.T) {
	totals := []string{"0,01", "0,02", "1,00", "999,99", "123456,78", "7,77"}
	weightSets := [][]finance.Weight{
		{weight("0,0081000"), weight("0,0123456"), weight("0,0777777")},
		{weight("1"), weight("2"), weight("3"), weight("4"), weight("5")},
		{weight("0,3333333"), weight("0,3333333"), weight("0,3333334")},
		{weight("99,9999999"), weight("0,0000001")},
	}

	for _, ts := range totals {
		for _, ws := range weightSets {
			total := money(ts)
			out := allocation.Allocate(total, ws)
			if got := sumMoney(out); got != total {
				t.Errorf("total %s weights %v: sum %s != total", ts, ws, got)
			}
		}
	}
}

func TestAllocate_ZeroTotal_AllZeros(t *testing.T) {
	out := allocation.Allocate(0, []finance.Weight{weight("1"), weight("2")})
	for i, c := range out {
		if c != 0 {
			t.Errorf("index %d: expected 0, got %d", i, c)
		}
	}
}

func TestAllocate_SingleWeight_TakesAll(t *testing.T) {
	out := allocation.Allocate(money("55,55"), []finance.Weight{weight("0,42")})
	if len(out) != 1 || out[0] != money("55,55") {
		t.Errorf("expected [5555], got %v", out)
	}
}

// =============================================================================
// DETERMINISM AND TIE-BREAKING
// =============================================================================

func TestAllocate_Deterministic(t *testing.T) {
	ws := []finance.Weight{weight("0,1428571"), weight("0,1428571"), weight("0,1428571"),
		weight("0,1428571"), weight("0,1428571"), weight("0,1428571"), weight("0,1428574")}
	total := money("1000,01")

	first := allocation.Allocate(total, ws)
	for i := 0; i < 50; i++ {
		again := allocation.Allocate(total, ws)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d differs at index %d: %d != %d", i, j, again[j], first[j])
			}
		}
	}
}

func TestAllocate_TiedRemainders_EarlierIndexWins(t *testing.T) {
	// GIVEN: 1 cent over two equal weights, both fractions 0.5
	// THEN: the extra cent goes to index 0

	out := allocation.Allocate(finance.Money(1), []finance.Weight{weight("1"), weight("1")})
	if out[0] != 1 || out[1] != 0 {
		t.Errorf("expected [1 0], got %v", out)
	}
}

func TestAllocate_MoreCentsThanEntries_Cycles(t *testing.T) {
	// Five leftover cents over two entries must cycle the remainder
	// list rather than stop after one pass. 5 cents, weights forcing
	// floors of 0: raw = [2.5, 2.5] -> floors [2,2], rest 1. Use a case
	// with rest > len instead: 3 entries, total 2 cents, equal weights:
	// raw = 0.666.. each, floors 0, rest 2 -> first two entries get one.

	out := allocation.Allocate(finance.Money(2), []finance.Weight{weight("1"), weight("1"), weight("1")})
	if out[0] != 1 || out[1] != 1 || out[2] != 0 {
		t.Errorf("expected [1 1 0], got %v", out)
	}
	if sumMoney(out) != 2 {
		t.Errorf("sum mismatch: %v", out)
	}
}

// =============================================================================
// DEGENERATE WEIGHTS
// =============================================================================

func TestAllocate_AllZeroWeights_LastIndexFallback(t *testing.T) {
	// Placeholder policy: with no positive weight the full amount lands
	// on the last index.
	out := allocation.Allocate(money("10,00"), []finance.Weight{0, 0, 0})
	if out[0] != 0 || out[1] != 0 || out[2] != money("10,00") {
		t.Errorf("expected [0 0 1000], got %v", out)
	}
}

func TestAllocate_NegativeWeightsClampedToZero(t *testing.T) {
	out := allocation.Allocate(money("10,00"), []finance.Weight{-5, weight("1"), -3})
	if out[0] != 0 || out[2] != 0 {
		t.Errorf("negative weights must receive nothing, got %v", out)
	}
	if out[1] != money("10,00") {
		t.Errorf("expected the positive weight to take all, got %v", out)
	}
}

func TestAllocate_EmptyWeights_Empty(t *testing.T) {
	if out := allocation.Allocate(money("10,00"), nil); len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

// =============================================================================
// LARGE TABLE (overflow guard)
// =============================================================================

func TestAllocate_LargeTotalsAndWeights_NoOverflow(t *testing.T) {
	// 98 units at ~1.02% each on a large total: the naive int64 product
	// totalCents * weightUnits would overflow; the engine must not.
	ws := make([]finance.Weight, 98)
	for i := range ws {
		ws[i] = weight("1,0204082")
	}
	total := money("987654321,09")

	out := allocation.Allocate(total, ws)
	if got := sumMoney(out); got != total {
		t.Errorf("expected exact closure on large table, got %s of %s", got, total)
	}
}
