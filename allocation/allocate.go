/*
Package allocation implements the proportional cost-allocation engine
and the weight-table closure procedure.

PURPOSE:

	Shared construction costs (land value, monthly site costs) are split
	across units in proportion to each unit's cost weight. The split must
	close exactly: the allocated centavos always sum to the rounded total,
	no matter how awkward the weights are.

ALGORITHM (largest remainder / Hamilton method):

 1. Convert the total to integer centavos.

 2. raw_i = totalCents * w_i / sumW for each weight (exact rational).

 3. Floor every raw share.

 4. Hand out the leftover cents one at a time to the entries with the
    largest fractional remainder, ties broken by original index,
    cycling if more cents remain than entries.

    The result is deterministic and minimizes the worst per-entry rounding
    error. Calling twice with the same inputs yields identical output.

SEE ALSO:
  - closure.go: normalizes draft weights before allocation
  - costtable.go: the persisted table that feeds this engine
*/
package allocation

import (
	"math/big"
	"sort"

	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

// Allocate splits total into len(weights) centavo shares proportional
// to the weights, summing exactly to total.
//
// Negative weights are clamped to zero. When every weight is
// non-positive the whole total lands on the last index, a placeholder
// policy rather than a principled rule; callers that care should
// validate weights first.
func Allocate(total finance.Money, weights []finance.Weight) []finance.Money {
	out := make([]finance.Money, len(weights))
	if len(weights) == 0 || total == 0 {
		return out
	}

	w := make([]int64, len(weights))
	var sumW int64
	for i, x := range weights {
		if x > 0 {
			w[i] = int64(x)
			sumW += int64(x)
		}
	}

	totalCents := int64(total)
	if sumW <= 0 {
		out[len(out)-1] = finance.Money(totalCents)
		return out
	}

	// Exact fixed-point shares: floor(totalCents * w_i / sumW) with the
	// remainder numerator kept for ranking. big.Int avoids overflow on
	// totalCents * w_i for large tables.
	type remainder struct {
		idx int
		num int64 // (totalCents * w_i) mod sumW; larger means closer to the next cent
	}

	floors := make([]int64, len(w))
	rems := make([]remainder, 0, len(w))
	var used int64

	bigSum := big.NewInt(sumW)
	var prod, quo, rem big.Int
	for i, wi := range w {
		prod.Mul(big.NewInt(totalCents), big.NewInt(wi))
		quo.QuoRem(&prod, bigSum, &rem)
		floors[i] = quo.Int64()
		used += floors[i]
		rems = append(rems, remainder{idx: i, num: rem.Int64()})
	}

	sort.SliceStable(rems, func(a, b int) bool {
		if rems[a].num != rems[b].num {
			return rems[a].num > rems[b].num
		}
		return rems[a].idx < rems[b].idx
	})

	rest := totalCents - used
	for k := 0; rest > 0; k = (k + 1) % len(rems) {
		floors[rems[k].idx]++
		rest--
	}

	for i, c := range floors {
		out[i] = finance.Money(c)
	}
	return out
}
