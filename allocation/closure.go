/*
closure.go - Weight-table closure

PURPOSE:

	Turns an unvalidated draft of per-unit cost weights into a final
	table whose weights sum EXACTLY to a closure target (1 for fractional
	tables, 100 for percentage tables). Downstream allocation assumes the
	table is closed; this is the only place that fixes rounding drift in
	the caller's input.

RULES:
 1. Special shares override principal shares with the same unit id.
 2. Every weight must be > 0 or closure fails (InvalidWeight).
 3. Units sort by floor then final: unit 0143 is floor 14, final 3.
 4. Target is whichever of 1 or 100 is nearest to the draft sum.
 5. The residual difference is absorbed by the LAST special share in
    sorted order, or the last share overall when no specials exist.
 6. A post-check verifies |sum - target| <= 5e-7 (ClosureMismatch).
 7. Display groups: principals with equal closed weight share a color
    from a cyclic palette; specials each get a unique color that never
    collides with a color already on the table.

SEE ALSO:
  - palette.go: the color palettes and the HSL fallback generator
  - allocate.go: consumes the closed table
*/
package allocation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// TYPES
// =============================================================================

// ShareKind distinguishes the two classes of weight rows.
type ShareKind string

const (
	SharePrincipal ShareKind = "principal"
	ShareSpecial   ShareKind = "special"
)

// DraftShare is one unvalidated input row for closure.
type DraftShare struct {
	UnitID string
	Weight finance.Weight
	Label  string // free-form row label, e.g. "Final 3"
}

// WeightedShare is one row of a closed weight table. Immutable once a
// table is persisted: re-closure produces a new table version.
type WeightedShare struct {
	UnitID       string
	Weight       finance.Weight
	Kind         ShareKind
	Label        string
	DisplayGroup string // color shared by equal-weight principals; unique per special
}

// ClosureTolerance is the permitted residual after adjustment, in
// weight units of 1e-7 (i.e. 5e-7).
const ClosureTolerance = 5

// Targets for closure, in weight units.
const (
	targetOne     = finance.Weight(finance.WeightScale)       // 1.0000000
	targetHundred = finance.Weight(100 * finance.WeightScale) // 100.0000000
)

// =============================================================================
// UNIT ORDERING - floor ascending, then final, then raw id
// =============================================================================

// unitFloorFinal decodes a numeric unit id as (floor, final):
// floor = id div 10, final = id mod 10. Ground-floor units 04..07 are
// floor 0, finals 4..7; unit 143 is floor 14, final 3.
func unitFloorFinal(unitID string) (n, floor, final int) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, unitID)
	n, _ = strconv.Atoi(digits)
	return n, n / 10, n % 10
}

// CompareUnits orders unit ids by floor, then final, then raw number.
func CompareUnits(a, b string) int {
	an, af, al := unitFloorFinal(a)
	bn, bf, bl := unitFloorFinal(b)
	switch {
	case af != bf:
		return af - bf
	case al != bl:
		return al - bl
	default:
		return an - bn
	}
}

// =============================================================================
// CLOSURE
// =============================================================================

// CloseWeights merges principal and special draft shares and closes the
// table to its inferred target. The returned slice is in display order.
func CloseWeights(principal, special []DraftShare) ([]WeightedShare, error) {
	merged := make(map[string]WeightedShare)
	for _, d := range principal {
		merged[d.UnitID] = WeightedShare{UnitID: d.UnitID, Weight: d.Weight, Kind: SharePrincipal, Label: d.Label}
	}
	for _, d := range special {
		merged[d.UnitID] = WeightedShare{UnitID: d.UnitID, Weight: d.Weight, Kind: ShareSpecial, Label: d.Label}
	}

	shares := make([]WeightedShare, 0, len(merged))
	for _, s := range merged {
		shares = append(shares, s)
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return CompareUnits(shares[i].UnitID, shares[j].UnitID) < 0
	})

	var sum finance.Weight
	for _, s := range shares {
		if !s.Weight.IsPositive() {
			return nil, &finance.InvalidWeightError{UnitID: s.UnitID, Weight: s.Weight}
		}
		sum = sum.Add(s.Weight)
	}
	if len(shares) == 0 {
		return nil, finance.ErrInvalidWeight
	}

	target := inferTarget(sum)

	// Absorb the residual on the last special share, else the last share.
	if diff := target.Sub(sum); diff != 0 {
		idx := -1
		for i := len(shares) - 1; i >= 0; i-- {
			if shares[i].Kind == ShareSpecial {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(shares) - 1
		}
		adjusted := shares[idx].Weight.Add(diff)
		if adjusted.IsPositive() {
			shares[idx].Weight = adjusted
		}
	}

	var final finance.Weight
	for _, s := range shares {
		if !s.Weight.IsPositive() {
			return nil, &finance.InvalidWeightError{UnitID: s.UnitID, Weight: s.Weight}
		}
		final = final.Add(s.Weight)
	}
	if delta := final.Sub(target); delta > ClosureTolerance || delta < -ClosureTolerance {
		return nil, &finance.ClosureMismatchError{Sum: final, Target: target}
	}

	assignDisplayGroups(shares)
	return shares, nil
}

// inferTarget picks the closure target nearest to the draft sum:
// fractional tables close at 1, percentage tables at 100.
func inferTarget(sum finance.Weight) finance.Weight {
	d1 := sum - targetOne
	if d1 < 0 {
		d1 = -d1
	}
	d100 := sum - targetHundred
	if d100 < 0 {
		d100 = -d100
	}
	if d1 <= d100 {
		return targetOne
	}
	return targetHundred
}

// assignDisplayGroups colors the table in sorted order: equal-weight
// principals share a palette color, specials each take a fresh color
// that never collides with anything already assigned.
func assignDisplayGroups(shares []WeightedShare) {
	used := make(map[string]bool)
	byWeight := make(map[string]string) // canonical 7-digit weight -> color
	next := 0

	for i := range shares {
		if shares[i].Kind == ShareSpecial {
			continue
		}
		key := shares[i].Weight.String()
		color, ok := byWeight[key]
		if !ok {
			color = principalPalette[next%len(principalPalette)]
			next++
			byWeight[key] = color
		}
		shares[i].DisplayGroup = color
		used[strings.ToLower(color)] = true
	}

	for i := range shares {
		if shares[i].Kind != ShareSpecial {
			continue
		}
		color := nextSpecialColor(used)
		used[strings.ToLower(color)] = true
		shares[i].DisplayGroup = color
	}
}
