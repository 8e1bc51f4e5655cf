package allocation

import (
	"fmt"
	"strings"
)

// =============================================================================
// DISPLAY PALETTES
// =============================================================================

// principalPalette colors principal shares; rows with the same closed
// weight reuse the same color so "final 1 on every floor" reads as one
// group. Cycled when more distinct weights exist than colors.
var principalPalette = []string{
	"#0b4fd6",
	"#00a37a",
	"#b00020",
	"#ff8c00",
	"#6a5acd",
	"#008b8b",
	"#c2185b",
	"#2e7d32",
	"#1565c0",
	"#6d4c41",
}

// specialPalette colors special shares. Specials are never grouped:
// each takes the first palette color not already on the table.
var specialPalette = []string{
	"#7b1fa2",
	"#d81b60",
	"#00897b",
	"#f4511e",
	"#3949ab",
	"#c0ca33",
	"#5d4037",
	"#039be5",
	"#8e24aa",
	"#43a047",
	"#fb8c00",
	"#546e7a",
}

// nextSpecialColor returns a color not present in used. After the fixed
// palette is exhausted it generates spaced HSL hues; the terminal
// fallback only triggers past 72 simultaneous colors.
func nextSpecialColor(used map[string]bool) string {
	for _, c := range specialPalette {
		if !used[strings.ToLower(c)] {
			return c
		}
	}
	for i := 0; i < 60; i++ {
		c := fmt.Sprintf("hsl(%d 70%% 45%%)", (i*37)%360)
		if !used[strings.ToLower(c)] {
			return c
		}
	}
	return "#111111"
}
