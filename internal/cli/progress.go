package cli

import (
	"fmt"
	"strings"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders level and challenge progress as: [=========>..........]  45%

const barWidth = 30 // Characters for the progress bar

// renderBar draws pct (0-100) as a fixed-width bar.
func renderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}
	return fmt.Sprintf("[%s] %3.0f%%", bar, pct)
}

// ratioPct converts progress toward a goal to a percentage.
func ratioPct(value, goal int64) float64 {
	if goal <= 0 {
		return 100
	}
	return float64(value) / float64(goal) * 100
}
