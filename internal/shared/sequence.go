package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// NextInSeries derives the next document number in a prefixed sequential series
// from the most recently issued number. A malformed or empty latest number
// restarts the series at 1 instead of failing; duplicate protection is left to
// the store's unique constraint.
func NextInSeries(latest, prefix string, width int) string {
	next := 1
	if suffix, ok := strings.CutPrefix(latest, prefix); ok {
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, next)
}
