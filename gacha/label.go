package gacha

import (
	"fmt"
	"regexp"
	"strconv"
)

// The balance is encoded into a member's display name as a human-readable
// suffix like "Miku P : 150". The marker letter is case-insensitive and the
// separator may be a half-width or full-width colon with optional whitespace.
var labelPattern = regexp.MustCompile(`(?i)(p\s*[:：]\s*)(\d+)`)

// ParseBalance extracts the point balance from a display-name label.
// A label without a marker holds zero points.
func ParseBalance(label string) int64 {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	balance, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		// Digits too long to fit int64; treat as no balance rather than failing.
		return 0
	}
	return balance
}

// RewriteLabel returns the label with its first balance marker replaced by
// newBalance, or with a " P : <n>" suffix appended if no marker exists.
// Rewriting twice with the same balance is idempotent.
func RewriteLabel(label string, newBalance int64) string {
	loc := labelPattern.FindStringSubmatchIndex(label)
	if loc == nil {
		return fmt.Sprintf("%s P : %d", label, newBalance)
	}
	// Keep the matched marker prefix (group 1), replace only the digits (group 2).
	return label[:loc[4]] + strconv.FormatInt(newBalance, 10) + label[loc[5]:]
}
