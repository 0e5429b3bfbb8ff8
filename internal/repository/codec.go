package repository

import (
	"strings"
	"time"
)

// timeLayout is how timestamps are written into the store.
const timeLayout = "2006-01-02T15:04:05.000Z"

// dateLayout is used for date-only columns such as promo expiry.
const dateLayout = "2006-01-02"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// splitList decodes a comma-separated column.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	clean := make([]string, 0, len(items))
	for _, p := range items {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ",")
}
