package statement

import (
	"strings"
	"time"
)

// dateLayouts are the recognized statement date formats, tried in order.
// Day-first layouts come before month-first ones: bank statements in the
// target locales are predominantly day-first, and for ambiguous values
// like "01/02/2024" the earlier layout wins.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"02/01/06",
	"02-01-06",
	"02 Jan 2006",
	"02-Jan-2006",
	"02 Jan, 2006",
	"Jan 02, 2006",
	"Jan 02 2006",
	"2 January 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// GuessDateLayout returns the first recognized layout that parses the
// given string, and whether any layout matched.
func GuessDateLayout(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return layout, true
		}
	}
	return "", false
}

// DetectDateLayout infers the statement-wide date layout by majority vote
// over the per-row layouts. Ties keep the earliest row's layout, since a
// later layout must exceed the running maximum to win. Empty input yields
// the empty string.
func DetectDateLayout(rows []ExtractedRow) string {
	counts := make(map[string]int)
	best := ""
	bestCount := 0
	for _, row := range rows {
		if row.DateLayout == "" {
			continue
		}
		counts[row.DateLayout]++
		if counts[row.DateLayout] > bestCount {
			bestCount = counts[row.DateLayout]
			best = row.DateLayout
		}
	}
	return best
}

// ReformatDate converts a raw date string from a known layout to ISO
// (YYYY-MM-DD).
func ReformatDate(raw, layout string) (string, error) {
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
