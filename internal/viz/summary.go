package viz

import (
	"fmt"
	"strings"
)

const barBudget = 20

// Summary renders per-type counts as a horizontal bar chart, with an
// unlinked-count annotation where linking failed.
func Summary(stats []TypeStats, errorCount int) string {
	if len(stats) == 0 {
		return ""
	}

	total := 0
	maxCount := 0
	maxNameLen := 0
	for _, s := range stats {
		total += s.Count
		if s.Count > maxCount {
			maxCount = s.Count
		}
		if len(s.Type) > maxNameLen {
			maxNameLen = len(s.Type)
		}
	}
	if maxNameLen > 20 {
		maxNameLen = 20
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Operations (%d types, %d models)\n", len(stats), total)

	for _, s := range stats {
		name := s.Type
		if len(name) > maxNameLen {
			name = name[:maxNameLen-1] + "…"
		}

		barLen := 0
		if maxCount > 0 {
			barLen = s.Count * barBudget / maxCount
		}
		if barLen < 1 && s.Count > 0 {
			barLen = 1
		}
		bar := strings.Repeat("#", barLen) + strings.Repeat(" ", barBudget-barLen)

		suffix := ""
		if s.Unlinked > 0 {
			suffix = fmt.Sprintf(" (%d unlinked)", s.Unlinked)
		}

		fmt.Fprintf(&b, "  %-*s  %s  %d models%s\n", maxNameLen, name, bar, s.Count, suffix)
	}

	if errorCount > 0 {
		fmt.Fprintf(&b, "  %d build errors\n", errorCount)
	}

	return b.String()
}
