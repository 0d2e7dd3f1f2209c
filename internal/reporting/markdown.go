package reporting

import (
	"fmt"
	"strings"
	"time"

	"commodity-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *StatusReport) string {
	var sb strings.Builder

	sb.WriteString("# Derived Series Status\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Instruments: %d | Recipes: %d | Transforms: %d | Failing: %d\n\n",
		r.Instruments, r.Recipes, r.Transforms, r.Failing))

	if len(r.Rows) == 0 {
		sb.WriteString("No instruments.\n")
		return sb.String()
	}

	sb.WriteString("| Ticker | Kind | Definition | Ccy | Unit | Points | First | Last | Status | Message |\n")
	sb.WriteString("|--------|------|------------|-----|------|--------|-------|------|--------|---------|\n")
	for _, row := range r.Rows {
		status := "-"
		if row.LastStatus != "" {
			status = row.LastStatus.String()
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %s | %s | %s | %s |\n",
			row.Ticker, row.Kind, escapeCell(row.Definition), row.Currency, row.Unit,
			row.Points, formatDate(row.FirstDate), formatDate(row.LastDate),
			status, escapeCell(row.LastMessage)))
	}

	// Failures again, with full messages
	if r.Failing > 0 {
		sb.WriteString("\n## Failing\n\n")
		for _, row := range r.Rows {
			if row.LastStatus != domain.StatusError {
				continue
			}
			sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", row.Ticker, formatTime(row.AttemptedAt), row.LastMessage))
		}
	}
	return sb.String()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
