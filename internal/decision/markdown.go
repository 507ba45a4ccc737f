package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a set of verdicts as a Markdown criteria report.
func RenderMarkdown(verdicts []Verdict) string {
	var sb strings.Builder

	sb.WriteString("# Hot Criteria Report\n\n")

	passed := 0
	for _, v := range verdicts {
		if v.Pass {
			passed++
		}
	}
	sb.WriteString(fmt.Sprintf("Verdicts: %d/%d hot\n\n", passed, len(verdicts)))

	for _, v := range verdicts {
		label := "NOT HOT"
		if v.Pass {
			label = "HOT"
		}
		name := v.Row.Brand + " " + v.Row.Reference
		if v.Row.Nickname != "" {
			name += " (" + v.Row.Nickname + ")"
		}
		sb.WriteString(fmt.Sprintf("## %s: %s\n\n", name, label))

		sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
		sb.WriteString("|---|-----------|-----------|--------|------|\n")
		for i, c := range v.Criteria {
			passStr := "PASS"
			if !c.Pass {
				passStr = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, c.Name, c.Threshold, c.Actual, passStr))
		}
		sb.WriteString("\n")

		if !v.Pass {
			for _, c := range v.Criteria {
				if !c.Pass {
					sb.WriteString(fmt.Sprintf("- Failed: %s (actual: %s)\n", c.Name, c.Actual))
				}
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
