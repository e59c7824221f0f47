package report

import (
	"fmt"
	"strings"

	"github.com/example/bug-intake/internal/findings"
)

const noIssues = "No issues detected by automated checks."

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Summary struct {
	Message    string          `json:"message"`
	Total      int             `json:"total"`
	Categories []CategoryCount `json:"categories"`
}

// Summarize counts findings per category in order of first appearance.
func Summarize(items []findings.Finding) Summary {
	if len(items) == 0 {
		return Summary{Message: noIssues}
	}

	index := map[string]int{}
	var counts []CategoryCount
	for _, item := range items {
		i, ok := index[item.ErrorMessage]
		if !ok {
			i = len(counts)
			index[item.ErrorMessage] = i
			counts = append(counts, CategoryCount{Category: item.ErrorMessage})
		}
		counts[i].Count++
	}

	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Category, c.Count))
	}

	return Summary{
		Message:    "Issues detected: " + strings.Join(parts, ", "),
		Total:      len(items),
		Categories: counts,
	}
}

// Text renders findings grouped by file, one line per finding.
func Text(items []findings.Finding) string {
	var out strings.Builder
	out.WriteString(Summarize(items).Message)
	out.WriteString("\n")

	current := ""
	for _, item := range items {
		if item.FileName != current {
			current = item.FileName
			fmt.Fprintf(&out, "\n%s\n", current)
		}
		fmt.Fprintf(&out, "  line %d: %s", item.LineNumber, item.ErrorMessage)
		if hint := findings.Deref(item.Suggestion); hint != "" {
			fmt.Fprintf(&out, " (%s)", hint)
		}
		out.WriteString("\n")
	}
	return out.String()
}
