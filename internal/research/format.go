package research

import (
	"fmt"
	"strings"
)

// FormatSearchResults renders items for inclusion in a summarization prompt,
// one string per result. maxContentLength caps each body; zero means no cap.
func FormatSearchResults(items []SearchItem, maxContentLength int) []string {
	out := make([]string, 0, len(items))
	for i, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "Result %d: %s", i+1, item.Title)
		if item.PublishedAt != nil {
			fmt.Fprintf(&b, " (%s)", item.PublishedAt.UTC().Format("2006-01-02"))
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "\nURL: %s", item.URL)
		}
		if body := truncate(item.Body, maxContentLength); body != "" {
			fmt.Fprintf(&b, "\n%s", body)
		}
		out = append(out, b.String())
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// FallbackReport assembles the final document without a model: the title,
// then each section's latest draft in outline order. It always produces a
// non-empty report, even when every section came up dry.
func FallbackReport(title string, sections []Section) string {
	var b strings.Builder
	if title == "" {
		title = "Research Report"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", sec.Title)
		body := sec.Research.LatestSummary
		if body == "" {
			body = "No findings were collected for this section."
		}
		b.WriteString(strings.TrimSpace(body))
		b.WriteString("\n")
	}
	return b.String()
}
