package weave

import (
	"fmt"
	"sort"
	"strings"

	"github.com/treggify/mindweaver/internal/models"
)

// FormatLinks renders a set of links in the chosen layout. Links are
// deduplicated and sorted lexicographically first; the sort is a stabilizing
// step, not a ranking signal. The result always ends with a newline.
func FormatLinks(links []models.Link, format string, showHeader bool, headerLevel int, headerText string) string {
	sorted := dedupeLinks(links)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lines := make([]string, len(sorted))
	for i, l := range sorted {
		lines[i] = l.Wikilink()
	}

	var body string
	switch format {
	case FormatBullet:
		for i, l := range lines {
			lines[i] = "- " + l
		}
		body = strings.Join(lines, "\n")
	case FormatNumbered:
		for i, l := range lines {
			lines[i] = fmt.Sprintf("%d. %s", i+1, l)
		}
		body = strings.Join(lines, "\n")
	case FormatLine:
		body = strings.Join(lines, "\n")
	default: // FormatComma
		body = strings.Join(lines, ", ")
	}

	var b strings.Builder
	if showHeader {
		if headerLevel < 1 {
			headerLevel = 1
		}
		if headerLevel > 6 {
			headerLevel = 6
		}
		b.WriteString(strings.Repeat("#", headerLevel))
		b.WriteString(" ")
		b.WriteString(headerText)
		b.WriteString("\n")
	}
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

// dedupeLinks returns the distinct links, first occurrence wins.
func dedupeLinks(links []models.Link) []models.Link {
	seen := make(map[models.Link]struct{}, len(links))
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
