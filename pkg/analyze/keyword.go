package analyze

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

// actionKeywords flag lines that likely contain action items.
var actionKeywords = []string{"action", "todo", "task", "assign", "responsible", "deadline", "due"}

// datePattern matches numeric dates like 12/31/2025 or 3-4-25.
var datePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)

// localAnalysis builds a keyword-based summary without any LLM. It extracts
// action-item lines, capitalized names and numeric dates, then renders a
// markdown report.
func localAnalysis(text string, now time.Time) string {
	lines := strings.Split(text, "\n")
	wordCount := len(strings.Fields(text))

	var actionLines []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, keyword := range actionKeywords {
			if strings.Contains(lower, keyword) {
				actionLines = append(actionLines, strings.TrimSpace(line))
				break
			}
		}
	}

	names := extractNames(text)
	dates := datePattern.FindAllString(text, -1)

	var sb strings.Builder

	sb.WriteString("# Meeting Summary Report\n\n")
	fmt.Fprintf(&sb, "**Generated on:** %s\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "**Word Count:** %d words\n\n", wordCount)

	sb.WriteString("## Executive Summary\n")
	fmt.Fprintf(&sb, "This meeting covered %d discussion points with %d potential action items identified.\n\n",
		len(lines), len(actionLines))

	sb.WriteString("## Key Participants\n")
	if len(names) > 0 {
		if len(names) > 10 {
			names = names[:10]
		}
		sb.WriteString(strings.Join(names, ", "))
	} else {
		sb.WriteString("Names not clearly identified")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Potential Action Items\n")
	if len(actionLines) == 0 {
		sb.WriteString("No clear action items detected in the text.\n")
	} else {
		limit := len(actionLines)
		if limit > 10 {
			limit = 10
		}
		for i, action := range actionLines[:limit] {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, action)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Important Dates Mentioned\n")
	if len(dates) > 0 {
		sb.WriteString(strings.Join(dates, ", "))
	} else {
		sb.WriteString("No specific dates found")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Next Steps\n")
	sb.WriteString("- Review and validate the extracted action items\n")
	sb.WriteString("- Assign specific owners and deadlines\n")
	sb.WriteString("- Schedule follow-up meeting if needed\n\n")

	sb.WriteString("## Note\n")
	sb.WriteString("This summary was generated using local text processing. For AI-powered analysis, configure an Ollama endpoint.\n")

	return sb.String()
}

// extractNames collects title-cased words longer than two characters,
// deduplicated and sorted.
func extractNames(text string) []string {
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if len(trimmed) <= 2 || !isTitleCase(trimmed) {
			continue
		}
		seen[trimmed] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isTitleCase reports whether a word starts uppercase and continues lowercase.
func isTitleCase(word string) bool {
	for i, r := range word {
		if i == 0 {
			if !unicode.IsUpper(r) {
				return false
			}
			continue
		}
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
