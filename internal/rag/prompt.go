package rag

import (
	"fmt"
	"strings"

	"paperhub/internal/retrieval"
)

// systemPrompt drives extractive, source-grounded answers with inline
// [S#] citations.
const systemPrompt = "You are a careful assistant for a research document corpus. " +
	"Answer ONLY from the provided source passages. " +
	"Rules:\n" +
	"1) If a claim comes from a passage, cite it inline using [S#] (e.g., [S1]).\n" +
	"2) If multiple passages support a sentence, stack citations like [S1][S3].\n" +
	"3) If a page is shown in the passage header, you may add it: [S2 p.14].\n" +
	"4) Prefer concrete numbers, units, and years. Avoid vague language.\n" +
	"5) If the sources are insufficient to answer, say: " +
	"\"I don't know based on the provided sources.\" Do NOT guess.\n" +
	"6) Keep the answer concise: one short paragraph or 3-6 bullets."

const definitionPromptSuffix = "\nThis is a definition question: lead with a one-sentence definition before any detail."

const statisticPromptSuffix = "\nThis is a quantitative question: surface the exact figures, units, and years from the passages."

func systemPromptFor(route Route) string {
	switch route {
	case RouteDefinition:
		return systemPrompt + definitionPromptSuffix
	case RouteStatistic:
		return systemPrompt + statisticPromptSuffix
	default:
		return systemPrompt
	}
}

// buildUserPrompt renders the user message with the question and the
// preformatted source passage lines.
func buildUserPrompt(question string, lines []string) string {
	sourcesBlock := "(no sources)"
	if len(lines) > 0 {
		sourcesBlock = strings.Join(lines, "\n\n")
	}
	return fmt.Sprintf(
		"Question:\n%s\n\nSource Passages:\n%s\n\nWrite the answer now. Follow the Rules and include inline [S#] citations.",
		strings.TrimSpace(question),
		sourcesBlock,
	)
}

// appendSourcesFooter appends a human-readable Sources section to the raw
// answer, one line per citation, omitting empty fields.
func appendSourcesFooter(answer string, citations []retrieval.Citation) string {
	if len(citations) == 0 {
		return answer
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(answer, "\n"))
	b.WriteString("\n\nSources:\n")
	for _, c := range citations {
		b.WriteString(formatSourceLine(c))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSourceLine(c retrieval.Citation) string {
	title := c.Title
	if title == "" {
		title = c.DocID
	}
	if title == "" {
		title = "Source"
	}

	var parts []string
	if c.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", c.Year))
	}
	if c.Page > 0 {
		parts = append(parts, fmt.Sprintf("p.%d", c.Page))
	}
	if c.DocID != "" {
		parts = append(parts, c.DocID)
	}

	line := fmt.Sprintf("%s — %s", c.SID, title)
	if len(parts) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
	}
	if c.URL != "" {
		line += " — " + c.URL
	}
	return line
}
