package review

import (
	"fmt"
	"strings"

	"prsentinel/internal/ai"
	"prsentinel/internal/models"
)

var severityEmoji = map[models.Severity]string{
	models.SeverityCritical: "🛑",
	models.SeverityHigh:     "❌",
	models.SeverityMedium:   "⚠️",
	models.SeverityLow:      "💡",
	models.SeverityInfo:     "ℹ️",
}

// FormatComment renders a batch result as the Markdown comment posted
// back to the pull request.
func FormatComment(prTitle string, result *ai.BatchResult) string {
	var sb strings.Builder

	sb.WriteString("## 🤖 AI Code Review\n\n")
	if prTitle != "" {
		sb.WriteString(fmt.Sprintf("**%s**\n\n", prTitle))
	}

	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Files Analyzed | %d |\n", result.FilesAnalyzed))
	sb.WriteString(fmt.Sprintf("| Issues Found | %d |\n", len(result.Findings)))
	sb.WriteString(fmt.Sprintf("| Quality Score | %d/100 |\n", result.QualityScore))

	if result.Summary != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", result.Summary))
	}

	if len(result.Findings) == 0 {
		sb.WriteString("\n✅ No issues found.\n")
		return sb.String()
	}

	sb.WriteString("\n### Findings\n\n")
	for _, f := range result.Findings {
		emoji := severityEmoji[f.Severity]
		if emoji == "" {
			emoji = "⚠️"
		}

		sb.WriteString(fmt.Sprintf("%s **%s** `%s:%d` (%s/%s)\n\n", emoji, f.Title, f.File, f.Line, f.Severity, f.Category))
		sb.WriteString(f.Description)
		sb.WriteString("\n")

		if f.CodeSnippet != "" {
			sb.WriteString(fmt.Sprintf("\n```\n%s\n```\n", f.CodeSnippet))
		}
		if f.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\n> 💡 %s\n", f.Suggestion))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
