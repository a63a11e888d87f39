package prompt

import (
	"fmt"
	"strings"

	"github.com/reclaimai/reclaim/internal/domain/ai"
)

// MaxPromptText caps how much extracted text goes into one prompt.
const MaxPromptText = 12000

// SystemPrompt provides strict directions and schema for JSON output.
func SystemPrompt() string {
	return `You are a trauma-informed analyst helping a person document digital harassment and abuse. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- "summary" is two to four neutral sentences describing what the evidence shows. Do not speculate about identities.
- "labels" is an array of short lowercase kebab-case tags (for example "threat", "doxxing", "impersonation", "sexual-harassment", "stalking", "hate-speech").
- "severity" is one of: Low, Medium, High, Critical.
- "score" is a number between 0 and 1 expressing how serious the content is.
- If no content is provided, work from the file name and type only and say so in the summary.

Schema (example with empty values):
{
  "summary": "<string>",
  "labels": ["<string>"],
  "severity": "<Low|Medium|High|Critical>",
  "score": 0.0
}`
}

// UserPrompt builds the user message for one evidence item.
func UserPrompt(in ai.Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File name: %s\nFile type: %s\n", in.FileName, in.FileType)
	if !in.HasText() {
		b.WriteString("Content: not available (binary or unsupported format).\n")
		return b.String()
	}
	text := in.Text
	if len(text) > MaxPromptText {
		text = text[:MaxPromptText] + "\n[truncated]"
	}
	b.WriteString("Content:\n")
	b.WriteString(text)
	return b.String()
}
