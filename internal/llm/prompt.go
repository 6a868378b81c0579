package llm

import (
	_ "embed"
	"strings"
)

// PromptVersion identifies the embedded analysis template.
const PromptVersion = "analysis_v1"

const documentPlaceholder = "{{DOCUMENT_TEXT}}"

//go:embed prompts/analysis_v1.txt
var analysisTemplate string

// BuildPrompt embeds text verbatim into the analysis template. It is pure:
// the same text always yields the same prompt.
func BuildPrompt(text string) string {
	return strings.Replace(analysisTemplate, documentPlaceholder, text, 1)
}
