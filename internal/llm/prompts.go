package llm

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed prompts/analyze.txt
	analyzeTemplate string
	//go:embed prompts/translate.txt
	translateTemplate string
	//go:embed prompts/ask_document.txt
	askDocumentTemplate string
	//go:embed prompts/ask_general.txt
	askGeneralTemplate string
)

const (
	analyzeTemperature   = float32(0.4)
	translateTemperature = float32(0.2)
	askTemperature       = float32(0.5)
)

// BuildAnalyzePrompt renders the analysis instruction for the given input.
func BuildAnalyzePrompt(input AnalyzeInput) Prompt {
	replacer := strings.NewReplacer(
		"{{LANGUAGE}}", input.Language,
		"{{SITUATION}}", input.Situation,
	)
	temp := analyzeTemperature
	return Prompt{
		System:      replacer.Replace(analyzeTemplate),
		User:        fmt.Sprintf("Here is the document text:\n\n%s", input.DocumentText),
		JSON:        true,
		Temperature: &temp,
	}
}

// BuildTranslatePrompt renders the translation instruction.
func BuildTranslatePrompt(input TranslateInput) Prompt {
	replacer := strings.NewReplacer("{{LANGUAGE}}", input.Language)
	temp := translateTemperature
	return Prompt{
		System: replacer.Replace(translateTemplate),
		User: fmt.Sprintf("Analysis result JSON:\n%s\n\nOriginal document (context only, do not translate):\n%s",
			string(input.Result), orNA(input.DocumentText)),
		JSON:        true,
		Temperature: &temp,
	}
}

// BuildQuestionPrompt renders a follow-up question. Document context is only
// included in document mode.
func BuildQuestionPrompt(input QuestionInput) Prompt {
	temp := askTemperature
	if input.Mode != "document" {
		return Prompt{
			System:      askGeneralTemplate,
			User:        fmt.Sprintf("Question:\n%s", input.Question),
			Temperature: &temp,
		}
	}
	result := "N/A"
	if len(input.Result) > 0 {
		result = string(input.Result)
	}
	return Prompt{
		System: askDocumentTemplate,
		User: fmt.Sprintf("Document text:\n%s\n\nAnalysis result JSON:\n%s\n\nQuestion:\n%s",
			orNA(input.DocumentText), result, input.Question),
		Temperature: &temp,
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
