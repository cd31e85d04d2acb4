package llm

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"quizmaster/internal/domain"
)

// languageName renders a language code as its English name for prompts,
// falling back to the code itself.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "English"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func buildQuizSystemPrompt(req domain.GenerationRequest) string {
	types := make([]string, len(req.Types))
	for i, t := range req.Types {
		types[i] = string(t)
	}

	var sb strings.Builder
	sb.WriteString("You are an assistant that converts educational text into quizzes.\n")
	sb.WriteString("Return EXACTLY the structured JSON described below and ONLY the JSON.\n\n")
	sb.WriteString("Top-level JSON:\n")
	sb.WriteString(`{"quizzes": [{"questions": [{"type": "mc" | "tf" | "short", "question": "string", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "answer": "A-D for mc, A or B for tf (A=True, B=False), a short text for short", "explanation": "short string"}]}]}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString(fmt.Sprintf("- For each input snippet produce exactly %d questions, as one entry of \"quizzes\" per snippet in order.\n", req.NumQuestions))
	sb.WriteString("- Use only the requested types: " + strings.Join(types, ", ") + ".\n")
	sb.WriteString("- Produce questions, options and explanations in " + languageName(req.Language) + ".\n")
	if req.Difficulty != "" {
		sb.WriteString("- Target difficulty: " + req.Difficulty + ".\n")
	}
	sb.WriteString("- If type is 'tf', use options A=True, B=False.\n")
	sb.WriteString("- For 'short' provide an expected short answer in 'answer' (a few words) and no options.\n")
	sb.WriteString("- Ensure correct answers can be determined from the snippet. Do not invent facts outside the snippet.\n")
	sb.WriteString("- Output must be valid JSON with no extra commentary or markdown.\n")
	return sb.String()
}

func buildQuizUserPrompt(snippets []string) string {
	var sb strings.Builder
	sb.WriteString("Create quizzes for the following snippets. Return ONLY the JSON described.\n\n")
	for i, s := range snippets {
		sb.WriteString(fmt.Sprintf("--- SNIPPET %d ---\n%s\n\n", i+1, s))
	}
	return sb.String()
}

func buildHintPrompt(req domain.HintRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful tutor. Given a question and its source text, produce 1 short hint ")
	sb.WriteString("(1-2 short sentences) in " + languageName(req.Language) + " that helps the student think ")
	sb.WriteString("toward the answer without revealing the correct answer explicitly.\n\n")
	sb.WriteString("Question:\n" + req.Question + "\n\n")
	if req.Snippet != "" {
		sb.WriteString("Source text:\n" + req.Snippet + "\n\n")
	}
	sb.WriteString("Return ONLY the hint as plain text.\n")
	return sb.String()
}
