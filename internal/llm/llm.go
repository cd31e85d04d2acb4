package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"quizmaster/internal/domain"
)

// Client wraps an OpenAI-compatible API client for quiz generation and hints.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// GenerateQuiz asks the model for one question group per snippet and
// normalizes the answer. Unparseable output yields domain.ErrNoPlayableContent.
func (c *Client) GenerateQuiz(ctx context.Context, req domain.GenerationRequest) ([]domain.QuizGroup, error) {
	if req.NumQuestions <= 0 {
		req.NumQuestions = 10
	}
	if len(req.Types) == 0 {
		req.Types = []domain.QuestionType{domain.QuestionMC}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildQuizSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildQuizUserPrompt(req.Snippets)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.15,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices: %w", domain.ErrNoPlayableContent)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM quiz response", "raw", raw)
	return ParseQuiz(raw)
}

// Hint asks for a one or two sentence hint that does not reveal the answer.
func (c *Client) Hint(ctx context.Context, req domain.HintRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildHintPrompt(req)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("LLM hint call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices for hint")
	}
	hint := StripCodeFences(resp.Choices[0].Message.Content)
	if hint == "" {
		return "", fmt.Errorf("LLM returned an empty hint")
	}
	return hint, nil
}

var fenceRe = regexp.MustCompile("(^|\\n)```[a-zA-Z]*\\n?|```$")

// StripCodeFences removes markdown code fences around model output.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, "$1"))
}

type rawQuestion struct {
	Type        string            `json:"type"`
	Question    string            `json:"question"`
	Options     map[string]string `json:"options"`
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation"`
}

type rawQuiz struct {
	Quizzes []struct {
		Questions []rawQuestion `json:"questions"`
	} `json:"quizzes"`
}

// ParseQuiz decodes generation output, tolerating code fences, and fills in
// missing fields.
func ParseQuiz(text string) ([]domain.QuizGroup, error) {
	var parsed rawQuiz
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		if err := json.Unmarshal([]byte(StripCodeFences(text)), &parsed); err != nil {
			return nil, fmt.Errorf("parse LLM response: %w", domain.ErrNoPlayableContent)
		}
	}
	if parsed.Quizzes == nil {
		return nil, fmt.Errorf("LLM response has no quizzes: %w", domain.ErrNoPlayableContent)
	}

	groups := make([]domain.QuizGroup, 0, len(parsed.Quizzes))
	for _, quiz := range parsed.Quizzes {
		group := domain.QuizGroup{Questions: make([]domain.Question, 0, len(quiz.Questions))}
		for _, q := range quiz.Questions {
			group.Questions = append(group.Questions, normalize(q))
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func normalize(q rawQuestion) domain.Question {
	typ := domain.QuestionType(strings.ToLower(strings.TrimSpace(q.Type)))
	switch typ {
	case domain.QuestionMC, domain.QuestionTF, domain.QuestionShort:
	default:
		typ = domain.QuestionMC
	}

	out := domain.Question{
		Type:          typ,
		Prompt:        q.Question,
		Options:       q.Options,
		CorrectAnswer: strings.TrimSpace(q.Answer),
		Explanation:   q.Explanation,
	}
	switch typ {
	case domain.QuestionTF:
		if len(out.Options) == 0 {
			out.Options = map[string]string{"A": "True", "B": "False"}
		}
		if out.CorrectAnswer == "" {
			out.CorrectAnswer = "A"
		}
	case domain.QuestionMC:
		if len(out.Options) == 0 {
			out.Options = map[string]string{"A": "", "B": "", "C": "", "D": ""}
		}
		if out.CorrectAnswer == "" {
			out.CorrectAnswer = "A"
		}
	case domain.QuestionShort:
		out.Options = nil
	}
	return out
}
