package writer

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiWriter implements Writer using Gemini text generation.
type GeminiWriter struct {
	client        *genai.Client
	model         string
	promptBuilder *PromptBuilder
}

func NewGeminiWriter(ctx context.Context, apiKey, modelName string) (*GeminiWriter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiWriter{
		client:        client,
		model:         modelName,
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (w *GeminiWriter) OutlineDraft(ctx context.Context, brief OutlineBrief) ([]SectionPlan, error) {
	text, err := w.generate(ctx, w.promptBuilder.BuildOutlinePrompt(brief))
	if err != nil {
		return nil, err
	}
	return parseSectionPlans(text)
}

func (w *GeminiWriter) SectionContent(ctx context.Context, brief SectionBrief) (string, error) {
	text, err := w.generate(ctx, w.promptBuilder.BuildSectionPrompt(brief))
	if err != nil {
		return "", err
	}
	content := cleanModelOutput(text)
	if content == "" {
		return "", fmt.Errorf("model returned empty section content")
	}
	return content, nil
}

func (w *GeminiWriter) generate(ctx context.Context, prompt string) (string, error) {
	contents := genai.Text(prompt)
	resp, err := w.client.Models.GenerateContent(ctx, w.model, contents, nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return text, nil
}
