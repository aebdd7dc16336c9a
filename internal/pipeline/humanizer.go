package pipeline

import (
	"context"
	"fmt"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/database"
)

// ResponseHumanizer 把原始结果改写成自然语言回答
type ResponseHumanizer struct {
	model Generator
}

func NewResponseHumanizer(model Generator) *ResponseHumanizer {
	return &ResponseHumanizer{model: model}
}

func (h *ResponseHumanizer) Humanize(ctx context.Context, question string, result database.ResultSet) (string, error) {
	prompt := ai.BuildHumanizePrompt(question, result.String())

	answer, err := h.model.Generate(ctx, prompt, question)
	if err != nil {
		return "", fmt.Errorf("humanize response: %w", err)
	}
	return answer, nil
}
