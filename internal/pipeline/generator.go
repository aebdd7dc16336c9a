package pipeline

import (
	"context"
	"fmt"

	"github.com/liao/sqlchat/internal/ai"
)

// Generator 是生成模型的最小接口，*ai.Client 实现了它
type Generator interface {
	Generate(ctx context.Context, instruction, message string) (string, error)
}

// QueryGenerator 把问题（以及可选的 schema 片段）转换成 SQL
type QueryGenerator struct {
	model Generator
}

func NewQueryGenerator(model Generator) *QueryGenerator {
	return &QueryGenerator{model: model}
}

// Generate 返回清理过的 SQL；模型失败或清理后为空都返回 ai.ErrModelFailure
func (g *QueryGenerator) Generate(ctx context.Context, question string, schema []string) (string, error) {
	prompt := ai.BuildQueryPrompt(schema)

	raw, err := g.model.Generate(ctx, prompt, question)
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	query := ai.CleanSQL(raw)
	if query == "" {
		return "", fmt.Errorf("generate query: %w: model returned empty SQL", ai.ErrModelFailure)
	}
	return query, nil
}
