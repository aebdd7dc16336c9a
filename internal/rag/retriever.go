package rag

import (
	"context"
	"log/slog"
)

// Retriever 根据问题检索相关的 schema 描述
type Retriever struct {
	store *Store
}

func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// Retrieve 返回最多 k 条描述；语料不足 k 条时返回全部
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	results, err := r.store.Query(ctx, question, k)
	if err != nil {
		return nil, err
	}

	schema := make([]string, 0, len(results))
	for _, res := range results {
		schema = append(schema, res.Content)
	}

	slog.Debug("schema retrieved", "question", question, "k", k, "count", len(schema))
	return schema, nil
}

// StaticSchema 不做检索，总是返回完整语料（非 RAG 模式）
type StaticSchema []string

func (s StaticSchema) Retrieve(_ context.Context, _ string, _ int) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Describe 生成 "Table: T, Column: C, Description: D" 格式的描述
func Describe(table, column, description string) string {
	return "Table: " + table + ", Column: " + column + ", Description: " + description
}
