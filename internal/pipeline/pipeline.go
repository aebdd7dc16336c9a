package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/database"
)

type State string

const (
	StateIdle            State = "idle"
	StateGeneratingQuery State = "generating_query"
	StateExecutingQuery  State = "executing_query"
	StateHumanizing      State = "humanizing"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

var ErrEmptyQuestion = errors.New("question is empty")

// SchemaSource 提供注入 prompt 的 schema 描述；rag.Retriever 和 rag.StaticSchema 都实现了它
type SchemaSource interface {
	Retrieve(ctx context.Context, question string, k int) ([]string, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, query string) (database.ResultSet, error)
}

// Observer 接收状态迁移和每个阶段的耗时，用于进度提示和指标
type Observer interface {
	Transition(from, to State)
	StageDone(stage State, elapsed time.Duration, err error)
}

// Outcome 是一次调用的最终结果；State 只会是 StateDone 或 StateFailed
type Outcome struct {
	Question string
	Schema   []string
	Query    string
	Result   database.ResultSet
	Executed bool
	Answer   string
	State    State
	FailedAt State
	Err      error
}

func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

// FailureMessage 给边界层展示的简短失败说明
func (o Outcome) FailureMessage() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(o.Err, database.ErrConnectionFailure):
		return "Could not connect to the database."
	case errors.Is(o.Err, database.ErrQueryFailure):
		return "Could not read data for this question."
	case errors.Is(o.Err, ai.ErrModelFailure) && o.FailedAt == StateHumanizing:
		return "No answer available for this question."
	case errors.Is(o.Err, ai.ErrModelFailure):
		return "No query could be generated for this question."
	default:
		return "The question could not be answered."
	}
}

// Pipeline 按 问题 → schema → SQL → 结果 → 回答 的顺序执行，
// 不保存任何跨调用状态，可以被并发调用
type Pipeline struct {
	generator *QueryGenerator
	humanizer *ResponseHumanizer
	executor  QueryExecutor
	schema    SchemaSource
	topK      int
	observers []Observer
}

func New(model Generator, executor QueryExecutor, schema SchemaSource, topK int, observers ...Observer) *Pipeline {
	return &Pipeline{
		generator: NewQueryGenerator(model),
		humanizer: NewResponseHumanizer(model),
		executor:  executor,
		schema:    schema,
		topK:      topK,
		observers: observers,
	}
}

// Ask 跑完一次调用。任何阶段失败都直接结束，后续阶段不再执行，也不重试。
func (p *Pipeline) Ask(ctx context.Context, question string) Outcome {
	out := Outcome{Question: strings.TrimSpace(question), State: StateIdle}
	if out.Question == "" {
		return p.fail(out, StateIdle, ErrEmptyQuestion)
	}

	// 生成 SQL（含 schema 检索）
	p.transition(&out, StateGeneratingQuery)
	start := time.Now()
	query, schema, err := p.generate(ctx, out.Question)
	out.Schema = schema
	p.stageDone(StateGeneratingQuery, time.Since(start), err)
	if err != nil {
		return p.fail(out, StateGeneratingQuery, err)
	}
	out.Query = query

	// 执行
	p.transition(&out, StateExecutingQuery)
	start = time.Now()
	result, err := p.executor.Execute(ctx, query)
	p.stageDone(StateExecutingQuery, time.Since(start), err)
	if err != nil {
		return p.fail(out, StateExecutingQuery, err)
	}
	out.Result = result
	out.Executed = true

	// 零行同样进入 humanize
	p.transition(&out, StateHumanizing)
	start = time.Now()
	answer, err := p.humanizer.Humanize(ctx, out.Question, result)
	p.stageDone(StateHumanizing, time.Since(start), err)
	if err != nil {
		return p.fail(out, StateHumanizing, err)
	}
	out.Answer = answer

	p.transition(&out, StateDone)
	slog.Info("question answered", "question", out.Question, "rows", len(result.Rows))
	return out
}

func (p *Pipeline) generate(ctx context.Context, question string) (string, []string, error) {
	var schema []string
	if p.schema != nil {
		var err error
		schema, err = p.schema.Retrieve(ctx, question, p.topK)
		if err != nil {
			return "", nil, fmt.Errorf("retrieve schema: %w", err)
		}
	}
	query, err := p.generator.Generate(ctx, question, schema)
	return query, schema, err
}

func (p *Pipeline) fail(out Outcome, at State, err error) Outcome {
	out.FailedAt = at
	out.Err = err
	// 空问题也要通知观察者终态，指标才能计入
	p.transition(&out, StateFailed)
	slog.Warn("pipeline failed", "stage", at, "question", out.Question, "error", err)
	return out
}

func (p *Pipeline) transition(out *Outcome, to State) {
	from := out.State
	out.State = to
	slog.Debug("pipeline transition", "from", from, "to", to)
	for _, o := range p.observers {
		o.Transition(from, to)
	}
}

func (p *Pipeline) stageDone(stage State, elapsed time.Duration, err error) {
	for _, o := range p.observers {
		o.StageDone(stage, elapsed, err)
	}
}
