package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/database"
	"github.com/liao/sqlchat/internal/rag"
)

// scriptedModel 根据 prompt 类型返回预设的 SQL 或回答
type scriptedModel struct {
	mu           sync.Mutex
	sql          string
	sqlErr       error
	answer       func(prompt string) string
	answerErr    error
	queryCalls   int
	humanCalls   int
	lastQueryPmt string
}

func (m *scriptedModel) Generate(_ context.Context, instruction, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.Contains(instruction, "converting English questions") {
		m.queryCalls++
		m.lastQueryPmt = instruction
		if m.sqlErr != nil {
			return "", m.sqlErr
		}
		return m.sql, nil
	}
	m.humanCalls++
	if m.answerErr != nil {
		return "", m.answerErr
	}
	return m.answer(instruction), nil
}

type fakeExecutor struct {
	result database.ResultSet
	err    error
	calls  int
}

func (e *fakeExecutor) Execute(context.Context, string) (database.ResultSet, error) {
	e.calls++
	return e.result, e.err
}

type recorder struct {
	mu          sync.Mutex
	transitions []string
	stages      map[State]error
}

func newRecorder() *recorder {
	return &recorder{stages: map[State]error{}}
}

func (r *recorder) Transition(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+">"+string(to))
}

func (r *recorder) StageDone(stage State, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage] = err
}

func openSalesDB(t *testing.T) *database.Executor {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "sales.db"), MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE sales_table (ORDERNUMBER INTEGER, CUSTOMERNAME TEXT, COUNTRY TEXT, SALES REAL)`)
	require.NoError(t, err)
	for i := 0; i < 42; i++ {
		country := "USA"
		if i%2 == 0 {
			country = "France"
		}
		_, err = db.ExecContext(ctx, `INSERT INTO sales_table VALUES (?, ?, ?, ?)`, 10100+i, fmt.Sprintf("Customer %d", i), country, 100.5)
		require.NoError(t, err)
	}
	return database.NewExecutor(db)
}

func sentenceAnswer(prompt string) string {
	switch {
	case strings.Contains(prompt, `"[(42,)]"`):
		return "A total of 42 orders were placed."
	case strings.Contains(prompt, `"[]"`):
		return "I'm sorry, no matching customers were found in Germany."
	default:
		return "Here is what I found."
	}
}

func TestAskCountsOrders(t *testing.T) {
	model := &scriptedModel{sql: "```sql\nSELECT COUNT(*) FROM sales_table;\n```", answer: sentenceAnswer}
	rec := newRecorder()
	p := New(model, openSalesDB(t), nil, 5, rec)

	out := p.Ask(context.Background(), "How many orders were placed?")

	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, "SELECT COUNT(*) FROM sales_table;", out.Query)
	assert.Equal(t, [][]any{{int64(42)}}, out.Result.Rows)
	assert.Contains(t, out.Answer, "42")
	assert.True(t, strings.HasSuffix(out.Answer, "."))
	assert.Equal(t, []string{
		"idle>generating_query",
		"generating_query>executing_query",
		"executing_query>humanizing",
		"humanizing>done",
	}, rec.transitions)
}

func TestAskZeroRowsStillHumanizes(t *testing.T) {
	model := &scriptedModel{sql: "SELECT CUSTOMERNAME FROM sales_table WHERE COUNTRY='Germany';", answer: sentenceAnswer}
	rec := newRecorder()
	p := New(model, openSalesDB(t), nil, 5, rec)

	out := p.Ask(context.Background(), "List customers from Germany")

	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Contains(t, out.Query, "COUNTRY='Germany'")
	assert.True(t, out.Executed)
	assert.True(t, out.Result.Empty())
	assert.Contains(t, out.Answer, "no matching customers")
	assert.Contains(t, rec.transitions, "executing_query>humanizing")
	assert.Equal(t, 1, model.humanCalls)
}

func TestAskQueryFailureSkipsHumanizer(t *testing.T) {
	model := &scriptedModel{sql: "SELECT NONEXISTENT_COLUMN FROM sales_table;", answer: sentenceAnswer}
	rec := newRecorder()
	p := New(model, openSalesDB(t), nil, 5, rec)

	out := p.Ask(context.Background(), "What is the nonexistent column?")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateExecutingQuery, out.FailedAt)
	assert.ErrorIs(t, out.Err, database.ErrQueryFailure)
	assert.False(t, out.Executed)
	assert.Zero(t, model.humanCalls, "humanizer must not be invoked")
	assert.Equal(t, "executing_query>failed", rec.transitions[len(rec.transitions)-1])
	assert.Error(t, rec.stages[StateExecutingQuery])
	assert.Equal(t, "Could not read data for this question.", out.FailureMessage())
}

func TestAskModelFailures(t *testing.T) {
	t.Run("query generation fails", func(t *testing.T) {
		model := &scriptedModel{sqlErr: fmt.Errorf("%w: 401 UNAUTHENTICATED", ai.ErrModelFailure)}
		exec := &fakeExecutor{}
		out := New(model, exec, nil, 5).Ask(context.Background(), "How many orders?")

		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, StateGeneratingQuery, out.FailedAt)
		assert.ErrorIs(t, out.Err, ai.ErrModelFailure)
		assert.Zero(t, exec.calls, "execution must not be attempted")
	})

	t.Run("model returns only fences", func(t *testing.T) {
		model := &scriptedModel{sql: "```sql\n```"}
		exec := &fakeExecutor{}
		out := New(model, exec, nil, 5).Ask(context.Background(), "How many orders?")

		assert.Equal(t, StateGeneratingQuery, out.FailedAt)
		assert.ErrorIs(t, out.Err, ai.ErrModelFailure)
		assert.Zero(t, exec.calls)
	})

	t.Run("humanizer fails", func(t *testing.T) {
		model := &scriptedModel{sql: "SELECT 1", answerErr: fmt.Errorf("%w: 503", ai.ErrModelFailure)}
		exec := &fakeExecutor{result: database.ResultSet{Columns: []string{"1"}, Rows: [][]any{{int64(1)}}}}
		out := New(model, exec, nil, 5).Ask(context.Background(), "one?")

		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, StateHumanizing, out.FailedAt)
		assert.True(t, out.Executed, "raw result stays available to the caller")
		assert.Equal(t, [][]any{{int64(1)}}, out.Result.Rows)
		assert.Equal(t, "No answer available for this question.", out.FailureMessage())
	})
}

func TestAskConnectionFailure(t *testing.T) {
	model := &scriptedModel{sql: "SELECT 1", answer: sentenceAnswer}
	exec := &fakeExecutor{err: fmt.Errorf("%w: acquire connection: sql: database is closed", database.ErrConnectionFailure)}
	out := New(model, exec, nil, 5).Ask(context.Background(), "one?")

	assert.Equal(t, StateExecutingQuery, out.FailedAt)
	assert.ErrorIs(t, out.Err, database.ErrConnectionFailure)
	assert.Equal(t, "Could not connect to the database.", out.FailureMessage())
}

func TestAskEmptyQuestion(t *testing.T) {
	model := &scriptedModel{sql: "SELECT 1"}
	rec := newRecorder()
	out := New(model, &fakeExecutor{}, nil, 5, rec).Ask(context.Background(), "   ")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateIdle, out.FailedAt)
	assert.ErrorIs(t, out.Err, ErrEmptyQuestion)
	assert.Zero(t, model.queryCalls)
	assert.Equal(t, []string{"idle>failed"}, rec.transitions, "only the terminal state is reported")
	assert.Empty(t, rec.stages, "no stage ran")
}

type fakeSchema struct {
	schema []string
	err    error
	k      int
}

func (f *fakeSchema) Retrieve(_ context.Context, _ string, k int) ([]string, error) {
	f.k = k
	return f.schema, f.err
}

func TestAskWithSchema(t *testing.T) {
	t.Run("retrieved schema is embedded in the prompt", func(t *testing.T) {
		schema := &fakeSchema{schema: []string{
			rag.Describe("sales_table", "COUNTRY", "Country where the order was placed"),
			rag.Describe("sales_table", "CUSTOMERNAME", "Name of the customer who placed the order"),
		}}
		model := &scriptedModel{sql: "SELECT 1", answer: sentenceAnswer}
		exec := &fakeExecutor{result: database.ResultSet{Rows: [][]any{}}}

		out := New(model, exec, schema, 3).Ask(context.Background(), "List customers from Germany")

		require.NoError(t, out.Err)
		assert.Equal(t, 3, schema.k)
		assert.Equal(t, schema.schema, out.Schema)
		assert.Contains(t, model.lastQueryPmt, strings.Join(schema.schema, "\n"))
	})

	t.Run("retrieval failure stops before generation", func(t *testing.T) {
		schema := &fakeSchema{err: errors.New("embedding quota exceeded")}
		model := &scriptedModel{sql: "SELECT 1"}
		out := New(model, &fakeExecutor{}, schema, 5).Ask(context.Background(), "q")

		assert.Equal(t, StateGeneratingQuery, out.FailedAt)
		assert.Zero(t, model.queryCalls)
	})
}

func TestAskIsIndependentAcrossConcurrentCalls(t *testing.T) {
	model := &scriptedModel{sql: "SELECT COUNT(*) FROM sales_table;", answer: sentenceAnswer}
	p := New(model, openSalesDB(t), rag.StaticSchema{"Table: sales_table, Column: ORDERNUMBER, Description: id"}, 5)

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = p.Ask(context.Background(), "How many orders were placed?")
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		require.NoError(t, out.Err)
		assert.Equal(t, StateDone, out.State)
		assert.Contains(t, out.Answer, "42")
	}
	assert.Equal(t, 8, model.queryCalls)
}
