package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/config"
	"github.com/liao/sqlchat/internal/database"
	"github.com/liao/sqlchat/internal/pipeline"
)

type askerFunc func(ctx context.Context, question string) pipeline.Outcome

func (f askerFunc) Ask(ctx context.Context, question string) pipeline.Outcome { return f(ctx, question) }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Name: "sqlchat"}}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(testConfig(), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sqlchat", decode(t, rr)["service"])
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))
}

func TestReadyEndpoint(t *testing.T) {
	h := NewHandler(testConfig(), Dependencies{
		Readiness: CombineReadinessChecks(nil, func(context.Context) error {
			return fmt.Errorf("%w: ping: dial tcp: refused", database.ErrConnectionFailure)
		}),
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "NOT_READY", decode(t, rr)["error_code"])

	h = NewHandler(testConfig(), Dependencies{Readiness: func(context.Context) error { return nil }})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsAndSchemaEndpoints(t *testing.T) {
	h := NewHandler(testConfig(), Dependencies{Schema: []string{"Table: sales_table, Column: Region, Description: Geographical region"}})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sqlchat_http_requests_total")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["descriptions"], 1)
}

func TestAskSuccess(t *testing.T) {
	asker := askerFunc(func(_ context.Context, question string) pipeline.Outcome {
		return pipeline.Outcome{
			Question: question,
			Schema:   []string{"Table: sales_table, Column: Order_ID, Description: Unique identifier for each order"},
			Query:    "SELECT COUNT(*) FROM sales_table;",
			Result:   database.ResultSet{Columns: []string{"COUNT(*)"}, Rows: [][]any{{int64(42)}}},
			Executed: true,
			Answer:   "A total of 42 orders were placed.",
			State:    pipeline.StateDone,
		}
	})
	h := NewHandler(testConfig(), Dependencies{Asker: asker})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"How many orders were placed?"}`))
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "How many orders were placed?", body["question"])
	assert.Equal(t, "SELECT COUNT(*) FROM sales_table;", body["sql"])
	assert.Equal(t, []any{[]any{float64(42)}}, body["rows"])
	assert.Equal(t, "[(42,)]", body["result"])
	assert.Equal(t, "A total of 42 orders were placed.", body["answer"])
	assert.Equal(t, "done", body["state"])
	assert.NotEmpty(t, body["trace_id"])
}

func TestAskZeroRows(t *testing.T) {
	asker := askerFunc(func(_ context.Context, question string) pipeline.Outcome {
		return pipeline.Outcome{
			Question: question,
			Query:    "SELECT * FROM sales_table WHERE Region = 'Atlantis';",
			Result:   database.ResultSet{Columns: []string{"Order_ID"}},
			Executed: true,
			Answer:   "No matching records were found.",
			State:    pipeline.StateDone,
		}
	})
	h := NewHandler(testConfig(), Dependencies{Asker: asker})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"Orders from Atlantis?"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decode(t, rr)["rows"])
}

func TestAskFailures(t *testing.T) {
	cases := []struct {
		name   string
		out    pipeline.Outcome
		status int
		code   string
	}{
		{"empty question", pipeline.Outcome{State: pipeline.StateFailed, FailedAt: pipeline.StateIdle, Err: pipeline.ErrEmptyQuestion}, http.StatusBadRequest, "EMPTY_QUESTION"},
		{"model failure", pipeline.Outcome{State: pipeline.StateFailed, FailedAt: pipeline.StateGeneratingQuery, Err: ai.ErrModelFailure}, http.StatusBadGateway, "MODEL_FAILURE"},
		{"query failure", pipeline.Outcome{State: pipeline.StateFailed, FailedAt: pipeline.StateExecutingQuery, Query: "SELECT nope FROM sales_table;", Err: fmt.Errorf("%w: unknown column", database.ErrQueryFailure)}, http.StatusUnprocessableEntity, "QUERY_FAILED"},
		{"connection failure", pipeline.Outcome{State: pipeline.StateFailed, FailedAt: pipeline.StateExecutingQuery, Err: database.ErrConnectionFailure}, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE"},
		{"unknown", pipeline.Outcome{State: pipeline.StateFailed, FailedAt: pipeline.StateHumanizing, Err: errors.New("boom")}, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(testConfig(), Dependencies{Asker: askerFunc(func(context.Context, string) pipeline.Outcome { return tc.out })})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"x"}`)))

			require.Equal(t, tc.status, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, tc.code, body["error_code"])
			assert.Equal(t, tc.out.FailureMessage(), body["message"])
			if tc.out.Query != "" {
				assert.Equal(t, tc.out.Query, body["context"].(map[string]any)["sql"])
			}
		})
	}
}

func TestAskBadRequest(t *testing.T) {
	called := false
	h := NewHandler(testConfig(), Dependencies{Asker: askerFunc(func(context.Context, string) pipeline.Outcome {
		called = true
		return pipeline.Outcome{}
	})})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)

	h = NewHandler(testConfig(), Dependencies{})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"x"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
