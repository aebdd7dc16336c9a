package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/database"
	"github.com/liao/sqlchat/internal/observability"
	"github.com/liao/sqlchat/internal/pipeline"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question string   `json:"question"`
	Schema   []string `json:"schema"`
	SQL      string   `json:"sql"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	Result   string   `json:"result"`
	Answer   string   `json:"answer"`
	State    string   `json:"state"`
	TraceID  string   `json:"trace_id,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Asker == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "question answering is not configured", false, nil)
		return
	}

	var req askRequest
	body := http.MaxBytesReader(w, r.Body, maxAskBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with a question field", false, nil)
		return
	}

	out := deps.Asker.Ask(r.Context(), req.Question)
	if out.Failed() {
		status, code, retryable := classify(out)
		extra := map[string]any{"state": string(out.FailedAt)}
		if out.Query != "" {
			extra["sql"] = out.Query
		}
		if deps.Logger != nil && out.Err != nil {
			deps.Logger.WarnContext(r.Context(), "ask failed", "stage", out.FailedAt, "error", out.Err)
		}
		writeError(r.Context(), w, status, code, out.FailureMessage(), retryable, extra)
		return
	}

	rows := out.Result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Question: out.Question,
		Schema:   out.Schema,
		SQL:      out.Query,
		Columns:  out.Result.Columns,
		Rows:     rows,
		Result:   out.Result.String(),
		Answer:   out.Answer,
		State:    string(out.State),
		TraceID:  observability.TraceIDFromContext(r.Context()),
	})
}

// classify 把失败类型映射为 HTTP 状态和错误码
func classify(out pipeline.Outcome) (int, string, bool) {
	switch {
	case errors.Is(out.Err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest, "EMPTY_QUESTION", false
	case errors.Is(out.Err, database.ErrConnectionFailure):
		return http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", true
	case errors.Is(out.Err, database.ErrQueryFailure):
		return http.StatusUnprocessableEntity, "QUERY_FAILED", false
	case errors.Is(out.Err, ai.ErrModelFailure):
		return http.StatusBadGateway, "MODEL_FAILURE", true
	default:
		return http.StatusInternalServerError, "INTERNAL", false
	}
}
