package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/liao/sqlchat/internal/parser"
	"github.com/liao/sqlchat/internal/rag"
)

// Summary 描述一次导入的结果
type Summary struct {
	Table   string
	Columns []Column
	Rows    int
}

// Descriptions 生成可直接放进 rag.schema 的列描述
func (s Summary) Descriptions() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = rag.Describe(s.Table, c.Name, fmt.Sprintf("%s value", c.Kind))
	}
	return out
}

// Import 建表（已存在则复用）并在一个事务里插入全部行
func Import(ctx context.Context, db *sql.DB, dialect Dialect, t *parser.Table) (Summary, error) {
	if t == nil || t.Name == "" {
		return Summary{}, fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return Summary{}, fmt.Errorf("table %s has no columns", t.Name)
	}

	columns := Infer(t)
	summary := Summary{Table: t.Name, Columns: columns}

	if _, err := db.ExecContext(ctx, dialect.CreateTable(t.Name, columns)); err != nil {
		return summary, fmt.Errorf("create table %s: %w", t.Name, err)
	}
	slog.Debug("table ready", "table", t.Name, "columns", len(columns))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, dialect.Insert(t.Name, columns))
	if err != nil {
		return summary, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for i, row := range t.Rows {
		args := make([]any, len(columns))
		for j, col := range columns {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			v, err := col.Convert(cell)
			if err != nil {
				return summary, fmt.Errorf("row %d column %s: %w", i+1, col.Name, err)
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return summary, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		rows++

		if rows%1000 == 0 {
			slog.Info("import progress", "table", t.Name, "rows", rows)
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	summary.Rows = rows
	return summary, nil
}
