package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrQueryFailure 表示 SQL 执行失败（语法、对象不存在、权限等）
var ErrQueryFailure = errors.New("query failure")

// ResultSet 是一次查询的全部结果行，零行也是合法结果
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

func (r ResultSet) Empty() bool {
	return len(r.Rows) == 0
}

// String 按行序渲染结果，例如 [(42,)] 或 [('Alice', 'Germany')]
func (r ResultSet) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(v))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute 在独占的连接上执行查询并取回全部行，返回前释放 rows 和连接
func (e *Executor) Execute(ctx context.Context, query string) (ResultSet, error) {
	return Execute(ctx, e.db, query)
}

// Ping 检查底层连接池
func (e *Executor) Ping(ctx context.Context) error {
	return Ping(ctx, e.db)
}

func Execute(ctx context.Context, db *sql.DB, query string) (ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return ResultSet{}, fmt.Errorf("%w: query is empty", ErrQueryFailure)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return ResultSet{}, fmt.Errorf("%w: acquire connection: %w", ErrConnectionFailure, err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return ResultSet{}, fmt.Errorf("%w: execute query: %w", ErrQueryFailure, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("%w: query columns: %w", ErrQueryFailure, err)
	}
	numeric := numericColumns(rows, len(columns))

	result := ResultSet{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, fmt.Errorf("%w: scan row: %w", ErrQueryFailure, err)
		}
		result.Rows = append(result.Rows, normalizeValues(values, numeric))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("%w: iterate rows: %w", ErrQueryFailure, err)
	}
	return result, nil
}

// numericColumns 标记数据库类型为数值的列；mysql 文本协议会把数字以 []byte 返回
func numericColumns(rows *sql.Rows, n int) []bool {
	numeric := make([]bool, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return numeric
	}
	for i, ct := range types {
		if i >= n {
			break
		}
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
			"INT2", "INT4", "INT8", "DECIMAL", "NUMERIC", "FLOAT", "FLOAT4", "FLOAT8",
			"DOUBLE", "REAL", "UNSIGNED INT", "UNSIGNED BIGINT":
			numeric[i] = true
		}
	}
	return numeric
}

func normalizeValues(values []any, numeric []bool) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			s := string(typed)
			normalized[i] = s
			if i < len(numeric) && numeric[i] {
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					normalized[i] = n
				} else if f, err := strconv.ParseFloat(s, 64); err == nil {
					normalized[i] = f
				}
			}
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func formatValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", `\'`) + "'"
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 {
			return "'" + typed.Format("2006-01-02") + "'"
		}
		return "'" + typed.Format("2006-01-02 15:04:05") + "'"
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}
