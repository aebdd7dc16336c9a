package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect 决定标识符引用、占位符和类型名
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectFor 由配置中的驱动名得到方言
func DialectFor(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(driver)); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}

// Quote 引用标识符
func (d Dialect) Quote(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder 返回第 n 个参数（从 1 开始）的占位符
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// TypeName 返回列在该方言下的类型
func (d Dialect) TypeName(c Column) string {
	switch c.Kind {
	case KindInteger:
		if d == MySQL {
			return "INT"
		}
		return "INTEGER"
	case KindBigInt:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case KindFloat:
		switch d {
		case Postgres:
			return "DOUBLE PRECISION"
		case SQLite:
			return "REAL"
		}
		return "DOUBLE"
	case KindBool:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindDateTime:
		if d == Postgres {
			return "TIMESTAMP"
		}
		return "DATETIME"
	default:
		if d == SQLite || c.MaxLen > 255 {
			return "TEXT"
		}
		return "VARCHAR(255)"
	}
}

// CreateTable 生成幂等的建表语句
func (d Dialect) CreateTable(table string, columns []Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = d.Quote(c.Name) + " " + d.TypeName(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(table), strings.Join(defs, ", "))
}

// Insert 生成单行插入语句
func (d Dialect) Insert(table string, columns []Column) string {
	names := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.Quote(c.Name)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), strings.Join(names, ", "), strings.Join(params, ", "))
}
