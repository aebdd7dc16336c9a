package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liao/sqlchat/internal/parser"
)

// Kind 是推断出的列类型
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindBigInt
	KindFloat
	KindBool
	KindDate
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return "text"
	}
}

// Column 是一列的推断结果
type Column struct {
	Name   string
	Kind   Kind
	MaxLen int
}

var (
	dateLayouts = []string{"2006-01-02", "2006/01/02", "1/2/2006", "01/02/2006", "2-Jan-2006", "Jan 2, 2006"}

	dateTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
)

const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04:05"
)

// Infer 根据全部非空单元格推断每列类型；整列为空时按文本处理
func Infer(t *parser.Table) []Column {
	columns := make([]Column, len(t.Columns))
	for i, name := range t.Columns {
		columns[i] = inferColumn(name, t.Column(i))
	}
	return columns
}

func inferColumn(name string, values []string) Column {
	col := Column{Name: name}
	ints, floats, bools, dates, dateTimes, total := 0, 0, 0, 0, 0, 0
	bigint := false

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		total++
		if n := len([]rune(v)); n > col.MaxLen {
			col.MaxLen = n
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			ints++
			if n > 2147483647 || n < -2147483648 {
				bigint = true
			}
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			floats++
		}
		if _, ok := parseBool(v); ok {
			bools++
		}
		if _, ok := parseTime(v, dateLayouts); ok {
			dates++
		}
		if _, ok := parseTime(v, dateTimeLayouts); ok {
			dateTimes++
		}
	}

	switch {
	case total == 0:
		col.Kind = KindText
	case ints == total && bigint:
		col.Kind = KindBigInt
	case ints == total:
		col.Kind = KindInteger
	case floats == total:
		col.Kind = KindFloat
	case bools == total:
		col.Kind = KindBool
	case dates == total:
		col.Kind = KindDate
	case dates+dateTimes == total && dateTimes > 0:
		col.Kind = KindDateTime
	default:
		col.Kind = KindText
	}
	return col
}

// Convert 把单元格转换成插入用的值，空串为 NULL
func (c Column) Convert(cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	switch c.Kind {
	case KindInteger, KindBigInt:
		return strconv.ParseInt(cell, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(cell, 64)
	case KindBool:
		b, ok := parseBool(cell)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", cell)
		}
		return b, nil
	case KindDate:
		ts, ok := parseTime(cell, dateLayouts)
		if !ok {
			return nil, fmt.Errorf("invalid date %q", cell)
		}
		return ts.Format(dateFormat), nil
	case KindDateTime:
		ts, ok := parseTime(cell, dateTimeLayouts)
		if !ok {
			ts, ok = parseTime(cell, dateLayouts)
		}
		if !ok {
			return nil, fmt.Errorf("invalid datetime %q", cell)
		}
		return ts.Format(dateTimeFormat), nil
	default:
		return cell, nil
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

func parseTime(v string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
