package parser

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Table 是从导出文件读出的表格，单元格保留原始文本，空串表示缺失值
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Column 返回第 i 列的全部单元格
func (t *Table) Column(i int) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if i < len(row) {
			values = append(values, row[i])
		} else {
			values = append(values, "")
		}
	}
	return values
}

// TableNameFromPath 由文件名推导表名，例如 "data/Sales Data.csv.enc" -> "sales_data"
func TableNameFromPath(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			break
		}
		base = strings.TrimSuffix(base, ext)
	}
	return SanitizeIdentifier(strings.ToLower(base))
}

// SanitizeIdentifier 只保留字母、数字和下划线
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}
