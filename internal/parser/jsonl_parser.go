package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSONL 每行一个 JSON 对象；列按首次出现的顺序排列，缺失的键记为空
func ParseJSONL(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024) // 1MB buffer

	t := &Table{}
	index := map[string]int{}
	var records []map[string]string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		keys, values, err := decodeObject(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		record := make(map[string]string, len(keys))
		for i, key := range keys {
			name := SanitizeIdentifier(key)
			if _, ok := index[name]; !ok {
				index[name] = len(t.Columns)
				t.Columns = append(t.Columns, name)
			}
			record[name] = values[i]
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("jsonl has no records")
	}

	for _, record := range records {
		row := make([]string, len(t.Columns))
		for name, value := range record {
			row[index[name]] = value
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeObject 按原始顺序读出对象的键和值；字符串去引号，null 为空，其它保持 JSON 文本
func decodeObject(line []byte) ([]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("decode object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	var keys, values []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("decode %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, rawCell(raw))
	}
	return keys, values, nil
}

func rawCell(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "null":
		return ""
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return trimmed
}
