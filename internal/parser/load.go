package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// 支持的导出格式
const (
	FormatAuto  = "auto"
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatHTML  = "html"
)

// Options 控制导入文件的读取方式
type Options struct {
	Format     string // auto|csv|jsonl|html
	Encoding   string // auto 或 htmlindex 认识的编码名
	DecryptKey string // .enc 文件的密码
}

// Load 读取文件并解析成 Table；.enc 结尾的文件先解密
func Load(path string, opts Options) (*Table, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}

	name := path
	if strings.EqualFold(filepath.Ext(path), ".enc") {
		data, err = Decrypt(data, opts.DecryptKey)
		if err != nil {
			return nil, "", err
		}
		name = strings.TrimSuffix(path, filepath.Ext(path))
	}

	format, err := resolveFormat(opts.Format, name)
	if err != nil {
		return nil, "", err
	}

	text, encoding, err := Decode(data, opts.Encoding)
	if err != nil {
		return nil, "", err
	}

	t, err := Parse(text, format)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	t.Name = TableNameFromPath(path)
	return t, encoding, nil
}

// Parse 按指定格式解析已经是 UTF-8 的内容
func Parse(data []byte, format string) (*Table, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatJSONL:
		return ParseJSONL(r)
	case FormatHTML:
		return ParseHTMLTable(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func resolveFormat(format, path string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != FormatAuto {
		return format, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("cannot detect format of %s, use -format", filepath.Base(path))
}
