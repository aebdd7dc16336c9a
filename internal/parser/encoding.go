package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode 把文件内容转换成 UTF-8，返回实际使用的编码名。
// name 为 "auto" 或空时：合法 UTF-8 直接使用，有 UTF-16 BOM 按 BOM 解码，否则按 ISO-8859-1。
func Decode(data []byte, name string) ([]byte, string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		return detectAndDecode(data)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", name, err)
	}
	canonical, _ := htmlindex.Name(enc)
	return bytes.TrimPrefix(out, utf8BOM), canonical, nil
}

func detectAndDecode(data []byte) ([]byte, string, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, "", fmt.Errorf("decode utf-16: %w", err)
		}
		return out, "utf-16", nil
	}
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), "utf-8", nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode iso-8859-1: %w", err)
	}
	return out, "iso-8859-1", nil
}
