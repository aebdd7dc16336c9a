package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTMLTable 读取页面中第一个 <table>；表头取 <thead> 的 th，没有时取第一行
func ParseHTMLTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no <table> found")
	}

	rows := table.Find("tr")
	var header []string
	bodyStart := 0
	if th := table.Find("thead th"); th.Length() > 0 {
		header = cellTexts(th)
		bodyStart = table.Find("thead tr").Length()
	} else {
		header = cellTexts(rows.First().Find("th, td"))
		bodyStart = 1
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("table has no header row")
	}

	t := &Table{Columns: normalizeHeader(header)}
	rows.Slice(bodyStart, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr.Find("td, th"))
		if len(cells) == 0 {
			return
		}
		// 对齐到表头宽度
		row := make([]string, len(t.Columns))
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	})
	return t, nil
}

func cellTexts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
