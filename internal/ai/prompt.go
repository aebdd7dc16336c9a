package ai

import (
	"fmt"
	"regexp"
	"strings"
)

const fence = "```"

// fenceLine 匹配单独成行的代码块标记，包括后面的语言标签
var fenceLine = regexp.MustCompile("```[A-Za-z]*[ \t]*(\r?\n|$)")

// BuildQueryPrompt 组装生成 SQL 的 system prompt；schema 为空时只给静态说明
func BuildQueryPrompt(schema []string) string {
	var b strings.Builder

	b.WriteString("You are an expert in converting English questions to SQL queries!\n")
	b.WriteString("Example SQL command: SELECT COUNT(*) FROM sales_table;\n\n")

	if len(schema) > 0 {
		b.WriteString("Based on the following database schema:\n")
		b.WriteString(strings.Join(schema, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("1. Output a single SQL query and nothing else\n")
	b.WriteString("2. Use only the tables and columns listed above\n")
	b.WriteString("3. The output should not include ``` or the word \"sql\"\n")

	return b.String()
}

// BuildHumanizePrompt 把问题和查询结果嵌入回复模板
func BuildHumanizePrompt(question, result string) string {
	var b strings.Builder

	b.WriteString("You are a customer service agent.\n\n")
	fmt.Fprintf(&b, "Previously, you were asked: \"%s\"\n", question)
	fmt.Fprintf(&b, "The query result from the database is: \"%s\".\n\n", result)
	b.WriteString("Please respond to the customer in a humane, friendly and detailed manner.\n")
	b.WriteString("For example, if the question is \"What is the biggest sales of product A?\",\n")
	b.WriteString("you should answer \"The biggest sales of product A is 1000 USD\".\n")
	b.WriteString("If the result is empty, tell the customer that no matching records were found.\n")

	return b.String()
}

// CleanSQL 去掉模型偶尔输出的代码块标记和 sql 语言标签
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)

	// 有成对代码块时只取第一个代码块的内容
	if start := strings.Index(s, fence); start >= 0 {
		rest := s[start+len(fence):]
		if end := strings.Index(rest, fence); end >= 0 {
			s = rest[:end]
		}
	}
	s = fenceLine.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, fence, "")
	s = strings.TrimSpace(s)

	if len(s) >= 3 && strings.EqualFold(s[:3], "sql") {
		if len(s) == 3 {
			return ""
		}
		if isSpace(s[3]) {
			s = strings.TrimSpace(s[3:])
		}
	}
	return s
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
