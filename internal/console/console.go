package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/liao/sqlchat/internal/history"
	"github.com/liao/sqlchat/internal/pipeline"
)

// Asker 是控制台需要的问答能力，*pipeline.Pipeline 实现了它
type Asker interface {
	Ask(ctx context.Context, question string) pipeline.Outcome
}

// Pinger 用于 /status 检查数据库连接
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Name      string
	ShowQuery bool
	Schema    []string // /schema 展示的描述
}

type Console struct {
	opts    Options
	asker   Asker
	pinger  Pinger
	history *history.Manager
	out     io.Writer
	saving  sync.WaitGroup
}

func New(opts Options, asker Asker, pinger Pinger, hist *history.Manager, out io.Writer) *Console {
	if opts.Name == "" {
		opts.Name = "sqlchat"
	}
	return &Console{
		opts:    opts,
		asker:   asker,
		pinger:  pinger,
		history: hist,
		out:     out,
	}
}

// Run 逐行读取问题直到 EOF、/quit 或 ctx 结束；ctx 取消时不必等下一行输入
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	c.printf("%s ready. Ask a question about your data, or /help for commands.\n", c.opts.Name)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("> ")

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.command(ctx, line); quit {
				return nil
			}
			continue
		}
		c.Ask(ctx, line)
	}
}

// readLines 在后台读取输入；done 关闭后停止投递
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}

// Ask 回答一个问题并把结果打印出来
func (c *Console) Ask(ctx context.Context, question string) pipeline.Outcome {
	out := c.asker.Ask(ctx, question)

	if c.opts.ShowQuery {
		c.printQuery(out)
	}
	if out.Failed() {
		c.printf("%s\n", out.FailureMessage())
	} else {
		c.printf("%s\n", out.Answer)
	}

	if c.history != nil && out.FailedAt != pipeline.StateIdle {
		c.record(out)
	}
	return out
}

// Stop 等待后台保存结束后再保存一次历史
func (c *Console) Stop() {
	c.saving.Wait()
	if c.history == nil {
		return
	}
	if err := c.history.Save(); err != nil {
		slog.Error("save history failed", "error", err)
	}
}

func (c *Console) command(ctx context.Context, line string) bool {
	switch cmd := strings.ToLower(strings.Fields(line)[0]); cmd {
	case "/quit", "/exit":
		c.printf("bye\n")
		return true
	case "/status":
		if c.pinger == nil {
			c.printf("database: not configured\n")
			break
		}
		if err := c.pinger.Ping(ctx); err != nil {
			slog.Warn("database ping failed", "error", err)
			c.printf("database: unreachable\n")
			break
		}
		c.printf("database: connected\n")
	case "/schema":
		if len(c.opts.Schema) == 0 {
			c.printf("no schema descriptions loaded\n")
			break
		}
		for _, s := range c.opts.Schema {
			c.printf("  %s\n", s)
		}
	case "/history":
		c.printHistory()
	case "/help":
		c.printf("commands: /status /schema /history /quit\n")
	default:
		c.printf("unknown command %s, try /help\n", cmd)
	}
	return false
}

func (c *Console) printQuery(out pipeline.Outcome) {
	if len(out.Schema) > 0 {
		c.printf("Schema:\n")
		for _, s := range out.Schema {
			c.printf("  %s\n", s)
		}
	}
	if out.Query != "" {
		c.printf("SQL: %s\n", out.Query)
	}
	if out.Executed {
		c.printf("Result: %s\n", out.Result.String())
	}
}

func (c *Console) printHistory() {
	if c.history == nil {
		c.printf("history is disabled\n")
		return
	}
	entries := c.history.Entries()
	if len(entries) == 0 {
		c.printf("no questions yet\n")
		return
	}
	for _, e := range entries {
		c.printf("[%s] %s (%s)\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Question, e.State)
		if e.Answer != "" {
			c.printf("    %s\n", e.Answer)
		}
	}
}

func (c *Console) record(out pipeline.Outcome) {
	e := history.Entry{
		Question: out.Question,
		Query:    out.Query,
		Answer:   out.Answer,
		State:    string(out.State),
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	c.history.Record(e)

	// 异步保存历史
	c.saving.Add(1)
	go func() {
		defer c.saving.Done()
		if err := c.history.Save(); err != nil {
			slog.Error("save history failed", "error", err)
		}
	}()
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
