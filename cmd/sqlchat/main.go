package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/liao/sqlchat/internal/app"
	"github.com/liao/sqlchat/internal/config"
	"github.com/liao/sqlchat/internal/console"
	"github.com/liao/sqlchat/internal/history"
	"github.com/liao/sqlchat/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	question := flag.String("question", "", "answer a single question and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	// 日志走 stderr，避免和回答混在一起
	slog.SetDefault(observability.NewLogger(cfg.App.Name, cfg.Log, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, console.NewProgress(os.Stdout), observability.PipelineMetrics{})
	if err != nil {
		slog.Error("initialize failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// 历史记录
	hist, err := history.NewManager(cfg.App.HistorySize, cfg.App.HistoryFile)
	if err != nil {
		slog.Warn("load history failed, keeping it in memory", "error", err)
		hist, _ = history.NewManager(cfg.App.HistorySize, "")
	}

	c := console.New(console.Options{
		Name:      cfg.App.Name,
		ShowQuery: cfg.App.ShowQuery,
		Schema:    cfg.RAG.Schema,
	}, a.Pipeline, a.Executor, hist, os.Stdout)
	defer c.Stop()

	if *question != "" {
		if out := c.Ask(ctx, *question); out.Failed() {
			c.Stop()
			a.Close()
			os.Exit(1)
		}
		return
	}

	if err := c.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		slog.Error("console failed", "error", err)
	}
	slog.Info("shutting down...")
}
