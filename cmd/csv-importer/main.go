package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/liao/sqlchat/internal/app"
	"github.com/liao/sqlchat/internal/config"
	"github.com/liao/sqlchat/internal/database"
	"github.com/liao/sqlchat/internal/ingest"
	"github.com/liao/sqlchat/internal/observability"
	"github.com/liao/sqlchat/internal/parser"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path (database section is used)")
	inputFile := flag.String("input", "", "data file (.csv, .jsonl, .html, optionally .enc encrypted)")
	format := flag.String("format", "auto", "input format: csv, jsonl, html, auto")
	encoding := flag.String("encoding", "auto", "text encoding, e.g. utf-8, iso-8859-1, windows-1252, auto")
	decryptKey := flag.String("decrypt-key", "", "decryption password for .enc files (from env DECRYPT_KEY if not set)")
	tableName := flag.String("table", "", "target table name (defaults to the file name)")
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: csv-importer -input <file> [-table <name>] [-format auto] [-encoding auto] [-decrypt-key <key>]\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(observability.NewLogger("csv-importer", cfg.Log, os.Stderr))

	dk := *decryptKey
	if dk == "" {
		dk = os.Getenv("DECRYPT_KEY")
	}

	dialect, err := ingest.DialectFor(cfg.Database.Driver)
	if err != nil {
		slog.Error("unsupported database", "error", err)
		os.Exit(1)
	}

	// 1. 解析文件
	slog.Info("parsing file", "file", *inputFile, "format", *format)
	table, detected, err := parser.Load(*inputFile, parser.Options{
		Format:     *format,
		Encoding:   *encoding,
		DecryptKey: dk,
	})
	if err != nil {
		slog.Error("parse failed", "error", err)
		os.Exit(1)
	}
	if *tableName != "" {
		table.Name = parser.SanitizeIdentifier(*tableName)
	}
	slog.Info("parsed", "table", table.Name, "encoding", detected, "columns", len(table.Columns), "rows", len(table.Rows))

	// 2. 写入数据库
	ctx := context.Background()
	db, err := database.Open(ctx, app.DatabaseConfig(cfg.Database))
	if err != nil {
		slog.Error("connect database failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	summary, err := ingest.Import(ctx, db, dialect, table)
	if err != nil {
		slog.Error("import failed", "error", err)
		db.Close()
		os.Exit(1)
	}

	// 3. 导入报告，附带可以放进 rag.schema 的描述模板
	var b strings.Builder
	fmt.Fprintf(&b, "Import Report\n=============\nTable:    %s\nEncoding: %s\nRows:     %d\nColumns:\n", summary.Table, detected, summary.Rows)
	for _, c := range summary.Columns {
		fmt.Fprintf(&b, "  %-24s %s\n", c.Name, dialect.TypeName(c))
	}
	b.WriteString("\nSchema descriptions (edit the descriptions and add them to rag.schema):\n")
	for _, d := range summary.Descriptions() {
		fmt.Fprintf(&b, "  - %q\n", d)
	}
	fmt.Println(b.String())
	slog.Info("done!")
}
