package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/liao/sqlchat/internal/ai"
	"github.com/liao/sqlchat/internal/config"
	"github.com/liao/sqlchat/internal/database"
	"github.com/liao/sqlchat/internal/pipeline"
	"github.com/liao/sqlchat/internal/rag"
)

// App 持有一次进程生命周期内共享的连接池和 pipeline
type App struct {
	DB       *sql.DB
	Executor *database.Executor
	Pipeline *pipeline.Pipeline
	Schema   []string
}

// DatabaseConfig 把配置转换成连接参数
func DatabaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Name:            cfg.Name,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// New 依次初始化 Gemini 客户端、数据库连接池和 schema 来源，组装成 pipeline
func New(ctx context.Context, cfg *config.Config, observers ...pipeline.Observer) (*App, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}

	// Gemini 客户端
	aiClient, err := ai.NewClient(ctx,
		cfg.Gemini.APIKey,
		cfg.Gemini.ChatModel,
		cfg.Gemini.EmbeddingModel,
		cfg.Gemini.Temperature,
		cfg.Gemini.MaxOutputTokens,
		cfg.Gemini.RPMLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("create AI client: %w", err)
	}
	slog.Info("AI client initialized", "model", cfg.Gemini.ChatModel)

	db, err := database.Open(ctx, DatabaseConfig(cfg.Database))
	if err != nil {
		return nil, err
	}
	slog.Info("database connected", "driver", cfg.Database.Driver, "name", cfg.Database.Name)

	schema, err := schemaSource(ctx, cfg, aiClient)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	executor := database.NewExecutor(db)
	return &App{
		DB:       db,
		Executor: executor,
		Pipeline: pipeline.New(aiClient, executor, schema, cfg.RAG.TopK, observers...),
		Schema:   cfg.RAG.Schema,
	}, nil
}

// schemaSource 在 RAG 模式下建向量索引，否则把完整语料作为固定 schema
func schemaSource(ctx context.Context, cfg *config.Config, aiClient *ai.Client) (pipeline.SchemaSource, error) {
	if !cfg.RAG.Enabled {
		slog.Info("RAG disabled, using static schema", "descriptions", len(cfg.RAG.Schema))
		return rag.StaticSchema(cfg.RAG.Schema), nil
	}

	store, err := rag.NewStore(ctx, cfg.RAG.Schema, aiClient.EmbedFunc(), cfg.RAG.VectorsDir)
	if err != nil {
		return nil, fmt.Errorf("build schema index: %w", err)
	}
	slog.Info("RAG enabled", "descriptions", store.Count(), "top_k", cfg.RAG.TopK)
	return rag.NewRetriever(store), nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
