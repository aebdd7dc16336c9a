package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/sqlchat/internal/config"
	"github.com/liao/sqlchat/internal/database"
)

func TestDatabaseConfig(t *testing.T) {
	got := DatabaseConfig(config.DatabaseConfig{
		Driver:          "postgres",
		Host:            "db",
		Port:            5432,
		User:            "u",
		Password:        "p",
		Name:            "sales",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	assert.Equal(t, database.Config{
		Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "sales",
		MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute,
	}, got)
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "x.db")}}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewStaticSchema(t *testing.T) {
	cfg := &config.Config{
		Gemini:   config.GeminiConfig{APIKey: "test-key", ChatModel: "gemini-2.5-flash", EmbeddingModel: "gemini-embedding-001"},
		Database: config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "sales.db")},
		RAG:      config.RAGConfig{Enabled: false, TopK: 5, Schema: config.DefaultSchema},
	}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, config.DefaultSchema, a.Schema)
	require.NoError(t, a.Executor.Ping(context.Background()))
	assert.NotNil(t, a.Pipeline)
}
