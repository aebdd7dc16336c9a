package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Database DatabaseConfig `mapstructure:"database"`
	RAG      RAGConfig      `mapstructure:"rag"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	ShowQuery   bool   `mapstructure:"show_query"`
	HistoryFile string `mapstructure:"history_file"`
	HistorySize int    `mapstructure:"history_size"`
}

type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	ChatModel       string  `mapstructure:"chat_model"`
	EmbeddingModel  string  `mapstructure:"embedding_model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
	RPMLimit        int     `mapstructure:"rpm_limit"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RAGConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	TopK       int      `mapstructure:"top_k"`
	VectorsDir string   `mapstructure:"vectors_dir"`
	Schema     []string `mapstructure:"schema"`
}

type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DefaultSchema 是 sales_table 的列描述，未配置 rag.schema 时使用
var DefaultSchema = []string{
	"Table: sales_table, Column: ORDERNUMBER, Description: Unique identifier for sales order",
	"Table: sales_table, Column: QUANTITYORDERED, Description: Number of quantity of products sold in units",
	"Table: sales_table, Column: SALES, Description: Amount of sales or revenue in USD",
	"Table: sales_table, Column: PRODUCTLINE, Description: Line of products",
	"Table: sales_table, Column: ORDERDATE, Description: Date of the order",
	"Table: sales_table, Column: YEAR_ID, Description: Year of the order",
	"Table: sales_table, Column: COUNTRY, Description: Country where the order was placed",
	"Table: sales_table, Column: CUSTOMERNAME, Description: Name of the customer who placed the order",
}

var knownDrivers = map[string]bool{"mysql": true, "postgres": true, "sqlite": true}

// Load 读取配置文件（可选）、.env 和环境变量
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config file not found, using defaults and environment", "path", path)
		} else {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	// 环境变量覆盖
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		v.Set("gemini.api_key", key)
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" && v.GetString("gemini.api_key") == "" {
		v.Set("gemini.api_key", key)
	}
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		v.Set("database.password", pw)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sqlchat")
	v.SetDefault("app.show_query", true)
	v.SetDefault("app.history_file", "data/history.json")
	v.SetDefault("app.history_size", 50)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.chat_model", "gemini-2.5-flash")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.rpm_limit", 60)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "sales_database")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("rag.enabled", true)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.vectors_dir", "")
	v.SetDefault("rag.schema", DefaultSchema)

	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// RequireGemini 校验需要调用模型的命令必须有 API key
func (c *Config) RequireGemini() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (set in config or GEMINI_API_KEY env)")
	}
	return nil
}

func (c *Config) validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if !knownDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver %q is not supported (mysql, postgres, sqlite)", c.Database.Driver)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if len(c.RAG.Schema) == 0 {
		return fmt.Errorf("rag.schema must contain at least one description")
	}
	return nil
}
