package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// ErrModelFailure 标记生成模型调用失败（网络、鉴权、服务端错误或空回复）
var ErrModelFailure = errors.New("model failure")

// models 是 genai.Models 中用到的部分，便于测试替换
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Client struct {
	models     models
	chatModel  string
	embedModel string
	temp       float32
	maxTokens  int32

	// 限流
	rpmLimit int
	mu       sync.Mutex
	tokens   int
	lastTick time.Time
}

func NewClient(ctx context.Context, apiKey string, chatModel string, embedModel string, temp float32, maxTokens int32, rpmLimit int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(client.Models, chatModel, embedModel, temp, maxTokens, rpmLimit), nil
}

func newClient(m models, chatModel, embedModel string, temp float32, maxTokens int32, rpmLimit int) *Client {
	return &Client{
		models:     m,
		chatModel:  chatModel,
		embedModel: embedModel,
		temp:       temp,
		maxTokens:  maxTokens,
		rpmLimit:   rpmLimit,
		tokens:     rpmLimit,
		lastTick:   time.Now(),
	}
}

// Generate 以 instruction 作为 system prompt、message 作为用户消息生成文本。
// 只调用一次，不重试；任何失败都包装为 ErrModelFailure。
func (c *Client) Generate(ctx context.Context, instruction, message string) (string, error) {
	if strings.TrimSpace(instruction) == "" || strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: instruction and message must be non-empty", ErrModelFailure)
	}
	if err := c.waitForToken(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	contents := []*genai.Content{genai.NewContentFromText(message, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(c.temp),
		MaxOutputTokens:   c.maxTokens,
	}

	resp, err := c.models.GenerateContent(ctx, c.chatModel, contents, cfg)
	if err != nil {
		slog.Warn("generate failed", "model", c.chatModel, "error", err)
		return "", fmt.Errorf("%w: generate content: %w", ErrModelFailure, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrModelFailure, c.chatModel)
	}
	slog.Debug("generated reply", "model", c.chatModel, "chars", len(text))
	return text, nil
}

// Embed 生成文本嵌入向量
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.waitForToken(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	resp, err := c.models.EmbedContent(ctx, c.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: embed content: %w", ErrModelFailure, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrModelFailure)
	}
	return resp.Embeddings[0].Values, nil
}

// EmbedFunc 返回一个可用于 chromem-go 的 embedding 函数
func (c *Client) EmbedFunc() func(ctx context.Context, text string) ([]float32, error) {
	return c.Embed
}

// waitForToken 简单令牌桶限流，rpmLimit <= 0 表示不限流
func (c *Client) waitForToken(ctx context.Context) error {
	if c.rpmLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(c.lastTick)
	if elapsed >= time.Minute {
		c.tokens = c.rpmLimit
		c.lastTick = now
	}

	if c.tokens > 0 {
		c.tokens--
		return nil
	}

	wait := time.Minute - elapsed
	c.mu.Unlock()
	slog.Info("rate limit reached, waiting", "duration", wait)
	select {
	case <-ctx.Done():
		c.mu.Lock()
		return ctx.Err()
	case <-time.After(wait):
	}
	c.mu.Lock()
	c.tokens = c.rpmLimit - 1
	c.lastTick = time.Now()
	return nil
}
