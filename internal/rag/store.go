package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"
)

// Store 持有 schema 描述语料的向量索引，构建后只读
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	corpus     []string
}

// NewStore 为语料建立向量索引。vectorsDir 非空时落盘，语料不变则复用已有向量。
func NewStore(ctx context.Context, corpus []string, embedFunc chromem.EmbeddingFunc, vectorsDir string) (*Store, error) {
	corpus = dedupe(corpus)
	if len(corpus) == 0 {
		return nil, fmt.Errorf("schema corpus is empty")
	}

	var (
		db  *chromem.DB
		err error
	)
	if vectorsDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(vectorsDir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName(corpus), nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("get/create collection: %w", err)
	}

	if col.Count() != len(corpus) {
		docs := make([]chromem.Document, 0, len(corpus))
		for i, text := range corpus {
			docs = append(docs, chromem.Document{
				ID:       fmt.Sprintf("schema_%03d", i),
				Content:  text,
				Metadata: map[string]string{"position": fmt.Sprintf("%d", i)},
			})
		}
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("add schema documents: %w", err)
		}
	}

	slog.Info("schema index ready", "dir", vectorsDir, "count", col.Count())
	return &Store{db: db, collection: col, corpus: corpus}, nil
}

// Query 返回与 text 最相似的 k 条描述，按相似度降序
func (s *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if n := s.collection.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	docs, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, Result{
			Content:    d.Content,
			Similarity: d.Similarity,
		})
	}
	return results, nil
}

// Count 返回文档数量
func (s *Store) Count() int {
	return s.collection.Count()
}

// Corpus 返回建索引时使用的语料副本
func (s *Store) Corpus() []string {
	return append([]string(nil), s.corpus...)
}

type Result struct {
	Content    string
	Similarity float32
}

// collectionName 由语料内容决定，语料变化时落盘目录里会是新的 collection
func collectionName(corpus []string) string {
	sum := sha256.Sum256([]byte(strings.Join(corpus, "\n")))
	return "schema_" + hex.EncodeToString(sum[:6])
}

func dedupe(corpus []string) []string {
	seen := make(map[string]bool, len(corpus))
	out := make([]string, 0, len(corpus))
	for _, text := range corpus {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}
