package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry 记录一次已结束的调用，只用于展示，不会回灌到 prompt
type Entry struct {
	Question  string    `json:"question"`
	Query     string    `json:"query,omitempty"`
	Answer    string    `json:"answer,omitempty"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Manager struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	file    string
}

// NewManager 创建历史记录；file 为空时只保存在内存
func NewManager(max int, file string) (*Manager, error) {
	if max <= 0 {
		return nil, fmt.Errorf("history size must be positive, got %d", max)
	}
	m := &Manager{max: max, file: file}
	if file == "" {
		return m, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	// 尝试从文件恢复
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &m.entries); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		m.trim()
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read history: %w", err)
	}
	return m, nil
}

func (m *Manager) Record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.entries = append(m.entries, e)
	m.trim()
}

// Entries 返回最近的记录副本，按时间先后
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Save 持久化到文件
func (m *Manager) Save() error {
	if m.file == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return os.WriteFile(m.file, data, 0644)
}

func (m *Manager) trim() {
	if len(m.entries) > m.max {
		m.entries = m.entries[len(m.entries)-m.max:]
	}
}
