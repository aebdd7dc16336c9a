package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTrimsToSize(t *testing.T) {
	m, err := NewManager(3, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		m.Record(Entry{Question: fmt.Sprintf("q%d", i), State: "done"})
	}

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "q2", entries[0].Question)
	assert.Equal(t, "q4", entries[2].Question)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.NoError(t, m.Save(), "in-memory save is a no-op")
}

func TestManagerPersists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "history.json")

	m, err := NewManager(10, file)
	require.NoError(t, err)
	m.Record(Entry{Question: "How many orders were placed?", Query: "SELECT COUNT(*) FROM sales_table;", Answer: "42 orders.", State: "done"})
	m.Record(Entry{Question: "bad", State: "failed", Error: "query failure"})
	require.NoError(t, m.Save())

	reloaded, err := NewManager(1, file)
	require.NoError(t, err)
	entries := reloaded.Entries()
	require.Len(t, entries, 1, "reload trims to the new size")
	assert.Equal(t, "bad", entries[0].Question)
	assert.Equal(t, "query failure", entries[0].Error)
}

func TestManagerErrors(t *testing.T) {
	t.Run("size must be positive", func(t *testing.T) {
		_, err := NewManager(0, "")
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "history.json")
		require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))
		_, err := NewManager(5, file)
		assert.Error(t, err)
	})
}
