package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("records are listed newest first", func(t *testing.T) {
		h := NewMemoryHistory()
		first, err := h.Begin("Push", started)
		require.NoError(t, err)
		second, err := h.Begin("ScheduledPush", started.Add(time.Minute))
		require.NoError(t, err)

		records, err := h.List(10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, second, records[0].ID)
		assert.Equal(t, first, records[1].ID)
	})

	t.Run("finish updates the matching record", func(t *testing.T) {
		h := NewMemoryHistory()
		id, err := h.Begin("Push", started)
		require.NoError(t, err)
		require.NoError(t, h.Finish(id, started.Add(time.Second), "success", 2, ""))

		records, err := h.List(1)
		require.NoError(t, err)
		assert.Equal(t, "success", records[0].Status)
		assert.Equal(t, int64(2), records[0].FilesUploaded)
	})

	t.Run("finishing an unknown id fails", func(t *testing.T) {
		h := NewMemoryHistory()
		assert.Error(t, h.Finish(99, started, "success", 0, ""))
	})
}
