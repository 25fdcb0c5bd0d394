package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAction_MultipartPlan(t *testing.T) {
	t.Run("parts are ordered numerically regardless of map order", func(t *testing.T) {
		action := &UploadAction{
			Href: "https://example.test/complete",
			Header: map[string]string{
				"chunk_size":   "10",
				"10":           "https://example.test/part10",
				"2":            "https://example.test/part2",
				"1":            "https://example.test/part1",
				"9":            "https://example.test/part9",
				"3":            "https://example.test/part3",
				"4":            "https://example.test/part4",
				"5":            "https://example.test/part5",
				"6":            "https://example.test/part6",
				"7":            "https://example.test/part7",
				"8":            "https://example.test/part8",
				"Content-Type": "application/octet-stream",
			},
		}

		plan, err := action.MultipartPlan(95) // ceil(95/10) = 10 parts
		require.NoError(t, err)
		assert.Equal(t, int64(10), plan.ChunkSize)
		require.Len(t, plan.Parts, 10)
		for i, part := range plan.Parts {
			assert.Equal(t, i+1, part.Number)
		}
		assert.Equal(t, "https://example.test/part10", plan.Parts[9].URL)
	})

	t.Run("part count mismatch is a protocol error", func(t *testing.T) {
		action := &UploadAction{
			Header: map[string]string{
				"chunk_size": "10",
				"1":          "https://example.test/part1",
				"2":          "https://example.test/part2",
			},
		}

		_, err := action.MultipartPlan(50) // needs 5 parts, got 2
		var perr *ProtocolError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("missing chunk_size is a protocol error", func(t *testing.T) {
		action := &UploadAction{Header: map[string]string{"1": "u"}}
		_, err := action.MultipartPlan(10)
		var perr *ProtocolError
		assert.ErrorAs(t, err, &perr)
		assert.False(t, action.IsMultipart())
	})

	t.Run("non-numeric chunk_size is a protocol error", func(t *testing.T) {
		action := &UploadAction{Header: map[string]string{"chunk_size": "ten"}}
		_, err := action.MultipartPlan(10)
		var perr *ProtocolError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("exact multiple of chunk size", func(t *testing.T) {
		action := &UploadAction{
			Header: map[string]string{
				"chunk_size": "10",
				"1":          "u1",
				"2":          "u2",
			},
		}
		plan, err := action.MultipartPlan(20)
		require.NoError(t, err)
		assert.Len(t, plan.Parts, 2)
	})
}
