package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWindowCount(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		length int
		want   int
	}{
		{length: 1, want: 1},
		{length: 1000, want: 1},
		{length: 1001, want: 2},
		{length: 1800, want: 2},
		{length: 1801, want: 3},
		{length: 5000, want: 6},
	}

	for _, tt := range tests {
		text := strings.Repeat("a", tt.length)
		chunks, err := Chunk(text, opts)
		require.NoError(t, err)
		assert.Len(t, chunks, tt.want, "length %d", tt.length)
		assert.Equal(t, tt.want, opts.Count(tt.length), "length %d", tt.length)
	}
}

func TestChunkOverlapAndCoverage(t *testing.T) {
	text := strings.Repeat("0123456789", 50)
	chunks, err := Chunk(text, ChunkOptions{ChunkSize: 120, ChunkOverlap: 20})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End-20, chunks[i].Start)
		assert.Equal(t, i, chunks[i].Index)
		prevTail := chunks[i-1].Content[len(chunks[i-1].Content)-20:]
		assert.True(t, strings.HasPrefix(chunks[i].Content, prevTail))
	}
}

func TestChunkCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 15)
	chunks, err := Chunk(text, ChunkOptions{ChunkSize: 10, ChunkOverlap: 5})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0].Content)
	assert.Equal(t, 15, chunks[1].End)
}

func TestChunkSkipsBlankWindows(t *testing.T) {
	chunks, err := Chunk("   \n\t  ", ChunkOptions{ChunkSize: 4, ChunkOverlap: 0})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkRejectsInvalidOptions(t *testing.T) {
	_, err := Chunk("text", ChunkOptions{ChunkSize: 0})
	assert.Error(t, err)

	_, err = Chunk("text", ChunkOptions{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
}
