package chunker

import (
	"fmt"
	"strings"
)

type ChunkOptions struct {
	ChunkSize    int // window size in runes
	ChunkOverlap int // runes shared by consecutive windows
}

type TextChunk struct {
	Content string
	Index   int
	Start   int // rune offset
	End     int
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

func (o ChunkOptions) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// Count returns how many windows Chunk produces for n runes of non-blank text.
func (o ChunkOptions) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= o.ChunkSize {
		return 1
	}
	step := o.ChunkSize - o.ChunkOverlap
	return (n - o.ChunkOverlap + step - 1) / step
}

// Chunk splits text into fixed windows of ChunkSize runes, each starting
// ChunkSize-ChunkOverlap runes after the previous one. The last window ends at
// the end of the text. Whitespace-only windows are skipped.
func Chunk(text string, opts ChunkOptions) ([]TextChunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var chunks []TextChunk
	runes := []rune(text)
	step := opts.ChunkSize - opts.ChunkOverlap
	idx := 0

	for start := 0; start < len(runes); start += step {
		end := start + opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, TextChunk{
				Content: content,
				Index:   idx,
				Start:   start,
				End:     end,
			})
			idx++
		}

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
