package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"blank", " \n\t", 0},
		{"one word", "hi", 2},
		{"three words", "the quick fox", 4},
		{"long word", strings.Repeat("x", 40), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountTokens(tt.text))
		})
	}
}
