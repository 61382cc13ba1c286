package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtractionStarted,
	StatusExtractionComplete,
	StatusExtractionFailed,
	StatusEmbeddingStarted,
	StatusEmbeddingFailed,
	StatusComplete,
}

func TestStatusLabelsRoundTrip(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	s, err := ParseStatus("AI Embeddings Complete")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, s)

	_, err = ParseStatus("Done")
	assert.Error(t, err)
}

func TestStatusJSONUsesLabel(t *testing.T) {
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusExtractionFailed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Text Extraction Failed"}`, string(data))

	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"AI Embeddings Started"}`), &out))
	assert.Equal(t, StatusEmbeddingStarted, out.Status)
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusExtractionStarted}:            true,
		{StatusExtractionFailed, StatusExtractionStarted}:   true,
		{StatusExtractionStarted, StatusExtractionComplete}: true,
		{StatusExtractionStarted, StatusExtractionFailed}:   true,
		{StatusExtractionComplete, StatusEmbeddingStarted}:  true,
		{StatusEmbeddingFailed, StatusEmbeddingStarted}:     true,
		{StatusEmbeddingStarted, StatusComplete}:            true,
		{StatusEmbeddingStarted, StatusEmbeddingFailed}:     true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestNoTransitionLeavesComplete(t *testing.T) {
	for _, to := range allStatuses {
		assert.False(t, CanTransition(StatusComplete, to), "Complete -> %s", to)
	}
}

func TestTransitionApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reason := "old failure"
	text := "old text"
	doc := &Document{Status: StatusExtractionFailed, FailureReason: &reason, ExtractedText: &text}

	Transition{To: StatusExtractionStarted}.Apply(doc, now)
	assert.Equal(t, StatusExtractionStarted, doc.Status)
	assert.Nil(t, doc.FailureReason)
	assert.Nil(t, doc.ExtractedText)
	assert.Equal(t, now, doc.UpdatedAt)

	Transition{To: StatusExtractionComplete, ExtractedText: "hello"}.Apply(doc, now)
	require.NotNil(t, doc.ExtractedText)
	assert.Equal(t, "hello", *doc.ExtractedText)

	Transition{To: StatusEmbeddingStarted}.Apply(doc, now)
	Transition{To: StatusEmbeddingFailed, FailureReason: "EmbeddingError: timeout"}.Apply(doc, now)
	require.NotNil(t, doc.FailureReason)
	assert.Equal(t, "EmbeddingError: timeout", *doc.FailureReason)
	assert.Equal(t, "hello", *doc.ExtractedText)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusExtractionFailed.Terminal())
	assert.True(t, StatusEmbeddingFailed.Terminal())
	assert.False(t, StatusEmbeddingStarted.Terminal())
	assert.False(t, Status(42).Valid())
}
