package events

import (
	"context"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/models"
)

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.PipelineEvent
	}{
		{
			name: "single event",
			body: `{"source":"Notification","namePrefix":"ObjectCreated","objectLocator":"b/k.pdf","eventId":"e1","status":"SUCCEEDED"}`,
			want: []models.PipelineEvent{{Source: "Notification", NamePrefix: "ObjectCreated", ObjectLocator: "b/k.pdf", EventID: "e1", Status: "SUCCEEDED"}},
		},
		{
			name: "array",
			body: `[{"source":"storage-object","namePrefix":"ObjectRemoved","objectLocator":"b/x","eventId":"e2"}]`,
			want: []models.PipelineEvent{{Source: "storage-object", NamePrefix: "ObjectRemoved", ObjectLocator: "b/x", EventID: "e2"}},
		},
		{
			name: "s3 records",
			body: `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"docs"},"object":{"key":"my+report%281%29.pdf","sequencer":"0A1"}}}]}`,
			want: []models.PipelineEvent{{
				Source:        "Notification",
				NamePrefix:    "ObjectCreated",
				ObjectLocator: "s3://docs/my report(1).pdf",
				EventID:       "s3://docs/my report(1).pdf#ObjectCreated#0A1",
				Status:        "SUCCEEDED",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNotification([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseNotification([]byte("  "))
	assert.ErrorIs(t, err, ErrMalformedNotification)
	_, err = ParseNotification([]byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedNotification)
}

func TestLocatorCandidates(t *testing.T) {
	assert.Equal(t, []string{"s3://b/k", "b/k"}, locatorCandidates("s3://b/k"))
	assert.Equal(t, []string{"b/k", "s3://b/k", "gs://b/k"}, locatorCandidates("b/k"))
	assert.Equal(t, []string{"/tmp/a.txt"}, locatorCandidates("/tmp/a.txt"))
	assert.Equal(t, []string{"https://x/y"}, locatorCandidates("https://x/y"))
}

func TestFromCloudEvent(t *testing.T) {
	e := cloudevents.NewEvent()
	e.SetID("ce-1")
	e.SetSource("//storage.googleapis.com/projects/_/buckets/docs")
	e.SetType(GCSObjectFinalized)
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, map[string]string{"bucket": "docs", "name": "a/b.pdf"}))

	ev, err := FromCloudEvent(e)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineEvent{
		Source:        models.EventSourceStorageObject,
		NamePrefix:    models.EventObjectCreated,
		ObjectLocator: "gs://docs/a/b.pdf",
		EventID:       "ce-1",
		Status:        models.EventStatusSucceeded,
	}, ev)

	e.SetType(GCSObjectDeleted)
	ev, err = FromCloudEvent(e)
	require.NoError(t, err)
	assert.Equal(t, models.EventObjectRemoved, ev.NamePrefix)

	e.SetType("google.cloud.storage.object.v1.metadataUpdated")
	ev, err = FromCloudEvent(e)
	require.NoError(t, err)
	assert.False(t, relevant(ev))

	e.SetType(GCSObjectFinalized)
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, map[string]string{"bucket": "docs"}))
	_, err = FromCloudEvent(e)
	assert.ErrorIs(t, err, ErrMalformedNotification)
}

func TestHMACVerifier(t *testing.T) {
	body := []byte(`{"eventId":"e1"}`)
	v := NewVerifier("s3cret")
	require.True(t, v.Enabled())

	assert.NoError(t, v.Verify(body, Sign(body, "s3cret")))
	assert.ErrorIs(t, v.Verify(body, Sign(body, "other")), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, "deadbeef"), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, "sha256=zz"), ErrInvalidSignature)

	unverified := NewVerifier("")
	assert.False(t, unverified.Enabled())
	assert.NoError(t, unverified.Verify(body, ""))
}

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeduper(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }

	ok, err := d.Claim(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Claim(ctx, "e1")
	assert.False(t, ok)

	require.NoError(t, d.Release(ctx, "e1"))
	ok, _ = d.Claim(ctx, "e1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.Claim(ctx, "e1")
	assert.True(t, ok, "claims expire after the window")
}
