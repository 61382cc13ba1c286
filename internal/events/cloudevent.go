package events

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/rodneygagnon/qckstrt/internal/models"
)

const (
	GCSObjectFinalized = "google.cloud.storage.object.v1.finalized"
	GCSObjectDeleted   = "google.cloud.storage.object.v1.deleted"
)

// gcsObject is the subset of the StorageObjectData payload we need.
type gcsObject struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// FromCloudEvent normalizes a GCS object CloudEvent. Other event types come
// back with their type as NamePrefix so the adapter ignores them.
func FromCloudEvent(e cloudevents.Event) (models.PipelineEvent, error) {
	ev := models.PipelineEvent{
		Source:  models.EventSourceStorageObject,
		EventID: e.ID(),
		Status:  models.EventStatusSucceeded,
	}

	switch e.Type() {
	case GCSObjectFinalized:
		ev.NamePrefix = models.EventObjectCreated
	case GCSObjectDeleted:
		ev.NamePrefix = models.EventObjectRemoved
	default:
		ev.NamePrefix = e.Type()
		return ev, nil
	}

	var obj gcsObject
	if err := e.DataAs(&obj); err != nil {
		return ev, fmt.Errorf("%w: cloudevent data: %v", ErrMalformedNotification, err)
	}
	if obj.Bucket == "" || obj.Name == "" {
		return ev, fmt.Errorf("%w: cloudevent without bucket or object name", ErrMalformedNotification)
	}
	ev.ObjectLocator = fmt.Sprintf("gs://%s/%s", obj.Bucket, obj.Name)
	return ev, nil
}
