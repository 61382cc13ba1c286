package models

const (
	EventSourceNotification  = "Notification"
	EventSourceStorageObject = "storage-object"

	EventObjectCreated = "ObjectCreated"
	EventObjectRemoved = "ObjectRemoved"

	EventStatusSucceeded = "SUCCEEDED"
)

// PipelineEvent is a normalized storage-change notification. It is never persisted.
type PipelineEvent struct {
	Source        string `json:"source"`
	NamePrefix    string `json:"namePrefix"`
	ObjectLocator string `json:"objectLocator"`
	EventID       string `json:"eventId"`
	Status        string `json:"status,omitempty"`
}
