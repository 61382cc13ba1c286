package queue

const (
	TypeDocumentExtract = "document:extract"
	TypeDocumentEmbed   = "document:embed"

	// QueueIngestion holds every pipeline task.
	QueueIngestion = "ingestion"
)

type DocumentPayload struct {
	DocumentID string `json:"document_id"`
}
