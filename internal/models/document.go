package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	TenantID          uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	SourceLocator     string    `json:"source_locator" db:"source_locator"`
	Status            Status    `json:"status" db:"status"`
	ExtractedText     *string   `json:"-" db:"extracted_text"`
	FailureReason     *string   `json:"failure_reason,omitempty" db:"failure_reason"`
	DeletionRequested bool      `json:"deletion_requested,omitempty" db:"deletion_requested"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Transition is a requested status change and the fields that change with it.
type Transition struct {
	To            Status
	ExtractedText string // ExtractionComplete only
	FailureReason string // failure states only
}

// Apply mutates doc for t. Callers must have checked CanTransition first.
// Only fields owned by the transition are touched.
func (t Transition) Apply(doc *Document, now time.Time) {
	doc.Status = t.To
	doc.UpdatedAt = now
	switch t.To {
	case StatusExtractionStarted:
		doc.ExtractedText = nil
		doc.FailureReason = nil
	case StatusExtractionComplete:
		text := t.ExtractedText
		doc.ExtractedText = &text
	case StatusEmbeddingStarted:
		doc.FailureReason = nil
	case StatusExtractionFailed, StatusEmbeddingFailed:
		reason := t.FailureReason
		doc.FailureReason = &reason
	}
}

// Scope restricts reads and writes to one user or tenant. At least one id must be set.
type Scope struct {
	UserID   uuid.UUID `json:"user_id,omitempty"`
	TenantID uuid.UUID `json:"tenant_id,omitempty"`
}

func (s Scope) Empty() bool {
	return s.UserID == uuid.Nil && s.TenantID == uuid.Nil
}
