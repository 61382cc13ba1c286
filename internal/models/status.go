package models

import (
	"encoding/json"
	"fmt"
)

// Status is the processing state of a Document. The zero value is StatusPending.
type Status int

const (
	StatusPending Status = iota
	StatusExtractionStarted
	StatusExtractionComplete
	StatusExtractionFailed
	StatusEmbeddingStarted
	StatusEmbeddingFailed
	StatusComplete
)

// Status labels are part of the public contract; renaming one requires a data migration.
const (
	LabelProcessing         = "Processing"
	LabelExtractionStarted  = "Text Extraction Started"
	LabelExtractionComplete = "Text Extraction Complete"
	LabelExtractionFailed   = "Text Extraction Failed"
	LabelEmbeddingStarted   = "AI Embeddings Started"
	LabelEmbeddingComplete  = "AI Embeddings Complete"
	LabelEmbeddingFailed    = "AI Embeddings Failed"
	LabelComplete           = "Complete"
)

var statusLabels = map[Status]string{
	StatusPending:            LabelProcessing,
	StatusExtractionStarted:  LabelExtractionStarted,
	StatusExtractionComplete: LabelExtractionComplete,
	StatusExtractionFailed:   LabelExtractionFailed,
	StatusEmbeddingStarted:   LabelEmbeddingStarted,
	StatusEmbeddingFailed:    LabelEmbeddingFailed,
	StatusComplete:           LabelComplete,
}

// predecessors lists, for each target status, the statuses it may be entered from.
var predecessors = map[Status][]Status{
	StatusExtractionStarted:  {StatusPending, StatusExtractionFailed},
	StatusExtractionComplete: {StatusExtractionStarted},
	StatusExtractionFailed:   {StatusExtractionStarted},
	StatusEmbeddingStarted:   {StatusExtractionComplete, StatusEmbeddingFailed},
	StatusComplete:           {StatusEmbeddingStarted},
	StatusEmbeddingFailed:    {StatusEmbeddingStarted},
}

func (s Status) String() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether no further transition happens without a new event.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusExtractionFailed || s == StatusEmbeddingFailed
}

func (s Status) Failed() bool {
	return s == StatusExtractionFailed || s == StatusEmbeddingFailed
}

// ParseStatus maps a public label back to a Status.
// "AI Embeddings Complete" is an alias of Complete.
func ParseStatus(label string) (Status, error) {
	if label == LabelEmbeddingComplete {
		return StatusComplete, nil
	}
	for s, l := range statusLabels {
		if l == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown document status %q", label)
}

// Predecessors returns the statuses from which to may be entered.
func Predecessors(to Status) []Status {
	return append([]Status(nil), predecessors[to]...)
}

// NeedsSource reports whether entering to starts or finishes a run. A document
// whose source object was removed may still record a failure, never these.
func NeedsSource(to Status) bool {
	return to == StatusExtractionStarted || to == StatusEmbeddingStarted || to == StatusComplete
}

func CanTransition(from, to Status) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText lets Status be stored as its label by text-based encoders.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
