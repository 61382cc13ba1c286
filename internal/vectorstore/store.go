package vectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Record is one embedded chunk of a document. Records are written once and
// only removed by Delete.
type Record struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"documentId"`
	UserID     uuid.UUID      `json:"userId"`
	TenantID   uuid.UUID      `json:"tenantId"`
	ChunkIndex int            `json:"chunkIndex"`
	Content    string         `json:"content"`
	Vector     []float32      `json:"embedding"`
	Metadata   map[string]any `json:"metadata"`
}

// Filter restricts queries and deletes. Set fields are ANDed.
type Filter struct {
	UserID     uuid.UUID
	TenantID   uuid.UUID
	DocumentID uuid.UUID
}

// Scoped reports whether the filter names an owner. Queries require it.
func (f Filter) Scoped() bool {
	return f.UserID != uuid.Nil || f.TenantID != uuid.Nil
}

func (f Filter) empty() bool {
	return !f.Scoped() && f.DocumentID == uuid.Nil
}

func (f Filter) Matches(r Record) bool {
	if f.UserID != uuid.Nil && r.UserID != f.UserID {
		return false
	}
	if f.TenantID != uuid.Nil && r.TenantID != f.TenantID {
		return false
	}
	if f.DocumentID != uuid.Nil && r.DocumentID != f.DocumentID {
		return false
	}
	return true
}

type Match struct {
	Record
	Score float64 `json:"score"`
}

// DeleteRequest removes records by id, or every record matching Filter when IDs is empty.
type DeleteRequest struct {
	IDs    []uuid.UUID
	Filter Filter
}

type Store interface {
	Upsert(ctx context.Context, records []Record) error
	// Query returns at most topK matches sorted by descending cosine similarity.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)
	Delete(ctx context.Context, req DeleteRequest) error
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank sorts matches by score, ties broken by document then chunk, and keeps topK.
func rank(matches []Match, topK int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentID != matches[j].DocumentID {
			return matches[i].DocumentID.String() < matches[j].DocumentID.String()
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
