package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

// firestoreDocument is the stored shape. Ids are strings so they stay queryable.
type firestoreDocument struct {
	UserID            string    `firestore:"user_id"`
	TenantID          string    `firestore:"tenant_id"`
	SourceLocator     string    `firestore:"source_locator"`
	Status            string    `firestore:"status"`
	ExtractedText     *string   `firestore:"extracted_text"`
	FailureReason     *string   `firestore:"failure_reason"`
	DeletionRequested bool      `firestore:"deletion_requested"`
	CreatedAt         time.Time `firestore:"created_at"`
	UpdatedAt         time.Time `firestore:"updated_at"`
}

func toFirestore(doc *models.Document) firestoreDocument {
	fd := firestoreDocument{
		UserID:            doc.UserID.String(),
		SourceLocator:     doc.SourceLocator,
		Status:            doc.Status.String(),
		ExtractedText:     doc.ExtractedText,
		FailureReason:     doc.FailureReason,
		DeletionRequested: doc.DeletionRequested,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.TenantID != uuid.Nil {
		fd.TenantID = doc.TenantID.String()
	}
	return fd
}

func fromFirestore(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var fd firestoreDocument
	if err := snap.DataTo(&fd); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
	}

	id, err := uuid.Parse(snap.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("decode document id %q: %w", snap.Ref.ID, err)
	}
	userID, err := uuid.Parse(fd.UserID)
	if err != nil {
		return nil, fmt.Errorf("decode user id: %w", err)
	}
	st, err := models.ParseStatus(fd.Status)
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
	}

	doc := &models.Document{
		ID:                id,
		UserID:            userID,
		SourceLocator:     fd.SourceLocator,
		Status:            st,
		ExtractedText:     fd.ExtractedText,
		FailureReason:     fd.FailureReason,
		DeletionRequested: fd.DeletionRequested,
		CreatedAt:         fd.CreatedAt,
		UpdatedAt:         fd.UpdatedAt,
	}
	if fd.TenantID != "" {
		if doc.TenantID, err = uuid.Parse(fd.TenantID); err != nil {
			return nil, fmt.Errorf("decode tenant id: %w", err)
		}
	}
	return doc, nil
}

// FirestoreStore keeps documents in a Firestore collection keyed by document id.
// Transitions run inside RunTransaction, which retries on contention and
// re-reads the status on every attempt.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "documents"
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *FirestoreStore) ref(id uuid.UUID) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id.String())
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) byLocator(locator string) firestore.Query {
	return s.client.Collection(s.collection).Where("source_locator", "==", locator).Limit(1)
}

func (s *FirestoreStore) Create(ctx context.Context, doc *models.Document) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(s.byLocator(doc.SourceLocator)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errs.Conflict("create document", fmt.Errorf("locator %q already registered", doc.SourceLocator))
		}
		return tx.Create(s.ref(doc.ID), toFirestore(doc))
	})
	switch {
	case err == nil:
		return nil
	case errs.KindOf(err) != "":
		return err
	case status.Code(err) == codes.AlreadyExists:
		return errs.Conflict("create document", err)
	default:
		return fmt.Errorf("create document: %w", err)
	}
}

func (s *FirestoreStore) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	snap, err := s.ref(id).Get(ctx)
	if isNotFound(err) {
		return nil, notFound("get document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromFirestore(snap)
}

func (s *FirestoreStore) GetByLocator(ctx context.Context, locator string) (*models.Document, error) {
	snaps, err := s.byLocator(locator).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("get document by locator: %w", err)
	}
	if len(snaps) == 0 {
		return nil, notFound("get document by locator", locator)
	}
	return fromFirestore(snaps[0])
}

func (s *FirestoreStore) List(ctx context.Context, scope models.Scope) ([]*models.Document, error) {
	q := s.client.Collection(s.collection).Query
	if scope.UserID != uuid.Nil {
		q = q.Where("user_id", "==", scope.UserID.String())
	}
	if scope.TenantID != uuid.Nil {
		q = q.Where("tenant_id", "==", scope.TenantID.String())
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	docs := make([]*models.Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		doc, err := fromFirestore(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *FirestoreStore) Transition(ctx context.Context, id uuid.UUID, t models.Transition) (*models.Document, error) {
	if err := checkTransition(t); err != nil {
		return nil, err
	}

	var out *models.Document
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.ref(id))
		if isNotFound(err) {
			return notFound("transition", id)
		}
		if err != nil {
			return err
		}

		doc, err := fromFirestore(snap)
		if err != nil {
			return err
		}
		if err := checkCurrent(doc, t); err != nil {
			return err
		}

		t.Apply(doc, s.now())
		out = doc
		return tx.Set(s.ref(id), toFirestore(doc))
	})
	if err != nil {
		if errs.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("transition document: %w", err)
	}
	return out, nil
}

func (s *FirestoreStore) MarkDeletionRequested(ctx context.Context, id uuid.UUID) error {
	_, err := s.ref(id).Update(ctx, []firestore.Update{
		{Path: "deletion_requested", Value: true},
		{Path: "updated_at", Value: s.now()},
	})
	if isNotFound(err) {
		return notFound("mark deletion requested", id)
	}
	if err != nil {
		return fmt.Errorf("mark deletion requested: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.ref(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return notFound("delete document", id)
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
