package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

const (
	docPrefix     = "document/"
	locatorPrefix = "document-locator/"
)

// BadgerStore keeps documents in an embedded badger database. Transitions run
// in a read-write transaction; badger's optimistic concurrency aborts the
// loser of a race with ErrConflict, which surfaces as a ConflictError.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func docKey(id uuid.UUID) []byte { return []byte(docPrefix + id.String()) }

func locatorKey(locator string) []byte { return []byte(locatorPrefix + locator) }

// storedDocument carries the extracted text, which the API representation omits.
type storedDocument struct {
	models.Document
	Text *string `json:"extracted_text,omitempty"`
}

func decodeDoc(val []byte) (*models.Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, err
	}
	doc := stored.Document
	doc.ExtractedText = stored.Text
	return &doc, nil
}

func getDoc(txn *badger.Txn, id uuid.UUID) (*models.Document, error) {
	item, err := txn.Get(docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("get document", id)
	}
	if err != nil {
		return nil, err
	}

	var doc *models.Document
	if err := item.Value(func(val []byte) error {
		doc, err = decodeDoc(val)
		return err
	}); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

func putDoc(txn *badger.Txn, doc *models.Document) error {
	data, err := json.Marshal(storedDocument{Document: *doc, Text: doc.ExtractedText})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return txn.Set(docKey(doc.ID), data)
}

// update runs fn in a read-write transaction and maps commit conflicts.
func (s *BadgerStore) update(op string, fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return errs.Conflict(op, err)
	}
	return err
}

func (s *BadgerStore) Create(_ context.Context, doc *models.Document) error {
	return s.update("create document", func(txn *badger.Txn) error {
		if _, err := txn.Get(locatorKey(doc.SourceLocator)); err == nil {
			return errs.Conflict("create document", fmt.Errorf("locator %q already registered", doc.SourceLocator))
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(locatorKey(doc.SourceLocator), []byte(doc.ID.String())); err != nil {
			return err
		}
		return putDoc(txn, doc)
	})
}

func (s *BadgerStore) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	var doc *models.Document
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = getDoc(txn, id)
		return err
	})
	return doc, err
}

func (s *BadgerStore) GetByLocator(_ context.Context, locator string) (*models.Document, error) {
	var doc *models.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(locatorKey(locator))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("get document by locator", locator)
		}
		if err != nil {
			return err
		}

		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return fmt.Errorf("decode locator index: %w", err)
		}
		doc, err = getDoc(txn, id)
		return err
	})
	return doc, err
}

func (s *BadgerStore) List(_ context.Context, scope models.Scope) ([]*models.Document, error) {
	docs := make([]*models.Document, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var doc *models.Document
			if err := it.Item().Value(func(val []byte) error {
				var err error
				doc, err = decodeDoc(val)
				return err
			}); err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			if inScope(doc, scope) {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *BadgerStore) Transition(_ context.Context, id uuid.UUID, t models.Transition) (*models.Document, error) {
	if err := checkTransition(t); err != nil {
		return nil, err
	}

	var out *models.Document
	err := s.update("transition", func(txn *badger.Txn) error {
		doc, err := getDoc(txn, id)
		if err != nil {
			return err
		}
		if err := checkCurrent(doc, t); err != nil {
			return err
		}
		t.Apply(doc, s.now())
		out = doc
		return putDoc(txn, doc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) MarkDeletionRequested(_ context.Context, id uuid.UUID) error {
	return s.update("mark deletion requested", func(txn *badger.Txn) error {
		doc, err := getDoc(txn, id)
		if err != nil {
			return err
		}
		doc.DeletionRequested = true
		doc.UpdatedAt = s.now()
		return putDoc(txn, doc)
	})
}

func (s *BadgerStore) Delete(_ context.Context, id uuid.UUID) error {
	return s.update("delete document", func(txn *badger.Txn) error {
		doc, err := getDoc(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(locatorKey(doc.SourceLocator)); err != nil {
			return err
		}
		return txn.Delete(docKey(id))
	})
}
