package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

const recordPrefix = "embedding/"

// BadgerStore keeps records in an embedded badger database and scores them by
// brute force. Suitable for single-node deployments and the CLI.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func recordKey(id uuid.UUID) []byte {
	return []byte(recordPrefix + id.String())
}

func (s *BadgerStore) Upsert(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.VectorDB("upsert", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return errs.VectorDB("upsert", fmt.Errorf("marshal record: %w", err))
		}
		if err := wb.Set(recordKey(r.ID), data); err != nil {
			return errs.VectorDB("upsert", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return errs.VectorDB("upsert", err)
	}
	if err := wb.Flush(); err != nil {
		return errs.VectorDB("upsert", err)
	}
	return nil
}

// scan calls fn for every stored record until fn returns an error.
func (s *BadgerStore) scan(ctx context.Context, fn func(Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := validateQuery(vector, topK, filter); err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	err := s.scan(ctx, func(r Record) error {
		if filter.Matches(r) {
			matches = append(matches, Match{Record: r, Score: CosineSimilarity(vector, r.Vector)})
		}
		return nil
	})
	if err != nil {
		return nil, errs.VectorDB("query", err)
	}
	return rank(matches, topK), nil
}

func (s *BadgerStore) Delete(ctx context.Context, req DeleteRequest) error {
	if err := validateDelete(req); err != nil {
		return err
	}

	ids := req.IDs
	if len(ids) == 0 {
		err := s.scan(ctx, func(r Record) error {
			if req.Filter.Matches(r) {
				ids = append(ids, r.ID)
			}
			return nil
		})
		if err != nil {
			return errs.VectorDB("delete", err)
		}
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(recordKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return errs.VectorDB("delete", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return errs.VectorDB("delete", err)
	}
	return nil
}
