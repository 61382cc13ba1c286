package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/database"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := database.OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func newDoc(locator string) *models.Document {
	now := time.Now().UTC()
	return &models.Document{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		SourceLocator: locator,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestBadgerCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newBadgerStore(t)
	doc := newDoc("bucket/a.txt")
	require.NoError(t, store.Create(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.SourceLocator, got.SourceLocator)
	assert.Equal(t, models.StatusPending, got.Status)

	got, err = store.GetByLocator(ctx, "bucket/a.txt")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	err = store.Create(ctx, newDoc("bucket/a.txt"))
	assert.True(t, errs.IsConflict(err))

	_, err = store.Get(ctx, uuid.New())
	assert.True(t, errs.IsNotFound(err))
	_, err = store.GetByLocator(ctx, "bucket/missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestBadgerTransitions(t *testing.T) {
	ctx := context.Background()
	store := newBadgerStore(t)
	doc := newDoc("bucket/b.txt")
	require.NoError(t, store.Create(ctx, doc))

	_, err := store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionComplete})
	assert.True(t, errs.IsConflict(err), "pending cannot complete extraction")

	got, err := store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionStarted})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtractionStarted, got.Status)

	got, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionComplete, ExtractedText: "hello"})
	require.NoError(t, err)
	require.NotNil(t, got.ExtractedText)

	reloaded, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ExtractedText, "extracted text must survive persistence")
	assert.Equal(t, "hello", *reloaded.ExtractedText)

	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingStarted})
	require.NoError(t, err)
	got, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingFailed, FailureReason: "EmbeddingError: boom"})
	require.NoError(t, err)
	assert.Equal(t, "EmbeddingError: boom", *got.FailureReason)

	got, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingStarted})
	require.NoError(t, err)
	assert.Nil(t, got.FailureReason)

	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusPending})
	assert.True(t, errs.IsConflict(err))

	_, err = store.Transition(ctx, uuid.New(), models.Transition{To: models.StatusExtractionStarted})
	assert.True(t, errs.IsNotFound(err))
}

func TestBadgerConcurrentTransitionHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newBadgerStore(t)
	doc := newDoc("bucket/race.txt")
	require.NoError(t, store.Create(ctx, doc))

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionStarted})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errs.IsConflict(err), "loser got %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestBadgerListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newBadgerStore(t)
	a, b := newDoc("bucket/1"), newDoc("bucket/2")
	b.UserID = a.UserID
	other := newDoc("bucket/3")
	for _, d := range []*models.Document{a, b, other} {
		require.NoError(t, store.Create(ctx, d))
	}

	docs, err := store.List(ctx, models.Scope{UserID: a.UserID})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, store.MarkDeletionRequested(ctx, a.ID))
	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletionRequested)

	require.NoError(t, store.Delete(ctx, a.ID))
	_, err = store.GetByLocator(ctx, "bucket/1")
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(store.Delete(ctx, a.ID)))
}

func TestBadgerRemovedDocumentOnlyRecordsFailures(t *testing.T) {
	ctx := context.Background()
	store := newBadgerStore(t)
	doc := newDoc("bucket/removed.txt")
	require.NoError(t, store.Create(ctx, doc))

	_, err := store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionStarted})
	require.NoError(t, err)
	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusExtractionComplete, ExtractedText: "x"})
	require.NoError(t, err)
	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingStarted})
	require.NoError(t, err)

	require.NoError(t, store.MarkDeletionRequested(ctx, doc.ID))

	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusComplete})
	assert.True(t, errs.IsConflict(err))
	assert.True(t, errors.Is(err, ErrSourceRemoved))

	got, err := store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingFailed, FailureReason: "removed"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmbeddingFailed, got.Status)

	_, err = store.Transition(ctx, doc.ID, models.Transition{To: models.StatusEmbeddingStarted})
	assert.ErrorIs(t, err, ErrSourceRemoved)
}

func TestStatusIsPersistedAsLabel(t *testing.T) {
	assert.Equal(t,
		[]string{"Processing", "Text Extraction Failed"},
		statusLabels(models.Predecessors(models.StatusExtractionStarted)))

	doc := newDoc("bucket/label.txt")
	doc.Status = models.StatusEmbeddingFailed
	assert.Equal(t, "AI Embeddings Failed", toFirestore(doc).Status)
}
