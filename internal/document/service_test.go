package document

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
)

func TestServiceRegisterValidates(t *testing.T) {
	svc := NewService(newBadgerStore(t), vectorstore.NewMemoryStore())

	_, err := svc.Register(context.Background(), RegisterRequest{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrMissingLocator)

	_, err = svc.Register(context.Background(), RegisterRequest{SourceLocator: "bucket/x"})
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestServiceScopeAndCascadeDelete(t *testing.T) {
	ctx := context.Background()
	vectors := vectorstore.NewMemoryStore()
	svc := NewService(newBadgerStore(t), vectors)

	user := uuid.New()
	doc, err := svc.Register(ctx, RegisterRequest{SourceLocator: "bucket/report.txt", UserID: user})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, doc.Status)

	require.NoError(t, vectors.Upsert(ctx, []vectorstore.Record{{
		ID: uuid.New(), DocumentID: doc.ID, UserID: user, Vector: []float32{1},
	}}))

	_, err = svc.Get(ctx, models.Scope{UserID: uuid.New()}, doc.ID)
	assert.True(t, errs.IsNotFound(err), "other users must not see the document")

	err = svc.Delete(ctx, models.Scope{UserID: uuid.New()}, doc.ID)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, 1, vectors.Count(vectorstore.Filter{DocumentID: doc.ID}))

	require.NoError(t, svc.Delete(ctx, models.Scope{UserID: user}, doc.ID))
	assert.Zero(t, vectors.Count(vectorstore.Filter{DocumentID: doc.ID}))

	_, err = svc.Get(ctx, models.Scope{UserID: user}, doc.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestServiceMarkRemoved(t *testing.T) {
	ctx := context.Background()
	vectors := vectorstore.NewMemoryStore()
	svc := NewService(newBadgerStore(t), vectors)

	user := uuid.New()
	doc, err := svc.Register(ctx, RegisterRequest{SourceLocator: "bucket/gone.txt", UserID: user})
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, []vectorstore.Record{{
		ID: uuid.New(), DocumentID: doc.ID, UserID: user, Vector: []float32{1},
	}}))

	require.NoError(t, svc.MarkRemoved(ctx, doc.ID))
	assert.Zero(t, vectors.Count(vectorstore.Filter{DocumentID: doc.ID}))

	got, err := svc.Get(ctx, models.Scope{UserID: user}, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletionRequested)
	assert.Equal(t, models.StatusPending, got.Status)
}
