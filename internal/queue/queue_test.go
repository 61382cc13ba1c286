package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/config"
)

func TestRegistryRoutesByType(t *testing.T) {
	r := NewHandlersRegistry()
	var got []string
	r.Register(TypeDocumentExtract, asynq.HandlerFunc(func(_ context.Context, t *asynq.Task) error {
		got = append(got, t.Type())
		return nil
	}))
	r.Register(TypeDocumentEmbed, asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return errors.New("provider down")
	}))

	mux := r.Mux()
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TypeDocumentExtract, nil)))
	assert.Equal(t, []string{TypeDocumentExtract}, got)

	assert.EqualError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TypeDocumentEmbed, nil)), "provider down")
	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("document:unknown", nil)))
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
