package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragdesk/internal/config"
)

func TestRegistry_RoutesByType(t *testing.T) {
	reg := NewHandlersRegistry()
	var got VectorStoreBuildPayload
	reg.Register(TypeVectorStoreBuild, asynq.HandlerFunc(func(_ context.Context, t *asynq.Task) error {
		return json.Unmarshal(t.Payload(), &got)
	}))

	data, err := json.Marshal(VectorStoreBuildPayload{StoreID: "abc"})
	require.NoError(t, err)
	require.NoError(t, reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeVectorStoreBuild, data)))
	assert.Equal(t, "abc", got.StoreID)
}

func TestRegistry_PropagatesErrors(t *testing.T) {
	reg := NewHandlersRegistry()
	boom := errors.New("boom")
	reg.Register(TypeVectorStoreBuild, asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return boom }))

	err := reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeVectorStoreBuild, nil))
	assert.ErrorIs(t, err, boom)
}

func TestPayloadWireFormat(t *testing.T) {
	data, err := json.Marshal(VectorStoreBuildPayload{StoreID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"store_id":"abc"}`, string(data))
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "localhost:6379", Password: "pw", DB: 2})
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
