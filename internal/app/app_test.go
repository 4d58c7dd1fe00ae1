package app

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"taxi/internal/config"
)

func TestKeyspace(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "lock", keyspace(redis.NewStatusCmd(ctx, "set", "lock:booking:7", "token")))
	assert.Equal(t, "idempotency", keyspace(redis.NewStringCmd(ctx, "get", "idempotency:POST /v1/bookings abc")))
	assert.Equal(t, "redis", keyspace(redis.NewStatusCmd(ctx, "ping")))
	assert.Equal(t, "redis", keyspace(redis.NewStringCmd(ctx, "get", "plain")))
}

func TestStartSegment_NoTransaction(t *testing.T) {
	seg := startSegment(context.Background(), "get", "lock")
	assert.Nil(t, seg)
	seg.End()
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	logger = NewLogger(config.LogConfig{Level: "loud", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
