package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Titles []string `json:"titles"`
	Total  int64    `json:"total"`
}

func setupDiscovery() (*RedisDiscovery, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewRedisDiscovery(db, "", 0), mock
}

func TestRedisDiscoveryGet(t *testing.T) {
	ctx := context.Background()

	t.Run("hit under current generation", func(t *testing.T) {
		d, mock := setupDiscovery()
		mock.ExpectGet("rondpoint:events:gen").SetVal("4")
		mock.ExpectGet("rondpoint:events:4:abc").SetVal(`{"titles":["Vernissage"],"total":1}`)

		var got page
		found, err := d.Get(ctx, "abc", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, page{Titles: []string{"Vernissage"}, Total: 1}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss without generation", func(t *testing.T) {
		d, mock := setupDiscovery()
		mock.ExpectGet("rondpoint:events:gen").RedisNil()
		mock.ExpectGet("rondpoint:events:0:abc").RedisNil()

		var got page
		found, err := d.Get(ctx, "abc", &got)
		require.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		d, mock := setupDiscovery()
		mock.ExpectGet("rondpoint:events:gen").SetErr(redis.ErrClosed)

		_, err := d.Get(ctx, "abc", &page{})
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	t.Run("corrupt value", func(t *testing.T) {
		d, mock := setupDiscovery()
		mock.ExpectGet("rondpoint:events:gen").SetVal("1")
		mock.ExpectGet("rondpoint:events:1:abc").SetVal(`{not json`)

		found, err := d.Get(ctx, "abc", &page{})
		assert.Error(t, err)
		assert.False(t, found)
	})
}

func TestRedisDiscoverySet(t *testing.T) {
	ctx := context.Background()
	d, mock := setupDiscovery()

	mock.ExpectGet("rondpoint:events:gen").SetVal("2")
	mock.ExpectSet("rondpoint:events:2:abc", `{"titles":["Open Studios"],"total":3}`, DefaultTTL).SetVal("OK")

	err := d.Set(ctx, "abc", page{Titles: []string{"Open Studios"}, Total: 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDiscoveryInvalidate(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	d := NewRedisDiscovery(db, "test", 5*time.Second)

	mock.ExpectIncr("test:events:gen").SetVal(3)
	require.NoError(t, d.Invalidate(ctx))

	mock.ExpectIncr("test:events:gen").SetErr(redis.ErrClosed)
	assert.ErrorIs(t, d.Invalidate(ctx), redis.ErrClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopNeverHits(t *testing.T) {
	var d Discovery = Nop{}
	found, err := d.Get(context.Background(), "k", &page{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, d.Set(context.Background(), "k", page{}))
	assert.NoError(t, d.Invalidate(context.Background()))
}
