package errx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedisNil(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))
}

func TestWrapRedisMissingKey(t *testing.T) {
	err := WrapRedis(redis.Nil)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, RedisNotFoundMessage, appErr.Message)
}

func TestWrapRedisOtherFailure(t *testing.T) {
	underlying := errors.New("connection refused")
	err := WrapRedis(underlying)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.ErrorIs(t, err, underlying)
}

func TestWrapSearch(t *testing.T) {
	assert.Nil(t, WrapSearch(nil))

	underlying := errors.New("timeout")
	err := WrapSearch(underlying)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, SearchErrorMessage, appErr.Message)
	assert.Contains(t, err.Error(), "timeout")
}
