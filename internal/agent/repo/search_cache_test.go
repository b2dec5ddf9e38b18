package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripscout/agent/internal/agent/model"
)

func TestSearchKeyNormalization(t *testing.T) {
	c := &RedisSearchCache{}

	// Case and whitespace differences map to the same entry.
	assert.Equal(t, c.searchKey("Portugal   Beaches"), c.searchKey("  portugal beaches "))
	assert.NotEqual(t, c.searchKey("portugal beaches"), c.searchKey("spain beaches"))
}

func TestSearchKeyShape(t *testing.T) {
	c := &RedisSearchCache{}
	key := c.searchKey("portugal beaches")

	assert.Regexp(t, `^search:[0-9a-f]{32}:results$`, key)
}

func TestNoopSearchCache(t *testing.T) {
	ctx := context.Background()
	var cache SearchCache = NoopSearchCache{}

	require.NoError(t, cache.Put(ctx, "q", []model.SearchResult{{Title: "t"}}))

	results, ok, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, results)
}
