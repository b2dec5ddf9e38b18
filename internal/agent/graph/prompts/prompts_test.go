package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRewriteSystem(t *testing.T) {
	content, err := RenderRewriteSystem(context.Background())
	require.NoError(t, err)

	assert.Contains(t, content, "singular search query")
	assert.Contains(t, content, "context of the original query is preserved")
}

func TestRenderFormatSystem(t *testing.T) {
	content, err := RenderFormatSystem(context.Background())
	require.NoError(t, err)

	assert.Contains(t, content, "topic sentence")
	// All four bulleted sections plus the sources list are specified.
	assert.Equal(t, 3, strings.Count(content, "3-5 bullet points"))
	assert.Contains(t, content, "1-3 bullet points")
	assert.Contains(t, content, "sources")
}
