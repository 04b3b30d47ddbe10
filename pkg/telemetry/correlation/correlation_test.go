package correlation

import (
	"context"
	"net/http"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDGeneratesULID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, cid)
	_, err := ulid.Parse(cid)
	require.NoError(t, err)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))

	_, again := EnsureCorrelationID(ctx)
	assert.Equal(t, cid, again)
}

func TestFromHeadersPrefersInboundValue(t *testing.T) {
	headers := http.Header{}
	headers.Set(Header, "cid-123")

	ctx, cid := FromHeaders(context.Background(), headers)
	assert.Equal(t, "cid-123", cid)
	assert.Equal(t, "cid-123", ExtractCorrelationID(ctx))

	_, generated := FromHeaders(context.Background(), nil)
	assert.NotEmpty(t, generated)
}
