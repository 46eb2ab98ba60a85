package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectAndGetTags(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/categories", nil)
	require.Nil(t, GetTags(r), "no tags before injection")

	r = InjectTags(r)
	tags := GetTags(r)
	require.NotNil(t, tags)
	require.Equal(t, CacheBypass, tags.CacheResult)

	SetCacheResult(r, CacheHit)
	SetEndpoint(r, "categories")
	SetBackend(r, "rest")

	require.Equal(t, CacheHit, tags.CacheResult)
	require.Equal(t, "categories", tags.Endpoint)
	require.Equal(t, "rest", tags.Backend)
}

func TestSettersWithoutInjectionAreNoOps(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/categories", nil)

	// Must not panic when middleware did not run.
	SetCacheResult(r, CacheHit)
	SetEndpoint(r, "categories")
	SetBackend(r, "graphql")
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", StatusClass(200))
	require.Equal(t, "3xx", StatusClass(304))
	require.Equal(t, "4xx", StatusClass(429))
	require.Equal(t, "5xx", StatusClass(503))
	require.Equal(t, "unknown", StatusClass(99))
}
