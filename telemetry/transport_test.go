package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstrumentedTransportPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewInstrumentedTransport(nil, "graphql")}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"data":{}}`, string(body))
}

func TestInstrumentedTransportPreservesErrors(t *testing.T) {
	client := &http.Client{Transport: NewInstrumentedTransport(nil, "rest")}

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}

func TestInstrumentedBodyCountsBytesOnce(t *testing.T) {
	payload := strings.Repeat("x", 1024)
	body := &instrumentedBody{
		ReadCloser: io.NopCloser(strings.NewReader(payload)),
		ctx:        t.Context(),
		backend:    "rest",
		outcome:    "success",
	}

	read, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Len(t, read, 1024)
	require.Equal(t, int64(1024), body.bytes)

	require.NoError(t, body.Close())
	require.True(t, body.recorded)
	// Second close must not re-record.
	require.NoError(t, body.Close())
}
