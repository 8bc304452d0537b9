package dummy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(ServerConfig{NoDelay: true}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAsk(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/ask", "application/json",
		strings.NewReader(`{"message": "I would like a snapshot patient summary for patient 39254"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out askResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Summary, "patient 39254")
}

func TestAskRejects(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"message":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ask")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/empty", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, b)
}

func TestErrorCodes(t *testing.T) {
	srv := newTestServer(t)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		resp, err := http.Get(srv.URL + "/error")
		require.NoError(t, err)
		resp.Body.Close()
		seen[resp.StatusCode] = true
	}
	for code := range seen {
		assert.Contains(t, []int{200, 429, 500}, code)
	}
	assert.True(t, seen[http.StatusOK])
}

func TestStart(t *testing.T) {
	srv, err := Start(ServerConfig{Port: 0, NoDelay: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown(context.Background()))

	_, err = Start(ServerConfig{Port: -1}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
