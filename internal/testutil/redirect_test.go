package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api.example.com", r.Host)
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "key=abc", r.URL.RawQuery)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := RedirectClient(srv).Get("https://api.example.com/v1/models?key=abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
