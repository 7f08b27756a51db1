package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(Options{Timeout: 5 * time.Second})
	resp, err := client.Get(context.Background(), server.URL, map[string]string{
		"X-Test": "abc",
	})

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok": true}`, string(resp.Body))
	assert.Equal(t, "abc", gotHeaders.Get("X-Test"))
	// 默认带浏览器 User-Agent
	assert.Contains(t, gotHeaders.Get("User-Agent"), "Mozilla/5.0")
}

func TestClient_Get_非2xx不算传输错误(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Options{})
	resp, err := client.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	err = resp.EnsureSuccess()
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "HTTP 状态错误: 404", err.Error())
}

func TestResponse_EnsureSuccess_2xx(t *testing.T) {
	resp := &Response{StatusCode: 204}
	assert.NoError(t, resp.EnsureSuccess())
}
