package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		assert.Equal(t, "token-abc", r.Header.Get("Authorization"))
		if c, err := r.Cookie("session"); assert.NoError(t, err) {
			assert.Equal(t, "s1", c.Value)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "name": "alice"}`))
	}))
	defer server.Close()

	req := NewRequest()
	req.BaseURL = server.URL
	req.Paths = []string{"users", "42"}
	req.Params.Set("status", "active")
	req.Headers["Authorization"] = "token-abc"
	req.Cookies["session"] = "s1"
	req.Method = "GET"

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.IsSuccess())

	body, ok := resp.BodyValue().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "alice", resp.Path("name"))
}

func TestClient_PostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "widget", payload["name"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"created": true}`))
	}))
	defer server.Close()

	req := NewRequest()
	req.BaseURL = server.URL
	req.Method = "post"
	req.Body = []byte(`{"name": "widget"}`)

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestClient_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	req := NewRequest()
	req.BaseURL = server.URL
	req.Method = "GET"

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.False(t, resp.IsSuccess())
}

func TestClient_ConnectionRefused(t *testing.T) {
	req := NewRequest()
	req.BaseURL = "http://127.0.0.1:1"
	req.Method = "GET"

	_, err := NewClient(WithTimeout(time.Second)).Do(req)
	assert.Error(t, err)
}

func TestRequest_BuildValidation(t *testing.T) {
	req := NewRequest()
	req.Method = "GET"
	_, err := NewClient().Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no url set")

	req = NewRequest()
	req.BaseURL = "http://example.com"
	_, err = NewClient().Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no http method")
}

func TestRequest_URL(t *testing.T) {
	req := NewRequest()
	req.BaseURL = "http://api.test/"
	req.Paths = []string{"/v1/", "users"}
	assert.Equal(t, "http://api.test/v1/users", req.URL())

	req.Params.Set("limit", "10")
	assert.Equal(t, "http://api.test/v1/users?limit=10", req.URL())
}

func TestRequest_Copy(t *testing.T) {
	req := NewRequest()
	req.BaseURL = "http://api.test"
	req.Paths = []string{"users"}
	req.Params.Set("a", "1")
	req.Headers["X-Key"] = "v"
	req.Cookies["c"] = "1"
	req.Body = []byte("body")

	dup := req.Copy()
	dup.Paths = append(dup.Paths, "extra")
	dup.Params.Set("a", "2")
	dup.Headers["X-Key"] = "changed"
	dup.Cookies["c"] = "2"

	assert.Equal(t, []string{"users"}, req.Paths)
	assert.Equal(t, "1", req.Params.Get("a"))
	assert.Equal(t, "v", req.Headers["X-Key"])
	assert.Equal(t, "1", req.Cookies["c"])
}

func TestResponse_BodyValue(t *testing.T) {
	resp := &Response{Body: []byte(`{"a": 1}`), Headers: map[string]string{}}
	v, ok := resp.BodyValue().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), v["a"])

	resp = &Response{Body: []byte("plain text"), Headers: map[string]string{}}
	assert.Equal(t, "plain text", resp.BodyValue())

	resp = &Response{Body: nil, Headers: map[string]string{}}
	assert.Nil(t, resp.BodyValue())
}

func TestResponse_HeaderLookupIsCaseInsensitive(t *testing.T) {
	resp := &Response{Headers: map[string]string{"Content-Type": "text/html"}}
	assert.Equal(t, "text/html", resp.Header("content-type"))
	assert.Equal(t, "", resp.Header("missing"))
}
