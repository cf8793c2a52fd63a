package gcs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripperFunc) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Request:    r,
	}
}

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
		body []byte
	)
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.URL.Path)
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
		}
		return jsonResponse(r, http.StatusOK, `{"name":"v3/frontend.json.gz","bucket":"kijiji-apartments"}`), nil
	})

	store, err := New(client, Config{Bucket: "kijiji-apartments", CacheControl: "no-cache"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "v3/frontend.json.gz", "application/gzip", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, "gs://kijiji-apartments/v3/frontend.json.gz", uri)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Contains(t, seen[0], "/b/kijiji-apartments/o")
	assert.Contains(t, string(body), "payload")
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})
	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	ok := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/storage/v1/b/kijiji-apartments")
		return jsonResponse(r, http.StatusOK, `{"name":"kijiji-apartments"}`), nil
	})
	store, err := New(ok, Config{Bucket: "kijiji-apartments"})
	require.NoError(t, err)
	require.NoError(t, store.Verify(context.Background()))

	missing := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusNotFound, `{"error":{"code":404,"message":"Not Found"}}`), nil
	})
	store, err = New(missing, Config{Bucket: "kijiji-apartments"})
	require.NoError(t, err)
	require.ErrorContains(t, store.Verify(context.Background()), "kijiji-apartments")
}
