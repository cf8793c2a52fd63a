package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildPostsForm(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	trigger, err := New(srv.URL+"/build_hooks/abc", time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, trigger.Rebuild(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRebuildRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	trigger, err := New(srv.URL, time.Second, nil)
	require.NoError(t, err)
	require.ErrorContains(t, trigger.Rebuild(context.Background()), "unexpected status 404")
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New("", time.Second, nil)
	require.Error(t, err)
	_, err = New("not a url", time.Second, nil)
	require.Error(t, err)
}
