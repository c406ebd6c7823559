package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLoader(t *testing.T) {
	var priority string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			priority = r.Header.Get("Priority")
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	l := NewHTTPLoader(srv.Client(), 32)

	got, err := l.Load(ctx, Request{Src: "/ok.png", URL: srv.URL + "/ok.png", Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, []byte("\x89PNG"), got.Data)
	assert.Equal(t, "/ok.png", got.Src)
	assert.Equal(t, "u=0", priority)

	_, err = l.Load(ctx, Request{Src: srv.URL + "/page.html"})
	require.ErrorIs(t, err, ErrNotImage)

	_, err = l.Load(ctx, Request{Src: srv.URL + "/missing.png"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = l.Load(ctx, Request{Src: srv.URL + "/big.png"})
	require.Error(t, err)
}
