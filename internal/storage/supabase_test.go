package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.URL.EscapedPath() {
		case "/storage/v1/object/documents/u1/my%20file.txt":
			_, _ = w.Write([]byte("contents"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL+"/", "service-key")

	rc, err := s.Open(context.Background(), "documents", "u1/my file.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(body))

	_, err = s.Open(context.Background(), "documents", "missing.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
