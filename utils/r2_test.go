package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestR2PutObject(t *testing.T) {
	var gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewR2Client(context.Background(), R2Options{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "games",
	})
	require.NoError(t, err)

	err = client.PutObject(context.Background(), "2024/01/a-vs-b.json", []byte(`{"id":"g1"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "/games/2024/01/a-vs-b.json", gotPath)
	assert.Equal(t, `{"id":"g1"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestR2PutObjectError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewR2Client(context.Background(), R2Options{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "games",
	})
	require.NoError(t, err)
	assert.Error(t, client.PutObject(context.Background(), "k", []byte("x"), "text/plain"))
}
