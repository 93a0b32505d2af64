package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

// fakeS3 accepts every request with an empty 200 and records it.
func fakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), S3Config{
		Region:    "us-east-1",
		Bucket:    "attachments",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  endpoint,
	})
	require.NoError(t, err)
	return client
}

func TestClientPutOverPlainHTTP(t *testing.T) {
	srv, requests := fakeS3(t)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "m1/a.txt", "text/plain", strings.NewReader("hello"), 5))
	// unseekable streams are buffered before signing
	require.NoError(t, client.Put(ctx, "m1/b.txt", "text/plain", io.MultiReader(strings.NewReader("world")), 5))

	seen := requests()
	require.Len(t, seen, 2)
	assert.Equal(t, http.MethodPut, seen[0].method)
	assert.Equal(t, "/attachments/m1/a.txt", seen[0].path)
	assert.Contains(t, seen[0].body, "hello")
	assert.Equal(t, "/attachments/m1/b.txt", seen[1].path)
	assert.Contains(t, seen[1].body, "world")
}

func TestClientURL(t *testing.T) {
	srv, requests := fakeS3(t)
	client := newTestClient(t, srv.URL)

	presigned, err := client.URL(context.Background(), "m1/a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(presigned, srv.URL+"/attachments/m1/a.txt?"))
	assert.Contains(t, presigned, "X-Amz-Signature=")
	assert.Empty(t, requests())

	client.cfg.PublicBase = "https://cdn.example.com/files/"
	public, err := client.URL(context.Background(), "m1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/m1/a.txt", public)

	_, err = client.URL(context.Background(), "")
	assert.Error(t, err)
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
