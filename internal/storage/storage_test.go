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

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
)

func TestProofKey(t *testing.T) {
	key := ProofKey("Bt Cotton", "user-1")
	assert.True(t, strings.HasPrefix(key, "proofs/bt-cotton/user-1/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ProofKey("Bt Cotton", "user-1"))
	assert.True(t, strings.HasPrefix(ProofKey("", "u"), "proofs/general/u/"))
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func TestS3StorageAgainstCompatibleEndpoint(t *testing.T) {
	var mu sync.Mutex
	var got []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{
		AwsRegion:          "us-east-1",
		AwsAccessKeyID:     "test",
		AwsSecretAccessKey: "test",
		AwsS3Bucket:        "proofs-bucket",
		AwsS3Endpoint:      srv.URL,
	}
	store, err := NewS3Storage(context.Background(), cfg)
	require.NoError(t, err)

	res, err := store.Upload(context.Background(), "proofs/wheat/u1/a.jpg", []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/proofs-bucket/proofs/wheat/u1/a.jpg", res.URL)
	assert.Equal(t, "proofs/wheat/u1/a.jpg", res.Ref)
	assert.Equal(t, "image", res.ResourceType)

	require.NoError(t, store.Delete(context.Background(), res.Ref))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/proofs-bucket/proofs/wheat/u1/a.jpg", got[0].path)
	assert.Contains(t, got[0].body, "jpegdata")
	assert.Equal(t, http.MethodDelete, got[1].method)
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), &config.Config{AwsRegion: "us-east-1"})
	assert.Error(t, err)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	res, err := s.Upload(context.Background(), "k", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	data, ok := s.Get(res.Ref)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), data)

	require.NoError(t, s.Delete(context.Background(), res.Ref))
	_, ok = s.Get(res.Ref)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(context.Background(), "missing"))
}
