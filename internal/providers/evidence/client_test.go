package evidence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestUploadStoresLocallyAndRemotely(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/add" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(addResponse{Name: "field.jpg", Hash: "QmField", Size: "4"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewClient(Config{Endpoint: srv.URL, LocalDir: dir}, http.DefaultClient, zap.NewNop())

	res, err := c.Upload(context.Background(), "Field Photo.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assert.NoError(t, res.Err)
	assert.Equal(t, "QmField", res.ContentID)
	assert.Equal(t, filepath.Join(dir, "field-photo.jpg"), res.LocalRef)

	data, err := os.ReadFile(res.LocalRef)
	if err != nil {
		t.Fatalf("read local copy: %v", err)
	}
	assert.Equal(t, []byte("jpeg"), data)
}

func TestUploadKeepsLocalRefWhenStoreIsDown(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://127.0.0.1:1", LocalDir: t.TempDir()}, http.DefaultClient, zap.NewNop())

	res, err := c.Upload(context.Background(), "field.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assert.Error(t, res.Err)
	assert.Empty(t, res.ContentID)
	assert.NotEmpty(t, res.LocalRef)
}

func TestUploadDeduplicatesLocalNames(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(Config{Endpoint: "http://127.0.0.1:1", LocalDir: dir}, http.DefaultClient, zap.NewNop())

	first, err := c.Upload(context.Background(), "field.jpg", []byte("one"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := c.Upload(context.Background(), "field.jpg", []byte("two"))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	assert.Equal(t, filepath.Join(dir, "field.jpg"), first.LocalRef)
	assert.Equal(t, filepath.Join(dir, "field-1.jpg"), second.LocalRef)
}

func TestUploadManyIsolatesFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(addResponse{Hash: "QmSecond"})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, LocalDir: t.TempDir()}, http.DefaultClient, zap.NewNop())

	results := c.UploadMany(context.Background(), []File{
		{FileName: "a.jpg", Content: []byte("a")},
		{FileName: "b.jpg", Content: []byte("b")},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	assert.Error(t, results[0].Err)
	assert.Empty(t, results[0].ContentID)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "QmSecond", results[1].ContentID)
}
