package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/marvinalivio/p4-backend/internal/services"
	"github.com/marvinalivio/p4-backend/internal/storage"
	"github.com/marvinalivio/p4-backend/internal/store"
	"github.com/marvinalivio/p4-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func newAssetRouter(t *testing.T) (http.Handler, *memoryObjects, string) {
	t.Helper()

	repo := store.NewMemoryUserRepository()
	user, err := repo.Create(context.Background(), types.User{Username: "jdoe", PasswordHash: "x"})
	require.NoError(t, err)

	objects := &memoryObjects{objects: make(map[string][]byte)}
	svc := services.NewAssetService(repo, objects, func(key string) string {
		return "http://assets.local/" + key
	})

	r := chi.NewRouter()
	AssetRouter(r, NewAssetHandler(svc, zaptest.NewLogger(t)))
	return r, objects, user.ID
}

func multipartRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAsset(t *testing.T) {
	h, objects, id := newAssetRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/assets/"+id, "file", "me.png", pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	asset := decodeBody[services.Asset](t, rec)
	assert.True(t, strings.HasPrefix(asset.Key, "users/"+id+"/"))
	assert.True(t, strings.HasSuffix(asset.Key, ".png"))
	assert.Equal(t, "http://assets.local/"+asset.Key, asset.URL)
	assert.Equal(t, pngBytes, objects.objects[asset.Key])
}

func TestUploadAssetErrors(t *testing.T) {
	h, objects, id := newAssetRouter(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"not an image", multipartRequest(t, "/assets/"+id, "file", "a.png", []byte("hello world")), http.StatusBadRequest},
		{"missing file", multipartRequest(t, "/assets/"+id, "", "", nil), http.StatusBadRequest},
		{"wrong field", multipartRequest(t, "/assets/"+id, "photo", "a.png", pngBytes), http.StatusBadRequest},
		{"unknown user", multipartRequest(t, "/assets/nope", "file", "a.png", pngBytes), http.StatusNotFound},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/assets/"+id, strings.NewReader("{}")), http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, objects.objects)
}

func TestReadFileLimited(t *testing.T) {
	data, err := readFileLimited(bytes.NewReader([]byte("abcd")), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)

	_, err = readFileLimited(bytes.NewReader([]byte("abcde")), 4)
	assert.True(t, errors.Is(err, errFileTooLarge))
}

func TestServeAsset(t *testing.T) {
	h, objects, id := newAssetRouter(t)
	objects.objects["users/"+id+"/a.png"] = pngBytes

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/users/"+id+"/a.png", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestServeLargeAsset(t *testing.T) {
	h, objects, id := newAssetRouter(t)
	data := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 4*sniffLen)...)
	objects.objects["users/"+id+"/big.png"] = data

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/users/"+id+"/big.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestServeAssetNotFound(t *testing.T) {
	h, _, id := newAssetRouter(t)

	for _, path := range []string{
		"/assets/users/" + id + "/missing.png",
		"/assets/users/" + id,
		"/assets/users/" + id + "/x/y.png",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestUploadedAssetRoundTrip(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	user, err := repo.Create(context.Background(), types.User{Username: "jdoe", PasswordHash: "x"})
	require.NoError(t, err)
	objects := &memoryObjects{objects: make(map[string][]byte)}

	r := chi.NewRouter()
	AssetRouter(r, NewAssetHandler(services.NewAssetService(repo, objects, nil), zaptest.NewLogger(t)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/assets/"+user.ID, "file", "me.png", pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	asset := decodeBody[services.Asset](t, rec)
	require.Equal(t, "/assets/"+asset.Key, asset.URL)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, asset.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, asset.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "asset deleted", decodeBody[DeleteAssetResponse](t, rec).Message)
	assert.Empty(t, objects.objects)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, asset.URL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, asset.URL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
