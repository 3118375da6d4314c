package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/marvinalivio/p4-backend/internal/metrics"
	"github.com/marvinalivio/p4-backend/internal/storage"
	"github.com/marvinalivio/p4-backend/internal/store"
)

var (
	// ErrUnsupportedMedia reports an upload whose content is not an image.
	ErrUnsupportedMedia = errors.New("only image uploads are allowed")
	// ErrAssetNotFound reports an unknown or malformed asset key.
	ErrAssetNotFound = errors.New("asset not found")
)

// ObjectStore persists uploaded blobs. Get and Delete report a missing key
// with storage.ErrObjectNotFound.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

const assetPrefix = "users"

// AssetUpload is a single uploaded file.
type AssetUpload struct {
	Filename string
	Data     []byte
}

// Asset describes a stored upload.
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// AssetService stores profile photos and portfolio images so their URLs can
// be referenced from profile and portfolio blocks.
type AssetService struct {
	users  UserRepository
	store  ObjectStore
	urlFor func(key string) string
	newID  func() string
}

func NewAssetService(users UserRepository, objects ObjectStore, urlFor func(key string) string) *AssetService {
	if urlFor == nil {
		urlFor = func(key string) string { return "/assets/" + key }
	}
	return &AssetService{
		users:  users,
		store:  objects,
		urlFor: urlFor,
		newID:  func() string { return uuid.NewString() },
	}
}

// Upload stores an image for the given user under users/<id>/<uuid><ext>.
func (s *AssetService) Upload(ctx context.Context, userID string, upload AssetUpload) (asset Asset, err error) {
	defer func() {
		metrics.AssetsUploaded.WithLabelValues(resultLabel(err)).Inc()
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Asset{}, ErrNotFound
	}
	if len(upload.Data) == 0 {
		return Asset{}, fmt.Errorf("%w: file", ErrValidation)
	}

	contentType := http.DetectContentType(upload.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return Asset{}, ErrUnsupportedMedia
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, storeError("find user", err)
	}

	key := path.Join(assetPrefix, userID, s.newID()+extensionFor(contentType, upload.Filename))
	size := int64(len(upload.Data))
	if err := s.store.Put(ctx, key, bytes.NewReader(upload.Data), size, contentType); err != nil {
		return Asset{}, storeError("put object", err)
	}

	return Asset{
		Key:         key,
		URL:         s.urlFor(key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

// Open returns a reader for a stored asset. Keys outside users/<id>/<name>
// are reported as missing.
func (s *AssetService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validAssetKey(key) {
		return nil, ErrAssetNotFound
	}
	r, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, storeError("get object", err)
	}
	return r, nil
}

// Delete removes one of the user's assets.
func (s *AssetService) Delete(ctx context.Context, userID, name string) error {
	key := path.Join(assetPrefix, strings.TrimSpace(userID), name)
	if !validAssetKey(key) {
		return ErrAssetNotFound
	}
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrAssetNotFound
		}
		return storeError("delete object", err)
	}
	return nil
}

func validAssetKey(key string) bool {
	if key == "" || path.Clean(key) != key {
		return false
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != assetPrefix {
		return false
	}
	for _, part := range parts[1:] {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func extensionFor(contentType, filename string) string {
	if ext, ok := imageExtensions[contentType]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(filename))
}
