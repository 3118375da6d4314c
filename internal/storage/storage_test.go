package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/marvinalivio/p4-backend/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"unknown backend", config.StorageConfig{Backend: "s4"}, `unknown storage backend "s4"`},
		{"minio without endpoint", config.StorageConfig{
			Backend: config.StorageBackendMinio,
			Minio:   config.MinioConfig{AccessKey: "a", SecretKey: "b", Bucket: "p4"},
		}, "init minio storage: minio endpoint is required"},
		{"minio without keys", config.StorageConfig{
			Backend: config.StorageBackendMinio,
			Minio:   config.MinioConfig{Endpoint: "localhost:9000", Bucket: "p4"},
		}, "access key and secret key are required"},
		{"minio without bucket", config.StorageConfig{
			Backend: config.StorageBackendMinio,
			Minio:   config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
		}, "minio bucket is required"},
		{"gcs without bucket", config.StorageConfig{Backend: config.StorageBackendGCS}, "init gcs storage: gcs bucket is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Open(context.Background(), tc.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewMinioClient(t *testing.T) {
	m, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "p4-assets",
	})
	require.NoError(t, err)
	assert.Equal(t, "p4-assets", m.Bucket())
}

func TestBucketPolicy(t *testing.T) {
	var policy struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal struct {
				AWS []string
			}
			Action   []string
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(bucketPolicy("p4-assets")), &policy))

	assert.Equal(t, "2012-10-17", policy.Version)
	require.Len(t, policy.Statement, 1)
	stmt := policy.Statement[0]
	assert.Equal(t, "Allow", stmt.Effect)
	assert.Equal(t, []string{"*"}, stmt.Principal.AWS)
	assert.Equal(t, []string{"s3:GetObject"}, stmt.Action)
	assert.Equal(t, []string{"arn:aws:s3:::p4-assets/*"}, stmt.Resource)
}

type fakeBackend struct {
	ensureErr error
	ensured   bool
	objects   map[string][]byte
}

func (f *fakeBackend) EnsureBucket(ctx context.Context) error {
	f.ensured = true
	return f.ensureErr
}

func (f *fakeBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBackend) Bucket() string { return "fake" }

func TestReadyEnsuresBucket(t *testing.T) {
	backend := &fakeBackend{objects: make(map[string][]byte)}
	s, err := ready(context.Background(), backend)
	require.NoError(t, err)
	assert.True(t, backend.ensured)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "users/a/b.png", strings.NewReader("img"), 3, "image/png"))
	r, err := s.Get(ctx, "users/a/b.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Delete(ctx, "users/a/b.png"))
	_, err = s.Get(ctx, "users/a/b.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "fake", s.Bucket())
}

func TestReadyBucketFailure(t *testing.T) {
	_, err := ready(context.Background(), &fakeBackend{ensureErr: errors.New("denied")})
	require.Error(t, err)
	assert.Equal(t, "ensure bucket fake: denied", err.Error())
}

// s3Stub answers the handful of S3 calls MinioClient makes.
type s3Stub struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	puts    map[string]http.Header
	policy  string
}

func newS3Stub() *s3Stub {
	return &s3Stub{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		puts:    make(map[string]http.Header),
	}
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	if key == "" {
		switch {
		case r.Method == http.MethodHead:
			if !s.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case r.Method == http.MethodPut && r.URL.Query().Has("policy"):
			s.policy = string(body)
			w.WriteHeader(http.StatusNoContent)
			return
		case r.Method == http.MethodPut:
			s.buckets[bucket] = true
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.puts[key] = r.Header.Clone()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := s.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(s.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStubbedMinio(t *testing.T) (*MinioClient, *s3Stub) {
	t.Helper()

	stub := newS3Stub()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinioClient{client: client, bucket: "p4-assets"}, stub
}

func TestMinioEnsureBucketCreatesPublicBucket(t *testing.T) {
	m, stub := newStubbedMinio(t)

	require.NoError(t, m.EnsureBucket(context.Background()))
	assert.True(t, stub.buckets["p4-assets"])
	assert.JSONEq(t, bucketPolicy("p4-assets"), stub.policy)

	stub.policy = ""
	require.NoError(t, m.EnsureBucket(context.Background()))
	assert.Empty(t, stub.policy)
}

func TestMinioPutSetsImmutableCacheHeader(t *testing.T) {
	m, stub := newStubbedMinio(t)

	err := m.Put(context.Background(), "users/a/b.png", strings.NewReader("img"), 3, "image/png")
	require.NoError(t, err)

	header := stub.puts["users/a/b.png"]
	require.NotNil(t, header)
	assert.Equal(t, immutableCacheControl, header.Get("Cache-Control"))
	assert.Equal(t, "image/png", header.Get("Content-Type"))
}

func TestMinioGetAndDelete(t *testing.T) {
	m, stub := newStubbedMinio(t)
	stub.objects["users/a/b.png"] = []byte("img")
	ctx := context.Background()

	r, err := m.Get(ctx, "users/a/b.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "img", string(data))

	require.NoError(t, m.Delete(ctx, "users/a/b.png"))
	assert.Empty(t, stub.objects)

	_, err = m.Get(ctx, "users/a/b.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "users/a/b.png"), ErrObjectNotFound)
}

func TestMissingObjectErrors(t *testing.T) {
	assert.ErrorIs(t, minioError(minio.ErrorResponse{Code: minio.NoSuchKey}), ErrObjectNotFound)
	assert.NotErrorIs(t, minioError(minio.ErrorResponse{Code: "AccessDenied"}), ErrObjectNotFound)

	assert.ErrorIs(t, gcsError(storage.ErrObjectNotExist), ErrObjectNotFound)
	assert.NoError(t, gcsError(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, gcsError(boom))
}

func TestConfigureWriter(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	obj := client.Bucket("p4-assets").Object("users/a/b.png")

	small := obj.NewWriter(context.Background())
	configureWriter(small, 1024, "image/png")
	assert.Equal(t, immutableCacheControl, small.CacheControl)
	assert.Equal(t, "image/png", small.ContentType)
	assert.Zero(t, small.ChunkSize)

	unknown := obj.NewWriter(context.Background())
	defaultChunk := unknown.ChunkSize
	configureWriter(unknown, 0, " ")
	assert.Equal(t, defaultChunk, unknown.ChunkSize)
	assert.Empty(t, unknown.ContentType)
}
