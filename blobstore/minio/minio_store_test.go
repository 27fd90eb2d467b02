package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mhdmem/blobstore"
	"github.com/hupe1980/mhdmem/blobstore/blobstoretest"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "a", NewStore(nil, "b", "").key("a"))
	assert.Equal(t, "p/a", NewStore(nil, "b", "p").key("a"))
	assert.Equal(t, "p/a", NewStore(nil, "b", "/p/").key("a"))
	assert.Equal(t, "p/", NewStore(nil, "b", "p/").key(""))
}

func TestMapError(t *testing.T) {
	err := mapError("k", minio.ErrorResponse{Code: "NoSuchKey"})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	boom := errors.New("boom")
	err = mapError("k", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, blobstore.ErrNotFound)
}

func TestPutInvalidName(t *testing.T) {
	s := NewStore(nil, "b", "")
	assert.ErrorIs(t, s.Put(context.Background(), "", nil), blobstore.ErrInvalidName)
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-mhdmem"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}))
	}

	blobstoretest.Run(t, NewStore(client, bucket, fmt.Sprintf("run-%d", time.Now().UnixNano())))
}
