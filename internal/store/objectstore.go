package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig captures configuration for the S3-compatible backend.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore keeps the entries as one JSON object in a bucket.
type ObjectStore struct {
	client     *minio.Client
	cfg        ObjectStoreConfig
	bucketOnce sync.Once
	bucketErr  error
}

// NewObjectStore validates cfg and creates the client. The bucket is created on first use.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object store: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store: secret key is required")
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}
	return &ObjectStore{client: client, cfg: cfg}, nil
}

// ObjectKey returns the full key of the token object.
func (s *ObjectStore) ObjectKey() string {
	if s.cfg.Prefix == "" {
		return TokenFileName
	}
	return s.cfg.Prefix + "/" + TokenFileName
}

// Get implements auth.Store.
func (s *ObjectStore) Get(ctx context.Context) (*auth.TokenSet, error) {
	key := s.ObjectKey()
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object store: fetch %s: %w", key, err)
	}
	defer func() { _ = object.Close() }()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object store: read %s: %w", key, err)
	}
	return decodeEntries(data)
}

// Put implements auth.Store.
func (s *ObjectStore) Put(ctx context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := encodeEntries(t)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	key := s.ObjectKey()
	misc.LogSavingCredentials("s3://" + s.cfg.Bucket + "/" + key)
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("object store: put object %s: %w", key, err)
	}
	return nil
}

// Clear implements auth.Store.
func (s *ObjectStore) Clear(ctx context.Context) error {
	key := s.ObjectKey()
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isObjectNotFound(err) {
			return nil
		}
		return fmt.Errorf("object store: delete object %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("object store: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			s.bucketErr = fmt.Errorf("object store: create bucket: %w", err)
		}
	})
	return s.bucketErr
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
