package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jobfill/jobfill/internal/domain"
)

// MinIOConfig contains MinIO connection settings
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	BucketName      string
}

// MinIOClient wraps the MinIO client
type MinIOClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOClient creates a new MinIO client
func NewMinIOClient(cfg MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinIOClient{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("checking bucket existence: %w", err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
	}

	return nil
}

// UploadJSON uploads JSON data and returns its S3 URI
func (m *MinIOClient) UploadJSON(ctx context.Context, key string, data []byte) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", m.bucketName, key), nil
}

// Download downloads an object
func (m *MinIOClient) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, domain.NotFoundError("object", key)
		}
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// MinIOProfileSource reads the profile seed from a bucket object
type MinIOProfileSource struct {
	client *MinIOClient
	object string
}

// NewMinIOProfileSource creates a seed source for object
func NewMinIOProfileSource(client *MinIOClient, object string) *MinIOProfileSource {
	return &MinIOProfileSource{client: client, object: object}
}

// LoadProfile downloads and decodes the profile object
func (s *MinIOProfileSource) LoadProfile(ctx context.Context) (*domain.Profile, error) {
	data, err := s.client.Download(ctx, s.object)
	if err != nil {
		return nil, err
	}
	return DecodeProfile(data)
}

// SaveProfile uploads profile as the seed object
func (s *MinIOProfileSource) SaveProfile(ctx context.Context, profile *domain.Profile) (string, error) {
	data, err := EncodeProfile(profile)
	if err != nil {
		return "", err
	}
	return s.client.UploadJSON(ctx, s.object, data)
}
