// Package storage loads the profile seed written to the store on install.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
)

// ProfileSource supplies a profile seed
type ProfileSource interface {
	LoadProfile(ctx context.Context) (*domain.Profile, error)
}

// DecodeProfile parses a profile document
func DecodeProfile(data []byte) (*domain.Profile, error) {
	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, domain.ValidationError("profile", "invalid profile document: "+err.Error())
	}
	return &profile, nil
}

// EncodeProfile renders a profile document
func EncodeProfile(profile *domain.Profile) ([]byte, error) {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	return data, nil
}

// FileProfileSource reads the profile seed from a local JSON file
type FileProfileSource struct {
	path string
}

// NewFileProfileSource creates a seed source for path
func NewFileProfileSource(path string) *FileProfileSource {
	return &FileProfileSource{path: path}
}

// LoadProfile reads and decodes the file
func (s *FileProfileSource) LoadProfile(ctx context.Context) (*domain.Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError("profile file", s.path)
		}
		return nil, fmt.Errorf("reading profile file: %w", err)
	}
	return DecodeProfile(data)
}

// NewProfileSource builds the seed source selected in cfg; nil for none
func NewProfileSource(cfg config.StorageConfig) (ProfileSource, error) {
	switch cfg.Source {
	case config.SeedNone, "":
		return nil, nil
	case config.SeedFile:
		return NewFileProfileSource(cfg.ProfilePath), nil
	case config.SeedMinIO:
		client, err := minioClientFor(cfg)
		if err != nil {
			return nil, err
		}
		return NewMinIOProfileSource(client, cfg.Object), nil
	}
	return nil, fmt.Errorf("unknown profile source %q", cfg.Source)
}

// PublishProfile uploads profile as the seed object named in cfg, creating
// the bucket on first use
func PublishProfile(ctx context.Context, cfg config.StorageConfig, profile *domain.Profile) (string, error) {
	client, err := minioClientFor(cfg)
	if err != nil {
		return "", err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return "", err
	}
	return NewMinIOProfileSource(client, cfg.Object).SaveProfile(ctx, profile)
}

func minioClientFor(cfg config.StorageConfig) (*MinIOClient, error) {
	return NewMinIOClient(MinIOConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
		BucketName:      cfg.Bucket,
	})
}
