package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
)

// Storage reads uploaded videos from a bucket.
type Storage struct {
	client       *miniogo.Client
	uploadBucket string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{client: client, uploadBucket: cfg.UploadBucket}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.uploadBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.uploadBucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.uploadBucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.uploadBucket, err)
		}
	}
	return nil
}

// Input resolves objectKey to a video input. A missing object or an
// unsupported content type is an *entity.UploadError.
func (s *Storage) Input(ctx context.Context, objectKey string) (port.VideoInput, error) {
	if objectKey == "" {
		return nil, &entity.UploadError{Reason: "video_key is required"}
	}

	info, err := s.client.StatObject(ctx, s.uploadBucket, objectKey, miniogo.StatObjectOptions{})
	if err != nil {
		if miniogo.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &entity.UploadError{Reason: fmt.Sprintf("object %s not found", objectKey), Err: err}
		}
		return nil, fmt.Errorf("stat object %s: %w", objectKey, err)
	}

	container, err := entity.ParseContainer(info.ContentType, path.Base(objectKey))
	if err != nil {
		return nil, err
	}
	return &ObjectInput{storage: s, key: objectKey, container: container}, nil
}

// PutVideo stores a local file under objectKey.
func (s *Storage) PutVideo(ctx context.Context, objectKey, srcPath, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.uploadBucket, objectKey, srcPath, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}

// ObjectInput is a video held in the upload bucket.
type ObjectInput struct {
	storage   *Storage
	key       string
	container entity.Container
}

func (o *ObjectInput) Container() entity.Container { return o.container }

func (o *ObjectInput) Key() string { return o.key }

func (o *ObjectInput) SaveTo(ctx context.Context, destPath string) error {
	err := o.storage.client.FGetObject(ctx, o.storage.uploadBucket, o.key, destPath, miniogo.GetObjectOptions{})
	if err != nil {
		_ = os.Remove(destPath)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &entity.UploadError{Reason: "download video " + o.key, Err: err}
	}
	return nil
}
