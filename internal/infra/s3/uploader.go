// Package s3 uploads completed downloads to an S3-compatible bucket and
// hands back presigned links. The local destination copy is always kept;
// upload is opt-in bookkeeping on top of it.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds S3-compatible storage settings. Endpoint may point at any
// S3-compatible service; leave it empty for AWS proper.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PresignExpiry   time.Duration
}

// Uploader pushes finished media files to a bucket.
type Uploader struct {
	client        *awss3.Client
	bucket        string
	presignExpiry time.Duration
}

// NewUploader creates an Uploader, or fails when the configuration is
// incomplete.
func NewUploader(ctx context.Context, cfg *Config) (*Uploader, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("incomplete upload storage configuration")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	slog.Info("upload storage initialized", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)

	return &Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		presignExpiry: expiry,
	}, nil
}

// UploadFile stores the file under key and returns a presigned download URL.
func (u *Uploader) UploadFile(ctx context.Context, filePath, key string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	_, err = u.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(contentType(filePath)),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	slog.Info("file uploaded", "key", key, "size", info.Size())

	return u.presign(ctx, key)
}

func (u *Uploader) presign(ctx context.Context, key string) (string, error) {
	presigner := awss3.NewPresignClient(u.client)

	req, err := presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, func(opts *awss3.PresignOptions) {
		opts.Expires = u.presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign download URL: %w", err)
	}
	return req.URL, nil
}

// Delete removes an uploaded object.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// DeleteOlderThan removes uploaded objects past the given age and returns
// how many were deleted.
func (u *Uploader) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	output, err := u.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list objects: %w", err)
	}

	threshold := time.Now().Add(-age)
	deleted := 0
	for _, obj := range output.Contents {
		if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(threshold) {
			continue
		}
		if err := u.Delete(ctx, *obj.Key); err != nil {
			slog.Warn("failed to delete old object", "key", *obj.Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// contentType maps a media file extension to its MIME type.
func contentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
