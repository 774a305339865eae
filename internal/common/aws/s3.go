// internal/common/aws/s3.go
package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fra-engine/internal/common/config"
	"fra-engine/internal/models"
)

// maxObjectBytes caps Get so a stray upload cannot exhaust render memory.
const maxObjectBytes = 15 << 20

// S3Client is the object store holding audit photos and archived documents.
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	awsCfg, err := loadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// List returns up to limit entries directly under prefix: sub-prefixes first,
// then objects, each group in key order.
func (c *S3Client) List(ctx context.Context, prefix string, limit int) ([]models.ObjectEntry, error) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var (
		dirs  []models.ObjectEntry
		files []models.ObjectEntry
		token *string
	)
	for {
		out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            awssdk.String(c.bucket),
			Prefix:            awssdk.String(prefix),
			Delimiter:         awssdk.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, p := range out.CommonPrefixes {
			full := awssdk.ToString(p.Prefix)
			dirs = append(dirs, models.ObjectEntry{
				Name:     strings.TrimSuffix(strings.TrimPrefix(full, prefix), "/"),
				Path:     strings.TrimSuffix(full, "/"),
				IsPrefix: true,
			})
		}
		for _, obj := range out.Contents {
			key := awssdk.ToString(obj.Key)
			if key == prefix {
				continue
			}
			files = append(files, models.ObjectEntry{Name: strings.TrimPrefix(key, prefix), Path: key})
		}
		if out.NextContinuationToken == nil || len(dirs)+len(files) >= limit {
			break
		}
		token = out.NextContinuationToken
	}

	entries := append(dirs, files...)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// SignedURL presigns a GET for path valid for ttl.
func (c *S3Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(c.bucket),
		Key:    awssdk.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", path, err)
	}
	return req.URL, nil
}

// Remove deletes paths and fails unless every delete was confirmed.
func (c *S3Client) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, len(paths))
	for i, p := range paths {
		ids[i] = types.ObjectIdentifier{Key: awssdk.String(p)}
	}
	out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: awssdk.String(c.bucket),
		Delete: &types.Delete{Objects: ids},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("delete %s: %s %s", awssdk.ToString(e.Key), awssdk.ToString(e.Code), awssdk.ToString(e.Message))
	}
	return nil
}

// Get downloads path and returns its bytes and content type.
func (c *S3Client) Get(ctx context.Context, path string) ([]byte, string, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(c.bucket),
		Key:    awssdk.String(path),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxObjectBytes {
		return nil, "", fmt.Errorf("get %s: object exceeds %d bytes", path, maxObjectBytes)
	}
	return data, awssdk.ToString(out.ContentType), nil
}

// Put uploads body to path.
func (c *S3Client) Put(ctx context.Context, path string, body []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awssdk.String(c.bucket),
		Key:         awssdk.String(path),
		Body:        bytes.NewReader(body),
		ContentType: awssdk.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
