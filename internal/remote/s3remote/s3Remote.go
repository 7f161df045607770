// Package s3remote implements remote.Storage on top of an S3-compatible
// object store.
package s3remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/soundmesh/streambox/internal/remote"
)

type Storage struct {
	client *s3.Client
	bucket string
	// Key prefix prepended to every remote path, e.g. "music/"
	prefix string
}

// NewStorage builds an S3-backed remote store. Credentials and region come
// from the default AWS config chain (environment, shared config, IMDS).
func NewStorage(ctx context.Context, bucket, prefix string) (*Storage, error) {
	if bucket == "" {
		return nil, remote.ErrNotConnected
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("failed accessing bucket %s: %w", bucket, err)
	}

	return &Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *Storage) key(remotePath string) string {
	return s.prefix + strings.TrimPrefix(remotePath, "/")
}

func (s *Storage) List(ctx context.Context, prefix string, recursive bool) ([]remote.FileInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var files []remote.FileInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed listing objects under %q: %w", prefix, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			files = append(files, remote.FileInfo{
				Name:     path.Base(key),
				Path:     "/" + strings.TrimPrefix(key, s.prefix),
				Size:     aws.ToInt64(object.Size),
				Modified: aws.ToTime(object.LastModified),
			})
		}
	}

	return files, nil
}

func (s *Storage) OpenStream(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening stream for %s: %w", remotePath, err)
	}
	return output.Body, nil
}

func (s *Storage) Download(ctx context.Context, remotePath string) ([]byte, error) {
	reader, err := s.OpenStream(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed downloading %s: %w", remotePath, err)
	}
	return data, nil
}
