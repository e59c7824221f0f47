package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/hashicorp/go-hclog"
)

type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// S3Store stores blobs in an S3 compatible bucket. Credentials come from
// the default AWS provider chain.
type S3Store struct {
	bucket   string
	baseURL  string
	client   *s3.S3
	uploader *s3manager.Uploader
	logger   hclog.Logger
}

func NewS3Store(opts S3Options, logger hclog.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	cfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	return &S3Store{
		bucket:   opts.Bucket,
		baseURL:  opts.PublicBaseURL,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		logger:   logger.Named("s3"),
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, path string, data []byte, contentType string) (Object, error) {
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	result, err := s.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	s.logger.Debug("uploaded object", "bucket", s.bucket, "path", path, "location", result.Location)

	url, _ := s.PublicURL(path)
	return Object{Path: path, URL: url, ContentType: contentType, Size: len(data)}, nil
}

func (s *S3Store) PublicURL(path string) (string, bool) {
	return publicURL(s.baseURL, path)
}

func (s *S3Store) Download(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
