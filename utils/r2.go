package utils

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

type R2Options struct {
	AccountID       string
	Endpoint        string // overrides the account endpoint, e.g. for a local S3 stub
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// R2Client writes objects to a Cloudflare R2 bucket through the S3 API.
type R2Client struct {
	client *s3.Client
	bucket string
}

func NewR2Client(ctx context.Context, opts R2Options) (*R2Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load R2 config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &R2Client{client: client, bucket: opts.Bucket}, nil
}

// PutObject uploads body under key.
func (r *R2Client) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return eris.Wrapf(err, "failed to upload %s to R2", key)
	}
	return nil
}
