package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/logger"
)

// R2 stores objects in a Cloudflare R2 bucket through the S3 API.
type R2 struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewR2(ctx context.Context, cfg *config.Config) (*R2, error) {
	a := cfg.Artwork
	if a.AccountID == "" || a.Bucket == "" {
		return nil, fmt.Errorf("r2 requires CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME")
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", a.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.AccessKeyID, a.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	baseURL := a.PublicBaseURL
	if baseURL == "" {
		baseURL = endpoint + "/" + a.Bucket
	}

	logger.Info().Str("bucket", a.Bucket).Str("public_url", baseURL).Msg("R2 artwork store initialized")
	return &R2{client: client, bucket: a.Bucket, baseURL: baseURL}, nil
}

func (r *R2) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", r.baseURL, key), nil
}

func (r *R2) Delete(ctx context.Context, url string) error {
	key, ok := keyFromURL(r.baseURL, url)
	if !ok {
		return ErrNotFound
	}
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}
