package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

const r2KeyPrefix = "profiles/"

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// objectClient is the part of *s3.Client used by R2Store.
type objectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// R2Store keeps images in a Cloudflare R2 bucket and returns absolute
// public URLs.
type R2Store struct {
	client        objectClient
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

func NewR2Store(ctx context.Context, cfg R2Config) (*R2Store, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("invalid r2 configuration: all fields are required")
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return newR2Store(client, cfg.BucketName, cfg.PublicBaseURL), nil
}

func newR2Store(client objectClient, bucket, publicBaseURL string) *R2Store {
	return &R2Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
	}
}

func (s *R2Store) Save(ctx context.Context, r io.Reader) (string, error) {
	key := r2KeyPrefix + fileName(s.now())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrWrite, key, err)
	}

	log.Infof("uploaded image %s to bucket %s", key, s.bucket)
	return joinURL(s.publicBaseURL, key), nil
}

func (s *R2Store) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(r2KeyPrefix),
	})

	urls := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		for _, obj := range page.Contents {
			urls = append(urls, joinURL(s.publicBaseURL, aws.ToString(obj.Key)))
		}
	}
	return urls, nil
}
