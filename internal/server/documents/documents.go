// Package documents hands out presigned object-storage URLs through which
// business applicants upload their supporting documents directly.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	now = time.Now
)

// Config locates the bucket and sets the lifetime of issued URLs.
type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	URLValidity  time.Duration
}

// Upload is a presigned PUT target. Key is what a registration references
// as its businessDocument.
type Upload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// StorageKey returns a fresh, date-partitioned object key.
func StorageKey() string {
	d := now().UTC()
	return fmt.Sprintf("business-documents/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *Service) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a new key and a PUT URL for it valid for URLValidity.
func (s *Service) PresignUpload(ctx context.Context) (*Upload, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 config: %w", common.ErrInfrastructure, err)
	}

	bucket := s.cfg.Bucket
	key := StorageKey()

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.cfg.URLValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: s3 presign: %w", common.ErrInfrastructure, err)
	}

	return &Upload{Key: key, URL: req.URL}, nil
}
