package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medication-adherence/internal/domain/doses"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Config struct {
	Bucket string
	Region string
	// Endpoint para S3 compatibles (MinIO, R2...). Activa path-style.
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicBaseURL: base pública de lectura (CDN). Si está vacía se arma la URL de S3.
	PublicBaseURL string
	Expiry        time.Duration
}

// Presigner genera URLs PUT prefirmadas para las fotos de tomas.
// Key: doses/<user>/<uuid>.<ext>
type Presigner struct {
	client  *s3.PresignClient
	cfg     Config
	now     func() time.Time
	newUUID func() string
}

func New(ctx context.Context, cfg Config) (*Presigner, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, doses.ErrPhotosDisabled
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Presigner{
		client:  s3.NewPresignClient(client),
		cfg:     cfg,
		now:     time.Now,
		newUUID: uuid.NewString,
	}, nil
}

func (p *Presigner) PresignUpload(ctx context.Context, userID, contentType string) (doses.PhotoUpload, error) {
	if p == nil || p.client == nil {
		return doses.PhotoUpload{}, doses.ErrPhotosDisabled
	}
	ext, ok := doses.PhotoExtension(contentType)
	if !ok {
		return doses.PhotoUpload{}, errors.New("unsupported content type")
	}

	key := fmt.Sprintf("doses/%s/%s.%s", userID, p.newUUID(), ext)
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(o *s3.PresignOptions) {
		o.Expires = p.cfg.Expiry
	})
	if err != nil {
		return doses.PhotoUpload{}, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return doses.PhotoUpload{
		Key:       key,
		UploadURL: req.URL,
		PhotoURL:  p.publicURL(key),
		ExpiresAt: p.now().Add(p.cfg.Expiry).UTC(),
	}, nil
}

func (p *Presigner) publicURL(key string) string {
	switch {
	case p.cfg.PublicBaseURL != "":
		return p.cfg.PublicBaseURL + "/" + key
	case p.cfg.Endpoint != "":
		return p.cfg.Endpoint + "/" + p.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
	}
}
