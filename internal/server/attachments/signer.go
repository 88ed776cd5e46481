package attachments

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/keybud/internal/server/config"
)

// Signer produces a time-limited URL for an object key.
type Signer interface {
	Sign(ctx context.Context, objectKey string, validity time.Duration) (string, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	loadPEMPrivKeyFile = sign.LoadPEMPrivKeyFile
)

// S3Signer presigns GET requests against an S3-compatible bucket.
type S3Signer struct {
	bucket   string
	region   string
	user     string
	password string
	endpoint string

	mu     sync.Mutex
	client *s3.PresignClient
}

func NewS3Signer(cfg *sc.Config) *S3Signer {
	return &S3Signer{
		bucket:   cfg.S3Bucket,
		region:   cfg.S3Region,
		user:     cfg.S3RootUser,
		password: cfg.S3RootPassword,
		endpoint: cfg.S3BaseEndpoint,
	}
}

// presignClient builds the client on first use. A failed build is retried
// on the next call.
func (s *S3Signer) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.user,
			s.password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	s.client = newS3PresignClient(client)
	return s.client, nil
}

func (s *S3Signer) Sign(ctx context.Context, objectKey string, validity time.Duration) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &objectKey,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}

	return req.URL, nil
}

// urlSigner is the part of sign.URLSigner used here.
type urlSigner interface {
	Sign(rawURL string, expires time.Time) (string, error)
}

// CloudFrontSigner signs distribution URLs with a canned policy.
type CloudFrontSigner struct {
	domain string
	signer urlSigner
	now    func() time.Time
}

// NewCloudFrontSigner loads the key pair's PEM private key from keyPath.
func NewCloudFrontSigner(domain, keyPairID, keyPath string) (*CloudFrontSigner, error) {
	key, err := loadPEMPrivKeyFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load cloudfront key: %w", err)
	}
	return NewCloudFrontSignerWithKey(domain, keyPairID, key), nil
}

func NewCloudFrontSignerWithKey(domain, keyPairID string, key *rsa.PrivateKey) *CloudFrontSigner {
	return &CloudFrontSigner{
		domain: strings.TrimSuffix(domain, "/"),
		signer: sign.NewURLSigner(keyPairID, key),
		now:    time.Now,
	}
}

func (s *CloudFrontSigner) objectURL(objectKey string) string {
	base := s.domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + "/" + (&url.URL{Path: strings.TrimPrefix(objectKey, "/")}).EscapedPath()
}

func (s *CloudFrontSigner) Sign(_ context.Context, objectKey string, validity time.Duration) (string, error) {
	signed, err := s.signer.Sign(s.objectURL(objectKey), s.now().Add(validity))
	if err != nil {
		return "", fmt.Errorf("cloudfront sign %s: %w", objectKey, err)
	}
	return signed, nil
}

// NewSigner picks CloudFront when it is configured and S3 presigning otherwise.
func NewSigner(cfg *sc.Config) (Signer, error) {
	if cfg.UseCloudFront() {
		return NewCloudFrontSigner(cfg.CloudFrontDomain, cfg.CloudFrontKeyPairID, cfg.CloudFrontPrivateKeyPath)
	}
	return NewS3Signer(cfg), nil
}
