package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Config describes the S3-compatible endpoint shared by all accounts.
type S3Config struct {
	Region       string
	BaseEndpoint string
	Bucket       string
	UsePathStyle bool
	LinkTTL      time.Duration
}

// S3Provider implements Provider on top of aws-sdk-go-v2. A user credential
// is an access key id / secret key pair for the configured bucket.
type S3Provider struct {
	cfg S3Config
	now func() time.Time
}

func NewS3Provider(cfg S3Config) *S3Provider {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 7 * 24 * time.Hour
	}
	return &S3Provider{cfg: cfg, now: time.Now}
}

type s3Session struct {
	account string
	client  *s3.Client
	presign *s3.PresignClient
}

func (s *s3Session) Account() string { return s.account }

// Authenticate builds a client for the credential and proves it works by
// issuing HeadBucket. Failures are wrapped in common.ErrAuthenticationFailed.
func (p *S3Provider) Authenticate(ctx context.Context, email, secret string) (Session, error) {
	if email == "" || secret == "" {
		return nil, fmt.Errorf("%w: empty access key or secret", common.ErrAuthenticationFailed)
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(p.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(email, secret, "")))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if p.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.BaseEndpoint)
		}
		o.UsePathStyle = p.cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthenticationFailed, err)
	}

	return &s3Session{account: email, client: client, presign: s3.NewPresignClient(client)}, nil
}

// UploadFile streams localPath to a fresh object key ending in name.
func (p *S3Provider) UploadFile(ctx context.Context, s Session, localPath, name string, onProgress ProgressFunc) (Handle, error) {
	sess, ok := s.(*s3Session)
	if !ok {
		return Handle{}, errors.New("s3: foreign session")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Handle{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Handle{}, fmt.Errorf("stat %s: %w", localPath, err)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(localPath); err == nil {
		contentType = m.String()
	}

	key := ObjectKey(p.now(), name)
	body := &countingReader{r: f, onProgress: onProgress}

	_, err = sess.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return Handle{}, fmt.Errorf("put object: %w", err)
	}

	return Handle{Key: key, Size: info.Size()}, nil
}

// GetShareLink returns a presigned GET URL valid for LinkTTL.
func (p *S3Provider) GetShareLink(ctx context.Context, s Session, h Handle) (string, error) {
	sess, ok := s.(*s3Session)
	if !ok {
		return "", errors.New("s3: foreign session")
	}

	req, err := presignGetObject(sess.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(h.Key),
	}, s3.WithPresignExpires(p.cfg.LinkTTL))
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}

	return req.URL, nil
}

// countingReader reports bytes read. Seeking back to the start (the SDK does
// this on retries) restarts the count.
type countingReader struct {
	r          io.ReadSeeker
	read       atomic.Int64
	onProgress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		total := c.read.Add(int64(n))
		if c.onProgress != nil {
			c.onProgress(total)
		}
	}
	return n, err
}

func (c *countingReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := c.r.Seek(offset, whence)
	if err == nil {
		c.read.Store(pos)
	}
	return pos, err
}
