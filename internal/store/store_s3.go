package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultPageSize = 1000

// S3Store reads objects and listings from a single S3 (or S3-compatible)
// bucket. It never mutates the remote store.
type S3Store struct {
	s3Client *s3.Client
	config   *S3Config
}

func NewS3Store(s3Client *s3.Client, config *S3Config) *S3Store {
	return &S3Store{
		s3Client: s3Client,
		config:   config,
	}
}

func NewS3StoreWithConfig(cfg *S3Config) (*S3Store, error) {
	// Create optimized HTTP client with HTTP/2 support
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Store(awsClient, cfg), nil
}

// GetObject fetches the full content of a single object. The body is buffered
// in memory so a caller either gets all of the bytes or an error, never a
// partial read.
func (s *S3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body %q: %w", key, err)
	}
	return data, nil
}

// ListPager returns a pager over all keys under prefix. The continuation
// token handling is delegated to the SDK paginator.
func (s *S3Store) ListPager(prefix string, pageSize int32) ObjectPager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket:  &s.config.BucketName,
		Prefix:  &prefix,
		MaxKeys: aws.Int32(pageSize),
	})

	return &s3Pager{paginator: paginator}
}

type s3Pager struct {
	paginator *s3.ListObjectsV2Paginator
}

func (p *s3Pager) HasMorePages() bool {
	return p.paginator.HasMorePages()
}

func (p *s3Pager) NextPage(ctx context.Context) ([]*ObjectInfo, error) {
	page, err := p.paginator.NextPage(ctx)
	if err != nil {
		return nil, err
	}

	objects := make([]*ObjectInfo, 0, len(page.Contents))
	for _, obj := range page.Contents {
		objects = append(objects, &ObjectInfo{
			Key:          aws.ToString(obj.Key),
			ETag:         strings.ReplaceAll(aws.ToString(obj.ETag), "\"", ""),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified).Format(timeFormat),
		})
	}
	return objects, nil
}

// check that S3Store implements the ObjectStore interface
var _ ObjectStore = (*S3Store)(nil)
