package objstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/otalab/spaces/pkg/config"
)

// PresignExpirySeconds is how long presigned upload/download URLs stay
// valid. After expiry the client restarts at the presign phase.
const PresignExpirySeconds = 3600

// Metadata is the store-side view of an object, fetched for post-upload
// audit.
type Metadata struct {
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// PresignedUpload is the result of the presign phase: a time-boxed PUT URL
// the client uploads to directly.
type PresignedUpload struct {
	URL       string
	Key       string
	ExpiresIn int
}

// Client is the object-store gateway. It never verifies key ownership
// itself; that stays with the caller via the key policy. Implementations do
// not retry internally.
type Client interface {
	// PresignUpload issues a PUT URL for the key, tagging the eventual
	// object with the original filename, the request timestamp and the
	// space slug.
	PresignUpload(ctx context.Context, key, filename, contentType, spaceSlug string) (*PresignedUpload, error)
	// PresignDownload issues a GET URL forcing an attachment disposition
	// under the given display filename.
	PresignDownload(ctx context.Context, key, downloadFilename string) (string, error)
	// Exists probes the object. NotFound maps to false; any other failure
	// propagates, so a network error is never mistaken for a missing
	// object.
	Exists(ctx context.Context, key string) (bool, error)
	// GetMetadata fetches the object's store-side metadata; it fails when
	// the object is absent.
	GetMetadata(ctx context.Context, key string) (*Metadata, error)
	// Delete removes the object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// ListKeys returns every key under the prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// S3Client implements Client against S3 or an S3-compatible store.
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ Client = (*S3Client)(nil)

// NewS3Client builds the gateway from configuration. Static credentials are
// used when configured, the ambient credential chain otherwise.
func NewS3Client(ctx context.Context, conf *config.Config) (*S3Client, error) {
	if conf.S3.Bucket == "" {
		return nil, fmt.Errorf("objstore: bucket is required")
	}
	if conf.S3.Region == "" {
		return nil, fmt.Errorf("objstore: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.S3.Region),
	}
	if conf.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.S3.AccessKeyID, conf.S3.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.S3.Endpoint != "" {
			endpoint := conf.S3.Endpoint
			if !strings.Contains(endpoint, "://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = conf.S3.UsePathStyle
	})

	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  conf.S3.Bucket,
	}, nil
}

func (c *S3Client) PresignUpload(ctx context.Context, key, filename, contentType, spaceSlug string) (*PresignedUpload, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filename,
			"upload-timestamp":  strconv.FormatInt(time.Now().UnixMilli(), 10),
			"space-slug":        spaceSlug,
		},
	}, s3.WithPresignExpires(PresignExpirySeconds*time.Second))
	if err != nil {
		return nil, fmt.Errorf("objstore: presign upload: %w", err)
	}
	return &PresignedUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresIn: PresignExpirySeconds,
	}, nil
}

func (c *S3Client) PresignDownload(ctx context.Context, key, downloadFilename string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(c.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", downloadFilename)),
	}, s3.WithPresignExpires(PresignExpirySeconds*time.Second))
	if err != nil {
		return "", fmt.Errorf("objstore: presign download: %w", err)
	}
	return req.URL, nil
}

func (c *S3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("objstore: head %s: %w", key, err)
	}
	return true, nil
}

func (c *S3Client) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: head %s: %w", key, err)
	}
	meta := &Metadata{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

func (c *S3Client) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject already succeeds for absent keys, so this is
	// idempotent without extra handling.
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objstore: delete %s: %w", key, err)
	}
	return nil
}

func (c *S3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objstore: list %s: %w", prefix, err)
		}
		for i := range page.Contents {
			keys = append(keys, aws.ToString(page.Contents[i].Key))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
