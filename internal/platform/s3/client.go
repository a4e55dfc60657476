package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/tracksync/internal/config"
)

// DefaultRegion is used when the provider does not name one.
const DefaultRegion = "us-east-1"

// ImageExtensions are the object suffixes recognized as disk images.
var ImageExtensions = []string{".qcow2", ".raw", ".img", ".vmdk", ".ova"}

// Config describes the bucket to list.
type Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint is set for non-AWS object stores; it enables path-style
	// addressing.
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Client lists image templates in one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// NewClient creates a client. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{s3: client, bucket: cfg.Bucket, prefix: normalizePrefix(cfg.Prefix)}, nil
}

// NewFromConfig builds a client from a registry entry and its credential.
func NewFromConfig(ctx context.Context, p config.Provider, cred config.Credential) (*Client, error) {
	return NewClient(ctx, Config{
		Bucket:    p.Bucket,
		Prefix:    p.Prefix,
		Region:    p.Region,
		Endpoint:  p.Endpoint,
		AccessKey: cred.AccessKey,
		SecretKey: cred.SecretKey,
	})
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// ListObjects returns every object key below the configured prefix,
// following continuation tokens.
func (c *Client) ListObjects(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	}
	if c.prefix != "" {
		input.Prefix = aws.String(c.prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFoundError(err) {
				return nil, fmt.Errorf("bucket %s does not exist: %w", c.bucket, err)
			}
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", c.bucket, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// ListTemplates returns the sorted, deduplicated template names found in
// the bucket.
func (c *Client) ListTemplates(ctx context.Context) ([]string, error) {
	keys, err := c.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	return TemplateNames(keys, c.prefix), nil
}

// TemplateNames extracts template names from object keys. An image stored
// directly below the prefix is named after its file without the extension.
func TemplateNames(keys []string, prefix string) []string {
	prefix = normalizePrefix(prefix)
	seen := map[string]struct{}{}
	var names []string

	for _, key := range keys {
		ext := strings.ToLower(path.Ext(key))
		if !isImageExtension(ext) || !strings.HasPrefix(key, prefix) {
			continue
		}

		rel := strings.TrimPrefix(key, prefix)
		name, _, nested := strings.Cut(rel, "/")
		if !nested {
			name = strings.TrimSuffix(rel, path.Ext(rel))
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func isImageExtension(ext string) bool {
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// S3-compatible services may not return the exact SDK error types.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}

// IsTransient reports whether an S3 error is throttling or a server-side
// failure.
func IsTransient(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout", "Throttling", "ThrottlingException":
		return true
	}
	return false
}
