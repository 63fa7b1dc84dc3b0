package itc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Cache implements Cache using an S3-compatible backend (AWS S3 or MinIO).
// Minimal surface area: single bucket, one object per observation under the
// configured prefix.
type S3Cache struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds explicit construction parameters. Credentials fall back to
// the default chain when the static fields are empty.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // optional; enables a custom endpoint (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// NewS3Cache creates an S3-backed ITC cache from the configuration.
func NewS3Cache(ctx context.Context, cfg S3Config) (*S3Cache, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "itc/"
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Cache{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Driver returns the cache driver identifier.
func (c *S3Cache) Driver() Driver { return DriverS3 }

func (c *S3Cache) keyFor(observationID string) (string, error) {
	id, err := sanitizeID(observationID)
	if err != nil {
		return "", err
	}
	return c.prefix + id + ".json", nil
}

// Put stores or replaces the result for its observation.
func (c *S3Cache) Put(ctx context.Context, result Result) error {
	key, err := c.keyFor(result.ObservationID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode itc result: %w", err)
	}
	contentType := "application/json"
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	return err
}

// Get returns the cached result for the observation.
func (c *S3Cache) Get(ctx context.Context, observationID string) (Result, error) {
	key, err := c.keyFor(observationID)
	if err != nil {
		return Result{}, err
	}
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return Result{}, ErrNotCached
		}
		return Result{}, err
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Result{}, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("decode itc result: %w", err)
	}
	return result, nil
}

// Has reports whether a result is cached for the observation.
func (c *S3Cache) Has(ctx context.Context, observationID string) (bool, error) {
	key, err := c.keyFor(observationID)
	if err != nil {
		return false, err
	}
	_, err = c.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the result. S3 deletes are idempotent so existence is
// assumed when no error is returned.
func (c *S3Cache) Delete(ctx context.Context, observationID string) (bool, error) {
	key, err := c.keyFor(observationID)
	if err != nil {
		return false, err
	}
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &c.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all cached results ordered by observation id.
func (c *S3Cache) List(ctx context.Context) ([]Result, error) {
	var out []Result
	var token *string
	for {
		page, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &c.bucket,
			Prefix:            &c.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id := strings.TrimSuffix(strings.TrimPrefix(key, c.prefix), ".json")
			result, err := c.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, result)
		}
		if page.IsTruncated != nil && *page.IsTruncated && page.NextContinuationToken != nil {
			token = page.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservationID < out[j].ObservationID })
	return out, nil
}

// isNotFound matches the typed errors S3 returns for absent objects:
// GetObject reports NoSuchKey, HeadObject reports NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
