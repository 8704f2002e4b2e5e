// Package s3 archives batch artefacts to an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// Ensure Archiver implements the driven port
var _ driven.Archiver = (*Archiver)(nil)

// keyPrefix namespaces archived artefacts inside the bucket.
const keyPrefix = "tidemark"

// API is the subset of the S3 client the archiver depends on.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies batch input and output files to S3 for retention.
type Archiver struct {
	client API
	bucket string
}

// New creates an archiver using the default AWS credential chain.
// An empty region defers to the environment and shared config files.
func New(ctx context.Context, region, bucket string) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewFromClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewFromClient creates an archiver over an existing client.
func NewFromClient(client API, bucket string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
	}
}

// Store uploads the file at path to <prefix>/<kind>/<filename>, where
// kind separates inputs from outputs.
func (a *Archiver) Store(ctx context.Context, kind, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	key := keyPrefix + "/" + kind + "/" + filepath.Base(path)

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}

	logger.Debug("Archived %s to s3://%s/%s", filepath.Base(path), a.bucket, key)
	return nil
}
