/*
Package media copies the attachments of recap posts from the board's media
host into our own bucket, since the board deletes them once a thread falls out
of the archive.

Objects are keyed by recap week, e.g. 20043/1587240800123.png.
*/
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/tcadamson/recap.agdg.app/src/board"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

func Key(datestamp int, filename string) string {
	return fmt.Sprintf("%d/%s", datestamp, filename)
}

// New returns the mirror described by the config, or nil when no bucket is
// configured.
func New(ctx context.Context, cfg config.MediaConfig, source *board.Client) (ingest.Mirror, error) {
	if !cfg.Enabled() {
		logging.ExtractLogger(ctx).Debug().Msg("no media bucket configured; attachments will not be mirrored")
		return nil, nil
	}
	m, err := NewS3Mirror(ctx, cfg, source)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type S3Mirror struct {
	client *s3.Client
	bucket string
	source *board.Client
}

var _ ingest.Mirror = &S3Mirror{}

func NewS3Mirror(ctx context.Context, cfg config.MediaConfig, source *board.Client) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, ""),
		))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL: cfg.Endpoint,
			}, nil
		})))
	}

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.New(err, "failed to load S3 config")
	}

	return &S3Mirror{
		client: s3.NewFromConfig(awscfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.Endpoint != ""
		}),
		bucket: cfg.Bucket,
		source: source,
	}, nil
}

// Mirror downloads one attachment and uploads it to the bucket, creating the
// bucket if it does not exist yet.
func (m *S3Mirror) Mirror(ctx context.Context, datestamp int, filename string) error {
	content, contentType, err := m.source.Media(ctx, filename)
	if err != nil {
		return oops.New(err, "failed to download %s", filename)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := Key(datestamp, filename)

	upload := func() error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &m.bucket,
			Key:         &key,
			Body:        bytes.NewReader(content),
			ContentType: &contentType,
		})
		return err
	}

	err = upload()
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
			logging.ExtractLogger(ctx).Info().Str("bucket", m.bucket).Msg("creating media bucket")
			_, err := m.client.CreateBucket(ctx, &s3.CreateBucketInput{
				Bucket: &m.bucket,
			})
			if err != nil {
				return oops.New(err, "failed to create media bucket")
			}

			err = upload()
			if err != nil {
				return oops.New(err, "failed to upload %s", key)
			}
		} else {
			return oops.New(err, "failed to upload %s", key)
		}
	}

	logging.ExtractLogger(ctx).Debug().
		Str("key", key).
		Int("size", len(content)).
		Msg("mirrored media")
	return nil
}
