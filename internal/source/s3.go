package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/model"
)

func init() {
	Registry.Register("objectstore", NewObjectStoreFromSettings)
}

// objectStoreSettings is the typed settings shape for the "objectstore"
// source connector, replacing the source system's untyped settings map.
type objectStoreSettings struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// ObjectStore is the one source connector the pipeline ships: an
// S3-compatible object store reachable via aws-sdk-go-v2.
type ObjectStore struct {
	client  *s3.Client
	bucket  string
	prefix  string
	tempDir string
}

// NewObjectStoreFromSettings builds an ObjectStore from raw pipeline
// settings. Construction succeeds even if the bucket is unreachable;
// reachability is checked by Validate, called separately by the
// pipeline at connector-assembly time.
func NewObjectStoreFromSettings(settings map[string]interface{}) (Source, error) {
	var s objectStoreSettings
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "invalid settings", Cause: err}
	}
	if s.Bucket == "" {
		return nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "bucket is required"}
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(regionOrDefault(s.Region)),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AccessKeyID, s.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "load aws config", Cause: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = s.UsePathStyle
	})

	return &ObjectStore{
		client:  client,
		bucket:  s.Bucket,
		prefix:  s.Prefix,
		tempDir: os.TempDir(),
	}, nil
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}

func (o *ObjectStore) Name() string { return "ObjectStore" }

// Validate heads the bucket; failure here is fatal to pipeline
// construction per the source connector's failure semantics.
func (o *ObjectStore) Validate(ctx context.Context) error {
	_, err := o.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(o.bucket)})
	if err != nil {
		return &model.ConnectorError{Connector: "ObjectStore", Reason: "head bucket failed", Cause: err}
	}
	return nil
}

// ListFull paginates every object under the configured prefix.
func (o *ObjectStore) ListFull(ctx context.Context, emit ListFn) error {
	return o.list(ctx, nil, emit)
}

// ListDelta paginates objects whose LastModified is strictly after
// since, filtering client-side since S3's ListObjectsV2 has no
// server-side modified-time predicate.
func (o *ObjectStore) ListDelta(ctx context.Context, since time.Time, emit ListFn) error {
	return o.list(ctx, &since, emit)
}

func (o *ObjectStore) list(ctx context.Context, since *time.Time, emit ListFn) error {
	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(o.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &model.ConnectorError{Connector: "ObjectStore", Reason: "list objects failed", Cause: err}
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			lastMod := time.Time{}
			if obj.LastModified != nil {
				lastMod = *obj.LastModified
			}
			if since != nil && !lastMod.After(*since) {
				continue
			}

			cf := model.CloudFile{
				ID:   *obj.Key,
				Name: filepath.Base(*obj.Key),
				Path: *obj.Key,
				Type: "objectstore",
				Metadata: map[string]interface{}{
					"bucket":        o.bucket,
					"last_modified": lastMod,
					"size":          aws.ToInt64(obj.Size),
				},
			}
			if err := emit(cf); err != nil {
				return err
			}
		}
	}
	return nil
}

// Download fetches cf to a uniquely named temp file, escaping path
// separators out of the object key so nested "directories" in the key
// don't collide with the flat temp directory layout.
func (o *ObjectStore) Download(ctx context.Context, cf model.CloudFile) (model.LocalFile, Release, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(cf.Path),
	})
	if err != nil {
		return model.LocalFile{}, nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "get object failed", Cause: err}
	}
	defer out.Body.Close()

	destPath := filepath.Join(o.tempDir, escapeKey(cf.Path))
	f, err := os.Create(destPath)
	if err != nil {
		return model.LocalFile{}, nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "create temp file", Cause: err}
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return model.LocalFile{}, nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "write temp file", Cause: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return model.LocalFile{}, nil, &model.ConnectorError{Connector: "ObjectStore", Reason: "close temp file", Cause: err}
	}

	lf := model.LocalFile{
		ID:       cf.ID,
		FilePath: destPath,
		Metadata: cf.Metadata,
		Type:     cf.Type,
	}
	release := func() {
		if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove temp file", "path", destPath, "error", err)
		}
	}
	return lf, release, nil
}

// escapeKey derives a unique, flat filename from an object key so it
// can be safely written into a shared temp directory.
func escapeKey(key string) string {
	escaped := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	return fmt.Sprintf("%s_%s", uuid.NewString(), escaped)
}
