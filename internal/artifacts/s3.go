package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3-compatible artifact store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// DefaultS3Config returns the default configuration.
func DefaultS3Config() *S3Config {
	return &S3Config{
		Region: "us-east-1",
	}
}

// S3Store stores artifact versions in an S3-compatible bucket. Object
// keys are laid out as prefix/app/user/session/filename/version.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates a new S3-backed artifact store.
func NewS3Store(ctx context.Context, cfg *S3Config) (*S3Store, error) {
	if cfg == nil {
		cfg = DefaultS3Config()
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Save appends a new version and returns its version number.
func (s *S3Store) Save(ctx context.Context, key Key, artifact Artifact) (int, error) {
	versions, err := s.Versions(ctx, key)
	if err != nil {
		return 0, err
	}
	version := 0
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}

	objectKey := s.versionKey(key, version)
	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
		Body:   bytes.NewReader(artifact.Data),
	}
	if artifact.MIMEType != "" {
		input.ContentType = aws.String(artifact.MIMEType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("s3 put object: %w", err)
	}
	return version, nil
}

// Load returns the given version, or the latest when version < 0.
func (s *S3Store) Load(ctx context.Context, key Key, version int) (*Artifact, error) {
	if version < 0 {
		versions, err := s.Versions(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, ErrNotFound
		}
		version = versions[len(versions)-1]
	}

	objectKey := s.versionKey(key, version)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	artifact := &Artifact{Data: data}
	if out.ContentType != nil {
		artifact.MIMEType = *out.ContentType
	}
	return artifact, nil
}

// List returns the filenames stored for a session, sorted.
func (s *S3Store) List(ctx context.Context, appName, userID, sessionID string) ([]string, error) {
	prefix := s.sessionKeyPrefix(Key{AppName: appName, UserID: userID, SessionID: sessionID})

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			segment := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			name, err := url.PathUnescape(segment)
			if err != nil {
				name = segment
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Versions returns the stored version numbers, ascending.
func (s *S3Store) Versions(ctx context.Context, key Key) ([]int, error) {
	prefix := s.fileKeyPrefix(key)

	var versions []int
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if v, err := strconv.Atoi(strings.TrimPrefix(*obj.Key, prefix)); err == nil {
				versions = append(versions, v)
			}
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// Delete removes all versions of a filename.
func (s *S3Store) Delete(ctx context.Context, key Key) error {
	versions, err := s.Versions(ctx, key)
	if err != nil {
		return err
	}
	for _, version := range versions {
		objectKey := s.versionKey(key, version)
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &s.bucket,
			Key:    &objectKey,
		}); err != nil {
			return fmt.Errorf("s3 delete object: %w", err)
		}
	}
	return nil
}

func (s *S3Store) sessionKeyPrefix(key Key) string {
	p := path.Join(key.AppName, key.UserID, key.SessionID) + "/"
	if s.prefix != "" {
		p = s.prefix + "/" + p
	}
	return p
}

func (s *S3Store) fileKeyPrefix(key Key) string {
	return s.sessionKeyPrefix(key) + url.PathEscape(key.Filename) + "/"
}

func (s *S3Store) versionKey(key Key, version int) string {
	return s.fileKeyPrefix(key) + strconv.Itoa(version)
}
