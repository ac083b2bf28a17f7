// Package s3fs implements users.FileStorage on an S3 compatible bucket.
// Directories are key prefixes marked by an empty object, renames copy
// every object under the prefix and then delete the originals.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	goerrors "github.com/goliatone/go-errors"
)

// dirMarker is the object written for MkdirAll
const dirMarker = ".keep"

// Client is the subset of *s3.Client the storage needs
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures NewFromConfig
type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Storage stores files as objects under Prefix in Bucket
type Storage struct {
	client Client
	bucket string
	prefix string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// New wraps an existing client
func New(client Client, bucket, prefix string) *Storage {
	return &Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewFromConfig builds an S3 client from opts. Static credentials are used
// when an access key is given, the default chain otherwise.
func NewFromConfig(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Bucket == "" {
		return nil, goerrors.New("s3 bucket is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "bucket"})
	}

	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loaders...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load aws config")
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return New(client, opts.Bucket, opts.Prefix), nil
}

func (s *Storage) key(p string) string {
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.prefix == "" {
		return c
	}
	return s.prefix + "/" + c
}

func (s *Storage) dirKey(p string) string {
	return strings.TrimSuffix(s.key(p), "/") + "/"
}

// MkdirAll writes a marker object so empty directories survive renames
func (s *Storage) MkdirAll(ctx context.Context, p string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(p) + dirMarker),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return wrap(err, "failed to create directory marker", p)
	}
	return nil
}

// Rename moves a single object or every object under a prefix
func (s *Storage) Rename(ctx context.Context, oldPath, newPath string) error {
	exists, err := s.Exists(ctx, newPath)
	if err != nil {
		return err
	}
	if exists {
		return goerrors.New("rename destination already exists", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"from": oldPath, "to": newPath})
	}

	if ok, err := s.objectExists(ctx, s.key(oldPath)); err != nil {
		return err
	} else if ok {
		return s.move(ctx, s.key(oldPath), s.key(newPath))
	}

	from := s.dirKey(oldPath)
	to := s.dirKey(newPath)

	keys, err := s.list(ctx, from)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return goerrors.New("rename source does not exist", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"from": oldPath})
	}

	for _, k := range keys {
		if err := s.move(ctx, k, to+strings.TrimPrefix(k, from)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) move(ctx context.Context, from, to string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + from),
		Key:        aws.String(to),
	})
	if err != nil {
		return wrap(err, "failed to copy object", from)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(from),
	})
	if err != nil {
		return wrap(err, "failed to delete moved object", from)
	}
	return nil
}

func (s *Storage) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, wrap(err, "failed to list objects", prefix)
		}

		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *Storage) ReadFile(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, wrap(err, "failed to read object", p)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (s *Storage) WriteFile(ctx context.Context, p string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return wrap(err, "failed to write object", p)
	}
	return nil
}

// Exists reports an object at p or any object under the p/ prefix
func (s *Storage) Exists(ctx context.Context, p string) (bool, error) {
	ok, err := s.objectExists(ctx, s.key(p))
	if err != nil || ok {
		return ok, err
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, wrap(err, "failed to list objects", p)
	}
	return len(out.Contents) > 0, nil
}

func (s *Storage) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, wrap(err, "failed to stat object", key)
}

// Remove deletes the object at p. Missing objects are not an error.
func (s *Storage) Remove(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil && !isNotFound(err) {
		return wrap(err, "failed to delete object", p)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func wrap(err error, msg, p string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, msg).
		WithMetadata(map[string]any{"path": p})
}
