package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// DefaultPoolSize is the default HTTP connection-pool size. The pool must
// be provisioned strictly greater than the process's peak number of
// concurrent read/write operations; that is a deployment invariant, not a
// runtime lock.
const DefaultPoolSize = 16

// Config options for the S3 handler
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PoolSize        int    // Max connections per host (default: DefaultPoolSize)

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Handler is an S3-compatible implementation of the
// simpletransform.ReferenceHandler interface. References created by this
// handler use s3://bucket/key URIs.
type Handler struct {
	client *s3.Client
	bucket string
	config Config
}

// New creates a new S3-compatible reference handler
func New(config Config) (*Handler, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.PoolSize <= 0 {
		config.PoolSize = DefaultPoolSize
	}

	httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.MaxConnsPerHost = config.PoolSize
		tr.MaxIdleConnsPerHost = config.PoolSize
	})

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	handler := &Handler{
		client: s3.NewFromConfig(awsCfg, s3Options...),
		bucket: config.Bucket,
		config: config,
	}

	if config.CreateBucketIfNotExist {
		if err := handler.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return handler, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (h *Handler) createBucketIfNotExists(ctx context.Context) error {
	_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(h.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(h.bucket),
	}
	if h.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(h.config.Region),
		}
	}

	_, err = h.client.CreateBucket(ctx, createInput)
	if err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// CreateReference generates a unique s3://bucket/key reference for the
// given name.
func (h *Handler) CreateReference(ctx context.Context, name, mediaType string) (simpletransform.ContentReference, error) {
	key := simpletransform.UniqueName(name)
	return simpletransform.NewContentReference(fmt.Sprintf("s3://%s/%s", h.bucket, key), mediaType), nil
}

// Exists reports whether the referenced object is present in the bucket.
func (h *Handler) Exists(ctx context.Context, ref simpletransform.ContentReference) (bool, error) {
	key, err := h.resolve(ref)
	if err != nil {
		return false, err
	}

	_, err = h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, h.storageError("exists", ref.URI, err)
	}
	return true, nil
}

// Read opens the referenced object for streaming. With deleteOnClose set,
// the object is removed best-effort once the stream is closed.
func (h *Handler) Read(ctx context.Context, ref simpletransform.ContentReference, deleteOnClose bool) (io.ReadCloser, error) {
	key, err := h.resolve(ref)
	if err != nil {
		return nil, err
	}

	result, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, h.storageError("read", ref.URI, simpletransform.ErrReferenceNotFound)
		}
		return nil, h.storageError("read", ref.URI, err)
	}

	if deleteOnClose {
		return &deleteOnCloseReader{ReadCloser: result.Body, handler: h, ref: ref}, nil
	}
	return result.Body, nil
}

// Write uploads the stream to the referenced key. The upload manager aborts
// incomplete multipart uploads on failure, so a partial upload never
// reports Exists.
func (h *Handler) Write(ctx context.Context, reader io.Reader, ref simpletransform.ContentReference) (int64, error) {
	key, err := h.resolve(ref)
	if err != nil {
		return 0, err
	}

	counting := &countingReader{reader: reader}
	uploader := manager.NewUploader(h.client)

	input := &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   counting,
	}
	if ref.MediaType != "" {
		input.ContentType = aws.String(ref.MediaType)
	}
	if ref.Size != nil {
		input.ContentLength = ref.Size
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return 0, h.storageError("write", ref.URI, err)
	}
	return counting.n, nil
}

// WriteFile uploads the file at path to the referenced key.
func (h *Handler) WriteFile(ctx context.Context, path string, ref simpletransform.ContentReference) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, h.storageError("write_file", ref.URI, err)
	}
	defer file.Close()
	return h.Write(ctx, file, ref)
}

// Delete removes the referenced object. S3 deletes are idempotent; an
// absent object is not an error.
func (h *Handler) Delete(ctx context.Context, ref simpletransform.ContentReference) error {
	key, err := h.resolve(ref)
	if err != nil {
		return err
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return h.storageError("delete", ref.URI, err)
	}
	return nil
}

// resolve maps an s3://bucket/key URI to its object key, verifying the
// reference belongs to this handler's bucket.
func (h *Handler) resolve(ref simpletransform.ContentReference) (string, error) {
	rest, ok := strings.CutPrefix(ref.URI, "s3://")
	if !ok {
		return "", h.storageError("resolve", ref.URI,
			fmt.Errorf("%w: not an s3 uri", simpletransform.ErrInvalidArgument))
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", h.storageError("resolve", ref.URI,
			fmt.Errorf("%w: missing object key", simpletransform.ErrInvalidArgument))
	}
	if bucket != h.bucket {
		return "", h.storageError("resolve", ref.URI,
			fmt.Errorf("%w: reference bucket %q does not match handler bucket %q",
				simpletransform.ErrInvalidArgument, bucket, h.bucket))
	}
	return key, nil
}

func (h *Handler) storageError(op, uri string, err error) error {
	if isUnavailable(err) {
		err = fmt.Errorf("%w: %v", simpletransform.ErrBackendUnavailable, err)
	}
	return &simpletransform.StorageError{Backend: "s3", URI: uri, Op: op, Err: err}
}

// isNotFound classifies API errors that mean the object is absent.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

// isUnavailable classifies transport-level failures as backend
// unavailability. API errors carry a response, so the backend was reached.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	return !errors.As(err, &apiErr) && strings.Contains(err.Error(), "connect")
}

type deleteOnCloseReader struct {
	io.ReadCloser
	handler *Handler
	ref     simpletransform.ContentReference
}

func (r *deleteOnCloseReader) Close() error {
	err := r.ReadCloser.Close()
	r.handler.Delete(context.Background(), r.ref)
	return err
}

type countingReader struct {
	reader io.Reader
	n      int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}

var _ simpletransform.ReferenceHandler = (*Handler)(nil)
