package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-storage")

// ErrBlobNotFound is returned when reading an object key that does not
// exist, e.g. a derivative size that has not been generated yet.
var ErrBlobNotFound = errors.New("blob not found")

// MinioClient wraps the content store holding file blobs and their resized
// derivatives, with tracing on each operation.
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient initializes a new MinIO client
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	mc := &MinioClient{
		client:     client,
		bucketName: bucketName,
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Printf("Creating bucket: %s", bucketName)
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Bucket %s created successfully", bucketName)
	}

	return mc, nil
}

// PutBlob uploads content bytes under an opaque key with tracing.
func (mc *MinioClient) PutBlob(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "minio.put_blob",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	reader := bytes.NewReader(data)
	_, err := mc.client.PutObject(ctx, mc.bucketName, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})

	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload blob: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// GetBlob downloads content bytes by key with tracing. A missing key yields
// ErrBlobNotFound.
func (mc *MinioClient) GetBlob(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.get_blob",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	object, err := mc.client.GetObject(ctx, mc.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		// GetObject is lazy; a missing key only surfaces on first read.
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, ErrBlobNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	span.SetAttributes(
		attribute.Int("size_bytes", len(data)),
		attribute.Bool("download_success", true),
	)
	return data, nil
}

// DeleteBlob deletes an object by key.
func (mc *MinioClient) DeleteBlob(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "minio.delete_blob",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	err := mc.client.RemoveObject(ctx, mc.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}

// IsAlive reports whether the object store is reachable.
func (mc *MinioClient) IsAlive(ctx context.Context) bool {
	_, err := mc.client.BucketExists(ctx, mc.bucketName)
	return err == nil
}
