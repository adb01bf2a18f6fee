// Package s3blob implements the blob store on S3. Uploaded audio is
// write-once; the transcription capability fetches it through a presigned
// GET so the core never proxies bytes.
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

// Blobs implements store.BlobStore on S3.
type Blobs struct {
	client s3iface.S3API
	bucket string
	region string
}

// New creates an S3-backed blob store.
func New(client s3iface.S3API, bucket, region string) *Blobs {
	return &Blobs{
		client: client,
		bucket: bucket,
		region: region,
	}
}

// Put uploads audio under key. An existing object for the same key is a
// conflict: the upload is rejected, never overwritten.
func (b *Blobs) Put(ctx context.Context, key string, data []byte) (models.BlobLocation, error) {
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return models.BlobLocation{}, fmt.Errorf("blob %s: %w", key, store.ErrBlobExists)
	}
	if !isNotFound(err) {
		return models.BlobLocation{}, fmt.Errorf("head blob: %w", err)
	}

	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return models.BlobLocation{}, fmt.Errorf("put blob: %w", err)
	}

	return models.BlobLocation{Bucket: b.bucket, Key: key, Region: b.region}, nil
}

// Presign returns a time-bounded GET reference for the blob.
func (b *Blobs) Presign(ctx context.Context, loc models.BlobLocation, window time.Duration) (store.BlobRef, error) {
	req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	url, err := req.Presign(window)
	if err != nil {
		return store.BlobRef{}, fmt.Errorf("presign blob: %w", err)
	}
	return store.BlobRef{
		Location: loc,
		URL:      url,
		Expires:  time.Now().Add(window),
	}, nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}
