// Package s3remote implements artifact.Remote against an S3-compatible
// bucket, the direct analogue of the teacher's storagedriver/s3 driver
// (registry/storage/driver/s3-aws) but built against the narrower
// artifact.Remote contract (blob get/put/has plus a URN index) rather
// than the full storagedriver.StorageDriver surface.
package s3remote

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/buildstream-go/core/internal/artifact"
	"github.com/buildstream-go/core/internal/cas"
)

// Remote is an S3-backed artifact.Remote. Blobs are stored under
// "blobs/<algorithm>/<hex>" and URN index entries under "index/<urn>"
// (a small object whose body is the digest string), mirroring the Object
// Store's own on-disk split between objects/ and refs/.
type Remote struct {
	name        string
	bucket      string
	prefix      string
	client      *s3.S3
	uploader    *s3manager.Uploader
	downloader  *s3manager.Downloader
	pushEnabled bool
	pullEnabled bool
}

// Config configures a Remote.
type Config struct {
	Name        string
	Bucket      string
	Prefix      string
	Region      string
	PushEnabled bool
	PullEnabled bool
}

// New constructs a Remote from cfg, sharing one AWS session across the
// client, uploader and downloader (the teacher's s3 driver does the same
// to avoid re-resolving credentials per call).
func New(cfg Config) (*Remote, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("s3remote: new session: %w", err)
	}
	return &Remote{
		name:        cfg.Name,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		client:      s3.New(sess),
		uploader:    s3manager.NewUploader(sess),
		downloader:  s3manager.NewDownloader(sess),
		pushEnabled: cfg.PushEnabled,
		pullEnabled: cfg.PullEnabled,
	}, nil
}

func (r *Remote) Name() string      { return r.name }
func (r *Remote) PushEnabled() bool { return r.pushEnabled }
func (r *Remote) PullEnabled() bool { return r.pullEnabled }

func (r *Remote) blobKey(dg cas.Digest) string {
	return fmt.Sprintf("%sblobs/%s/%s", r.prefix, dg.Hash.Algorithm(), dg.Hash.Encoded())
}

func (r *Remote) indexKey(urn string) string {
	return r.prefix + "index/" + urn
}

// HasBlob implements artifact.Remote.
func (r *Remote) HasBlob(ctx context.Context, dg cas.Digest) (bool, error) {
	_, err := r.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.blobKey(dg)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, classify(r.name, err)
}

// GetBlob implements artifact.Remote.
func (r *Remote) GetBlob(ctx context.Context, dg cas.Digest) ([]byte, error) {
	buf := &aws.WriteAtBuffer{}
	_, err := r.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.blobKey(dg)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &artifact.RemoteError{Remote: r.name, Kind: artifact.NotFound, Err: err}
		}
		return nil, classify(r.name, err)
	}
	return buf.Bytes(), nil
}

// PutBlob implements artifact.Remote.
func (r *Remote) PutBlob(ctx context.Context, dg cas.Digest, content []byte) error {
	_, err := r.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.blobKey(dg)),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return classify(r.name, err)
	}
	return nil
}

// HasURN implements artifact.Remote: an index-only lookup that never
// fetches blob content.
func (r *Remote) HasURN(ctx context.Context, urn string) (cas.Digest, bool, error) {
	out, err := r.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.indexKey(urn)),
	})
	if err != nil {
		if isNotFound(err) {
			return cas.Digest{}, false, nil
		}
		return cas.Digest{}, false, classify(r.name, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return cas.Digest{}, false, classify(r.name, err)
	}
	dg, err := cas.ParseRefContent(string(raw))
	if err != nil {
		return cas.Digest{}, false, classify(r.name, err)
	}
	return dg, true, nil
}

// PutURN implements artifact.Remote.
func (r *Remote) PutURN(ctx context.Context, urn string, dg cas.Digest) error {
	_, err := r.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.indexKey(urn)),
		Body:   bytes.NewReader([]byte(dg.String())),
	})
	if err != nil {
		return classify(r.name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

func classify(name string, err error) error {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return &artifact.RemoteError{Remote: name, Kind: artifact.Other, Err: err}
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return &artifact.RemoteError{Remote: name, Kind: artifact.NotFound, Err: err}
	case "RequestTimeout", "RequestTimeTooSkewed", "ServiceUnavailable", "SlowDown":
		return &artifact.RemoteError{Remote: name, Kind: artifact.Unavailable, Err: err}
	case "AccessDenied":
		return &artifact.RemoteError{Remote: name, Kind: artifact.PermissionDenied, Err: err}
	case "QuotaExceededException", "EntityTooLarge":
		return &artifact.RemoteError{Remote: name, Kind: artifact.CacheTooFull, Err: err}
	default:
		return &artifact.RemoteError{Remote: name, Kind: artifact.Other, Err: err}
	}
}
