package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/media"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

const (
	FieldAccessKeyID     = "access_key_id"
	FieldSecretAccessKey = "secret_access_key"
	FieldBucket          = "bucket"
)

type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var newMinioClient = func(endpoint string, opts *minio.Options) (s3Client, error) {
	return minio.New(endpoint, opts)
}

// Adapter uploads to S3 or any compatible service (R2, Backblaze, MinIO). Keys and bucket are
// supplied per call through vendor.Credentials, so one adapter can serve several accounts.
type Adapter struct {
	publicBase     string
	forcePathStyle bool
	endpointHost   string
	secure         bool
	region         string
	pattern        *storageutil.PathPattern
	now            func() time.Time
}

func NewAdapter(cfg *config.S3VendorStrategy) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 vendor config is nil")
	}

	region := strings.TrimSpace(cfg.Region)
	clientRegion := region
	if strings.EqualFold(region, "auto") {
		clientRegion = ""
	}

	endpointHost := strings.TrimSpace(cfg.Endpoint)
	if endpointHost == "" {
		if clientRegion == "" {
			endpointHost = "s3.amazonaws.com"
		} else {
			endpointHost = fmt.Sprintf("s3.%s.amazonaws.com", clientRegion)
		}
	} else if parsed, err := url.Parse(endpointHost); err == nil && parsed.Host != "" {
		endpointHost = parsed.Host
	}

	publicBase := ""
	if cfg.PublicUrl != "" {
		publicBase = storageutil.NormalizeBaseURL(cfg.PublicUrl)
	}

	return &Adapter{
		publicBase:     publicBase,
		forcePathStyle: cfg.ForcePathStyle,
		endpointHost:   endpointHost,
		secure:         !cfg.DisableSSL,
		region:         region,
		pattern:        storageutil.PatternOrDefault(cfg.PathPattern),
		now:            time.Now,
	}, nil
}

func (a *Adapter) Describe() vendor.Capabilities {
	return vendor.Capabilities{
		Name:              "s3",
		Title:             "Amazon S3",
		AcceptedMIMETypes: vendor.DefaultMIMETypes,
		SupportsProgress:  true,
		CredentialFields: []vendor.CredentialField{
			{Name: FieldAccessKeyID, Label: "Access key ID", Type: "string"},
			{Name: FieldSecretAccessKey, Label: "Secret access key", Type: "secret"},
			{Name: FieldBucket, Label: "Bucket", Type: "string"},
		},
	}
}

func (a *Adapter) client(creds vendor.Credentials) (s3Client, error) {
	if err := vendor.ValidateCredentials(a.Describe(), creds); err != nil {
		return nil, err
	}

	lookup := minio.BucketLookupAuto
	if a.forcePathStyle {
		lookup = minio.BucketLookupPath
	}

	region := a.region
	if strings.EqualFold(region, "auto") {
		region = ""
	}

	client, err := newMinioClient(a.endpointHost, &minio.Options{
		Creds:        credentials.NewStaticV4(creds.Get(FieldAccessKeyID), creds.Get(FieldSecretAccessKey), ""),
		Secure:       a.secure,
		Region:       region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return client, nil
}

func (a *Adapter) UploadFile(ctx context.Context, file *media.File, fileName string, creds vendor.Credentials, onProgress func(int), onSuccess func(*vendor.StoredFile), onError func(error)) vendor.CancelFunc {
	return vendor.Start(ctx, func(ctx context.Context, progress func(int)) (*vendor.StoredFile, error) {
		client, err := a.client(creds)
		if err != nil {
			return nil, err
		}

		bucket := creds.Get(FieldBucket)
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to verify s3 bucket %q: %w", bucket, err)
		}
		if !exists {
			return nil, fmt.Errorf("s3 bucket %q does not exist or is not accessible", bucket)
		}

		key, err := vendor.ObjectKey(a.pattern, fileName, a.now())
		if err != nil {
			return nil, err
		}

		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()

		progress(0)
		opts := minio.PutObjectOptions{ContentType: file.MIMEType}
		info, err := client.PutObject(ctx, bucket, key, vendor.NewProgressReader(f, file.Size, progress), file.Size, opts)
		if err != nil {
			return nil, fmt.Errorf("upload to s3 failed: %w", err)
		}

		return &vendor.StoredFile{
			Vendor:      "s3",
			Key:         key,
			URL:         a.objectURL(bucket, key),
			Bucket:      bucket,
			Size:        file.Size,
			ContentType: file.MIMEType,
			ETag:        info.ETag,
		}, nil
	}, onProgress, onSuccess, onError)
}

func (a *Adapter) DeleteFile(ctx context.Context, stored *vendor.StoredFile, creds vendor.Credentials) error {
	if stored == nil || stored.Key == "" {
		return fmt.Errorf("stored file key is required")
	}

	client, err := a.client(creds)
	if err != nil {
		return err
	}

	bucket := stored.Bucket
	if bucket == "" {
		bucket = creds.Get(FieldBucket)
	}

	if err := client.RemoveObject(ctx, bucket, stored.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete from s3 failed: %w", err)
	}

	return nil
}

func (a *Adapter) objectURL(bucket, key string) string {
	if a.publicBase != "" {
		return a.publicBase + key
	}

	scheme := "https"
	if !a.secure {
		scheme = "http"
	}

	if a.forcePathStyle {
		return fmt.Sprintf("%s://%s/%s/%s", scheme, a.endpointHost, bucket, key)
	}

	return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, a.endpointHost, key)
}
