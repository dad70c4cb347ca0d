package credentials

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/server/handler/common"
	"github.com/indieinfra/mediadrop/server/metrics"
	"github.com/indieinfra/mediadrop/server/resp"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	"github.com/indieinfra/mediadrop/storage/objectstore/presigned"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

const maxBodySize = 16 << 10

// Presigner is the part of *s3.PresignClient the endpoint uses.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadAWSConfig = awsconfig.LoadDefaultConfig

// NewPresigner builds an S3 presign client from the credential endpoint settings. Without
// static keys the default AWS credential chain is used.
func NewPresigner(ctx context.Context, cfg *config.Credentials) (*s3.PresignClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyId != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return s3.NewPresignClient(client), nil
}

// Handler issues presigned upload and delete requests to callers that know the shared secret.
type Handler struct {
	cfg       *config.Credentials
	presigner Presigner
	pattern   *storageutil.PathPattern
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(cfg *config.Credentials, presigner Presigner, m *metrics.Metrics) *Handler {
	expires := cfg.ExpiresIn
	if expires <= 0 {
		expires = config.DefaultPresignExpiry
	}

	c := *cfg
	c.ExpiresIn = expires

	return &Handler{
		cfg:       &c,
		presigner: presigner,
		pattern:   storageutil.PatternOrDefault(cfg.KeyPattern),
		metrics:   m,
		now:       time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() { h.metrics.CredentialRequest(status) }()

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, http.StatusText(status), status)
		return
	}

	var req presigned.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		status = http.StatusBadRequest
		resp.WriteInvalidRequest(w, "malformed request body")
		return
	}

	if h.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.cfg.Secret)) != 1 {
		status = http.StatusUnauthorized
		resp.WriteUnauthorized(w, "invalid secret")
		return
	}

	var (
		desc *presigned.Descriptor
		err  error
	)
	switch strings.ToLower(req.Operation) {
	case "", presigned.OperationPut:
		if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.ContentType) == "" {
			status = http.StatusBadRequest
			resp.WriteInvalidRequest(w, "contentType and fileName are required")
			return
		}
		desc, err = h.presignPut(r.Context(), req)
	case presigned.OperationDelete:
		key := strings.TrimPrefix(req.Key, "/")
		if key == "" || path.Clean(key) != key || strings.HasPrefix(key, "../") {
			status = http.StatusBadRequest
			resp.WriteInvalidRequest(w, "a valid key is required")
			return
		}
		desc, err = h.presignDelete(r.Context(), key)
	default:
		status = http.StatusBadRequest
		resp.WriteInvalidRequest(w, fmt.Sprintf("unknown operation %q", req.Operation))
		return
	}

	if err != nil {
		status = http.StatusInternalServerError
		common.LogAndWriteError(w, r, "presign", err)
		return
	}

	resp.WriteOK(w, desc)
}

func (h *Handler) presignPut(ctx context.Context, req presigned.Request) (*presigned.Descriptor, error) {
	now := h.now()
	key, err := vendor.ObjectKey(h.pattern, req.FileName, now)
	if err != nil {
		return nil, err
	}

	signed, err := h.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, h.expires)
	if err != nil {
		return nil, err
	}

	return h.descriptor(signed, key, now), nil
}

func (h *Handler) presignDelete(ctx context.Context, key string) (*presigned.Descriptor, error) {
	now := h.now()
	signed, err := h.presigner.PresignDeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.cfg.Bucket),
		Key:    aws.String(key),
	}, h.expires)
	if err != nil {
		return nil, err
	}

	return h.descriptor(signed, key, now), nil
}

func (h *Handler) expires(o *s3.PresignOptions) {
	o.Expires = h.cfg.ExpiresIn
}

func (h *Handler) descriptor(signed *v4.PresignedHTTPRequest, key string, now time.Time) *presigned.Descriptor {
	return &presigned.Descriptor{
		URL:       signed.URL,
		Method:    signed.Method,
		Headers:   map[string][]string(signed.SignedHeader),
		Key:       key,
		Bucket:    h.cfg.Bucket,
		ExpiresAt: now.Add(h.cfg.ExpiresIn).UTC(),
	}
}
