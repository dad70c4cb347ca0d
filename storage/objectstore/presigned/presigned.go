package presigned

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/media"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

const (
	FieldSecret = "secret"

	OperationPut    = "put"
	OperationDelete = "delete"
)

// Request is the body accepted by the credential endpoint.
type Request struct {
	ContentType string `json:"contentType"`
	FileName    string `json:"fileName"`
	Secret      string `json:"secret"`
	Operation   string `json:"operation,omitempty"`
	Key         string `json:"key,omitempty"`
}

// Descriptor tells the client how to perform one presigned request.
type Descriptor struct {
	URL       string              `json:"url"`
	Method    string              `json:"method"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Key       string              `json:"key"`
	Bucket    string              `json:"bucket,omitempty"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Adapter asks a credential endpoint for presigned requests and performs them over plain HTTP.
type Adapter struct {
	endpoint string
	client   *http.Client
}

func NewAdapter(cfg *config.PresignedVendorStrategy, client *http.Client) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("presigned vendor config is nil")
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Adapter{endpoint: cfg.Endpoint, client: client}, nil
}

func (a *Adapter) Describe() vendor.Capabilities {
	return vendor.Capabilities{
		Name:              "presigned",
		Title:             "Presigned upload",
		AcceptedMIMETypes: vendor.DefaultMIMETypes,
		SupportsProgress:  true,
		CredentialFields: []vendor.CredentialField{
			{Name: FieldSecret, Label: "Upload secret", Type: "secret"},
		},
	}
}

func (a *Adapter) UploadFile(ctx context.Context, file *media.File, fileName string, creds vendor.Credentials, onProgress func(int), onSuccess func(*vendor.StoredFile), onError func(error)) vendor.CancelFunc {
	return vendor.Start(ctx, func(ctx context.Context, progress func(int)) (*vendor.StoredFile, error) {
		if err := vendor.ValidateCredentials(a.Describe(), creds); err != nil {
			return nil, err
		}

		desc, err := a.describe(ctx, Request{
			ContentType: file.MIMEType,
			FileName:    fileName,
			Secret:      creds.Get(FieldSecret),
			Operation:   OperationPut,
		})
		if err != nil {
			return nil, err
		}

		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()

		progress(0)
		req, err := http.NewRequestWithContext(ctx, methodOr(desc.Method, http.MethodPut), desc.URL, vendor.NewProgressReader(f, file.Size, progress))
		if err != nil {
			return nil, err
		}
		req.ContentLength = file.Size
		applyHeaders(req, desc.Headers)
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", file.MIMEType)
		}

		res, err := a.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("presigned upload failed: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode/100 != 2 {
			return nil, fmt.Errorf("presigned upload failed: %s", statusMessage(res))
		}

		return &vendor.StoredFile{
			Vendor:      "presigned",
			Key:         desc.Key,
			URL:         objectURL(desc.URL),
			Bucket:      desc.Bucket,
			Size:        file.Size,
			ContentType: file.MIMEType,
			ETag:        strings.Trim(res.Header.Get("ETag"), `"`),
		}, nil
	}, onProgress, onSuccess, onError)
}

func (a *Adapter) DeleteFile(ctx context.Context, stored *vendor.StoredFile, creds vendor.Credentials) error {
	if stored == nil || stored.Key == "" {
		return fmt.Errorf("stored file key is required")
	}
	if err := vendor.ValidateCredentials(a.Describe(), creds); err != nil {
		return err
	}

	desc, err := a.describe(ctx, Request{
		ContentType: stored.ContentType,
		FileName:    stored.Key,
		Secret:      creds.Get(FieldSecret),
		Operation:   OperationDelete,
		Key:         stored.Key,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, methodOr(desc.Method, http.MethodDelete), desc.URL, nil)
	if err != nil {
		return err
	}
	applyHeaders(req, desc.Headers)

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("presigned delete failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("presigned delete failed: %s", statusMessage(res))
	}

	return nil
}

func (a *Adapter) describe(ctx context.Context, body Request) (*Descriptor, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credential request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential request failed: %s", statusMessage(res))
	}

	var desc Descriptor
	if err := json.NewDecoder(res.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("invalid credential response: %w", err)
	}
	if desc.URL == "" {
		return nil, fmt.Errorf("invalid credential response: missing url")
	}

	return &desc, nil
}

func applyHeaders(req *http.Request, headers map[string][]string) {
	for name, values := range headers {
		// net/http sets Host from the URL itself
		if strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
}

func methodOr(method, fallback string) string {
	if method == "" {
		return fallback
	}
	return strings.ToUpper(method)
}

// objectURL strips the signature query from a presigned URL.
func objectURL(presignedURL string) string {
	if i := strings.IndexByte(presignedURL, '?'); i >= 0 {
		return presignedURL[:i]
	}
	return presignedURL
}

func statusMessage(res *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return res.Status
	}
	return fmt.Sprintf("%s: %s", res.Status, msg)
}
