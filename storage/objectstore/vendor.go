package vendor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/indieinfra/mediadrop/media"
)

// ErrMissingCredential is wrapped by ValidateCredentials for every absent required field.
var ErrMissingCredential = errors.New("missing credential")

// CancelFunc aborts an in-flight upload. It is safe to call more than once.
type CancelFunc func()

type CredentialField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Capabilities is what a vendor declares about itself.
type Capabilities struct {
	Name              string            `json:"name"`
	Title             string            `json:"title"`
	AcceptedMIMETypes []string          `json:"acceptedMimeTypes"`
	SupportsProgress  bool              `json:"supportsProgress"`
	CredentialFields  []CredentialField `json:"credentialFields"`
}

// Credentials are the per-vendor secrets supplied with every call, keyed by field name.
type Credentials map[string]string

func (c Credentials) Get(name string) string {
	return strings.TrimSpace(c[name])
}

// StoredFile identifies a binary durably held by a vendor.
type StoredFile struct {
	Vendor      string `json:"vendor"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	Bucket      string `json:"bucket,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ETag        string `json:"etag,omitempty"`
}

// Adapter is implemented once per storage backend.
type Adapter interface {
	Describe() Capabilities

	// UploadFile starts the transfer and returns immediately. Exactly one of onSuccess or
	// onError is called unless the returned CancelFunc runs first, after which none is.
	// onProgress receives non-decreasing integer percentages in 0..100.
	UploadFile(ctx context.Context, file *media.File, fileName string, creds Credentials, onProgress func(int), onSuccess func(*StoredFile), onError func(error)) CancelFunc

	DeleteFile(ctx context.Context, stored *StoredFile, creds Credentials) error
}

// DefaultMIMETypes are the patterns every bundled vendor accepts.
var DefaultMIMETypes = []string{"video/*", "audio/*"}

// Accepts reports whether mime matches one of the declared patterns.
func Accepts(caps Capabilities, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, pattern := range caps.AcceptedMIMETypes {
		pattern = strings.ToLower(pattern)
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(mime, prefix+"/") {
				return true
			}
			continue
		}
		if mime == pattern {
			return true
		}
	}
	return false
}

// ValidateCredentials checks that every declared credential field has a value.
func ValidateCredentials(caps Capabilities, creds Credentials) error {
	var missing []error
	for _, field := range caps.CredentialFields {
		if creds.Get(field.Name) == "" {
			missing = append(missing, fmt.Errorf("%w: %s (%s)", ErrMissingCredential, field.Name, field.Label))
		}
	}
	return errors.Join(missing...)
}
