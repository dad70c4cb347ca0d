package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/media"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

// Adapter stores uploaded media in a local directory served under a public URL.
type Adapter struct {
	basePath  string
	publicURL string
	pattern   *storageutil.PathPattern
	now       func() time.Time
	mu        sync.Mutex
}

func NewAdapter(cfg *config.FilesystemVendorStrategy) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem vendor config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Adapter{
		basePath:  cfg.Path,
		publicURL: storageutil.NormalizeBaseURL(cfg.PublicUrl),
		pattern:   storageutil.PatternOrDefault(cfg.PathPattern),
		now:       time.Now,
	}, nil
}

func (a *Adapter) Describe() vendor.Capabilities {
	return vendor.Capabilities{
		Name:              "filesystem",
		Title:             "Local filesystem",
		AcceptedMIMETypes: vendor.DefaultMIMETypes,
		SupportsProgress:  true,
		CredentialFields:  []vendor.CredentialField{},
	}
}

func (a *Adapter) UploadFile(ctx context.Context, file *media.File, fileName string, creds vendor.Credentials, onProgress func(int), onSuccess func(*vendor.StoredFile), onError func(error)) vendor.CancelFunc {
	return vendor.Start(ctx, func(ctx context.Context, progress func(int)) (*vendor.StoredFile, error) {
		relPath, absPath, err := a.reserve(fileName)
		if err != nil {
			return nil, err
		}

		in, err := file.Open()
		if err != nil {
			_ = os.Remove(absPath)
			return nil, err
		}
		defer in.Close()

		out, err := os.OpenFile(absPath, os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			_ = os.Remove(absPath)
			return nil, fmt.Errorf("failed to create file: %w", err)
		}

		progress(0)
		_, err = io.Copy(out, &ctxReader{ctx: ctx, r: vendor.NewProgressReader(in, file.Size, progress)})
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(absPath)
			return nil, fmt.Errorf("failed to write file: %w", err)
		}

		key := filepath.ToSlash(relPath)
		return &vendor.StoredFile{
			Vendor:      "filesystem",
			Key:         key,
			URL:         storageutil.PublicURL(a.publicURL, key),
			Size:        file.Size,
			ContentType: file.MIMEType,
		}, nil
	}, onProgress, onSuccess, onError)
}

// reserve picks a free path for fileName and creates it empty so concurrent uploads never collide.
func (a *Adapter) reserve(fileName string) (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < 3; attempt++ {
		name := fileName
		if attempt > 0 {
			ext := filepath.Ext(fileName)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(fileName, ext), attempt, ext)
		}

		key, err := vendor.ObjectKey(a.pattern, name, a.now())
		if err != nil {
			return "", "", fmt.Errorf("failed to generate path: %w", err)
		}

		relPath := filepath.FromSlash(key)
		absPath := filepath.Join(a.basePath, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return "", "", fmt.Errorf("failed to create directory: %w", err)
		}

		f, err := os.OpenFile(absPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to create file: %w", err)
		}
		_ = f.Close()

		return relPath, absPath, nil
	}

	return "", "", fmt.Errorf("could not find a free path for %q", fileName)
}

func (a *Adapter) DeleteFile(ctx context.Context, stored *vendor.StoredFile, creds vendor.Credentials) error {
	if stored == nil || stored.Key == "" {
		return fmt.Errorf("stored file key is required")
	}

	relPath := filepath.FromSlash(stored.Key)
	if !filepath.IsLocal(relPath) {
		return fmt.Errorf("key %q escapes the media directory", stored.Key)
	}

	if err := os.Remove(filepath.Join(a.basePath, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
