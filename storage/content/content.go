package content

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/indieinfra/mediadrop/media"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

// Registrar persists asset records in the host content store.
type Registrar interface {
	// Register stores a new record built from reg and returns it as persisted.
	Register(ctx context.Context, reg *Registration) (*Record, error)

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the record with the given id. Deleting a missing record returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Registration is everything the upload workflow knows about an asset once the vendor holds it.
type Registration struct {
	File        media.File
	Metadata    *media.Metadata
	Screenshot  []byte
	Vendor      *vendor.StoredFile
	Title       string
	Description string
}

type ExternalFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Record is the persisted asset document.
type Record struct {
	ID           string             `json:"_id"`
	CreatedAt    time.Time          `json:"_createdAt"`
	Title        string             `json:"title,omitempty"`
	Description  string             `json:"description,omitempty"`
	ExternalFile *ExternalFile      `json:"externalFile,omitempty"`
	Metadata     *media.Metadata    `json:"metadata,omitempty"`
	Vendor       *vendor.StoredFile `json:"vendor,omitempty"`
	Screenshot   []byte             `json:"screenshot,omitempty"`
}

// NewRecord builds the record for reg. The title falls back to the file name without extension.
func NewRecord(reg *Registration, now time.Time) (*Record, error) {
	if reg == nil {
		return nil, errors.New("registration is nil")
	}
	if reg.Vendor == nil {
		return nil, errors.New("registration has no vendor upload")
	}

	title := strings.TrimSpace(reg.Title)
	if title == "" && reg.File.Name != "" {
		title = strings.TrimSuffix(reg.File.Name, filepath.Ext(reg.File.Name))
	}

	rec := &Record{
		ID:          uuid.NewString(),
		CreatedAt:   now.UTC().Truncate(time.Millisecond),
		Title:       title,
		Description: strings.TrimSpace(reg.Description),
		Metadata:    reg.Metadata,
		Vendor:      reg.Vendor,
		Screenshot:  reg.Screenshot,
	}

	if reg.File.Name != "" {
		rec.ExternalFile = &ExternalFile{Name: reg.File.Name, Size: reg.File.Size}
	}

	return rec, nil
}
