package workflow

import (
	"encoding/json"
	"errors"

	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

// Context is owned by one workflow and replaced wholesale by every transition. Values
// reachable from it are never mutated after they are stored, so snapshots may share them.
type Context struct {
	Retries              int                `json:"retries"`
	VendorUploadProgress int                `json:"vendorUploadProgress"`
	File                 *media.File        `json:"file,omitempty"`
	FileMetadata         *media.Metadata    `json:"fileMetadata,omitempty"`
	VendorUpload         *vendor.StoredFile `json:"vendorUpload,omitempty"`
	Registration         *content.Record    `json:"registration,omitempty"`
	VideoScreenshot      []byte             `json:"videoScreenshot,omitempty"`
	Error                *Error             `json:"error,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Error is the user-facing failure description kept while in Failure.
type Error struct {
	Cause    error
	Title    string
	Subtitle string
}

func (e *Error) Error() string {
	return e.Title + ": " + e.Subtitle
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Cause != nil {
		cause = e.Cause.Error()
	}
	return json.Marshal(struct {
		Cause    string `json:"cause,omitempty"`
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	}{cause, e.Title, e.Subtitle})
}

// UnmarshalJSON restores a decoded error; the cause keeps only its message.
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Cause    string `json:"cause"`
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Error{Title: raw.Title, Subtitle: raw.Subtitle}
	if raw.Cause != "" {
		e.Cause = errors.New(raw.Cause)
	}
	return nil
}

func hasUploadedToVendor(c Context) bool {
	return c.VendorUpload != nil
}

// canRetry treats a non-positive limit as unbounded.
func canRetry(c Context, maxRetries int) bool {
	return maxRetries <= 0 || c.Retries < maxRetries
}

func (c Context) registration() *content.Registration {
	reg := &content.Registration{
		Metadata:    c.FileMetadata,
		Screenshot:  c.VideoScreenshot,
		Vendor:      c.VendorUpload,
		Title:       c.Title,
		Description: c.Description,
	}
	if c.File != nil {
		reg.File = *c.File
	}
	return reg
}
