package workflow

import (
	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

type EventKind int

const (
	KindFileSelected EventKind = iota
	KindCancelInput
	KindVideoExtracted
	KindAudioExtracted
	KindVendorProgress
	KindVendorSucceeded
	KindVendorFailed
	KindRegistrationSucceeded
	KindRegistrationFailed
	KindRetry
	KindReset
)

var eventNames = [...]string{
	KindFileSelected:          "fileSelected",
	KindCancelInput:           "cancelInput",
	KindVideoExtracted:        "videoExtracted",
	KindAudioExtracted:        "audioExtracted",
	KindVendorProgress:        "vendorProgress",
	KindVendorSucceeded:       "vendorSucceeded",
	KindVendorFailed:          "vendorFailed",
	KindRegistrationSucceeded: "registrationSucceeded",
	KindRegistrationFailed:    "registrationFailed",
	KindRetry:                 "retry",
	KindReset:                 "reset",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is the closed set of inputs to the workflow.
type Event interface {
	Kind() EventKind
}

// FileSelected carries a new payload plus optional record details.
type FileSelected struct {
	File        *media.File
	Title       string
	Description string
}

type CancelInput struct{}

// VideoExtracted completes video extraction. Err set means proceed without a preview.
type VideoExtracted struct {
	Preview *media.VideoPreview
	Err     error
}

// AudioExtracted completes audio extraction. Err set means proceed without metadata.
type AudioExtracted struct {
	Metadata *media.Metadata
	Err      error
}

type VendorProgress struct {
	Percent int
}

type VendorSucceeded struct {
	Stored *vendor.StoredFile
}

type VendorFailed struct {
	Err error
}

type RegistrationSucceeded struct {
	Record *content.Record
}

type RegistrationFailed struct {
	Err error
}

type Retry struct{}

type Reset struct{}

func (FileSelected) Kind() EventKind          { return KindFileSelected }
func (CancelInput) Kind() EventKind           { return KindCancelInput }
func (VideoExtracted) Kind() EventKind        { return KindVideoExtracted }
func (AudioExtracted) Kind() EventKind        { return KindAudioExtracted }
func (VendorProgress) Kind() EventKind        { return KindVendorProgress }
func (VendorSucceeded) Kind() EventKind       { return KindVendorSucceeded }
func (VendorFailed) Kind() EventKind          { return KindVendorFailed }
func (RegistrationSucceeded) Kind() EventKind { return KindRegistrationSucceeded }
func (RegistrationFailed) Kind() EventKind    { return KindRegistrationFailed }
func (Retry) Kind() EventKind                 { return KindRetry }
func (Reset) Kind() EventKind                 { return KindReset }
