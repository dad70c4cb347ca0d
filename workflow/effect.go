package workflow

import (
	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/storage/content"
)

// Effect is a side effect requested by a transition and carried out by the Machine.
type Effect interface {
	effect()
}

type ExtractVideo struct {
	File *media.File
}

type ExtractAudio struct {
	File *media.File
}

type UploadToVendor struct {
	File *media.File
}

type RegisterAsset struct {
	Registration *content.Registration
}

// ReleaseInFlight aborts the task owned by From, which is being left.
type ReleaseInFlight struct {
	From State
}

// DiscardFile removes a payload no longer referenced by the context.
type DiscardFile struct {
	File *media.File
}

// NotifyRejected reports a selection refused before any state change.
type NotifyRejected struct {
	MIMEType string
	Message  string
}

// NotifyRetryExhausted reports a retry refused because the limit was reached.
type NotifyRetryExhausted struct {
	Retries    int
	MaxRetries int
}

func (ExtractVideo) effect()         {}
func (ExtractAudio) effect()         {}
func (UploadToVendor) effect()       {}
func (RegisterAsset) effect()        {}
func (ReleaseInFlight) effect()      {}
func (DiscardFile) effect()          {}
func (NotifyRejected) effect()       {}
func (NotifyRetryExhausted) effect() {}
