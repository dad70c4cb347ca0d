package workflow

import (
	"fmt"
	"strings"
)

const (
	vendorFailedTitle       = "Upload to storage vendor failed"
	vendorCredentialsHint   = "Please check the vendor credentials in the plugin settings"
	registrationFailedTitle = "Saving the asset failed"
	registrationRetryHint   = "Please try again or contact the developer"
	registrationNetworkHint = "Please check your network connection and try again"
)

// Policy holds the tunables of the transition table. The zero value allows unbounded retries
// and accepts every video and audio type.
type Policy struct {
	// MaxRetries caps user-initiated retries per attempt sequence; zero or less means no cap.
	MaxRetries int

	// Accept optionally narrows the selectable MIME types further, usually to what the
	// configured vendor declares.
	Accept func(mimeType string) bool
}

type handler func(p Policy, s State, c Context, ev Event) (State, Context, []Effect)

// table maps each state to the events it reacts to. Events missing from a state's row leave
// the workflow untouched.
var table = map[State]map[EventKind]handler{
	Idle: {
		KindFileSelected: selectFile,
		KindCancelInput:  cancelInput,
	},
	ExtractingVideoMetadata: {
		KindVideoExtracted: videoExtracted,
		KindCancelInput:    cancelInput,
	},
	ExtractingAudioMetadata: {
		KindAudioExtracted: audioExtracted,
		KindCancelInput:    cancelInput,
	},
	UploadingToVendor: {
		KindVendorProgress:  vendorProgress,
		KindVendorSucceeded: vendorSucceeded,
		KindVendorFailed:    vendorFailed,
		KindCancelInput:     cancelInput,
	},
	UploadingToContentStore: {
		KindRegistrationSucceeded: registrationSucceeded,
		KindRegistrationFailed:    registrationFailed,
		KindCancelInput:           cancelInput,
	},
	Success: {
		KindReset:       reset,
		KindCancelInput: cancelInput,
	},
	Failure: {
		KindFileSelected: selectFile,
		KindRetry:        retry,
		KindCancelInput:  cancelInput,
	},
}

// Handles reports whether s has a transition for ev.
func Handles(s State, ev Event) bool {
	if ev == nil {
		return false
	}
	_, ok := table[s][ev.Kind()]
	return ok
}

// Transition is the pure transition function. Events the current state does not handle
// return s and c unchanged with no effects.
func (p Policy) Transition(s State, c Context, ev Event) (State, Context, []Effect) {
	if ev == nil {
		return s, c, nil
	}

	h, ok := table[s][ev.Kind()]
	if !ok {
		return s, c, nil
	}

	return h(p, s, c, ev)
}

func (p Policy) accepts(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.HasPrefix(mimeType, "video/") && !strings.HasPrefix(mimeType, "audio/") {
		return false
	}
	return p.Accept == nil || p.Accept(mimeType)
}

func selectFile(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	sel := ev.(FileSelected)
	if sel.File == nil {
		return s, c, []Effect{NotifyRejected{Message: "No file was selected"}}
	}

	if !p.accepts(sel.File.MIMEType) {
		return s, c, []Effect{NotifyRejected{
			MIMEType: sel.File.MIMEType,
			Message:  fmt.Sprintf("Unsupported file type %q: only video and audio files can be uploaded", sel.File.MIMEType),
		}}
	}

	var effects []Effect
	if c.File != nil && c.File != sel.File && c.File.Path != sel.File.Path {
		effects = append(effects, DiscardFile{File: c.File})
	}

	// A new selection starts a new attempt sequence.
	next := Context{File: sel.File, Title: sel.Title, Description: sel.Description}

	if sel.File.IsVideo() {
		return ExtractingVideoMetadata, next, append(effects, ExtractVideo{File: sel.File})
	}
	return ExtractingAudioMetadata, next, append(effects, ExtractAudio{File: sel.File})
}

func cancelInput(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	var effects []Effect
	if s.busy() {
		effects = append(effects, ReleaseInFlight{From: s})
	}

	c.Error = nil
	c.Registration = nil
	return Idle, c, effects
}

func videoExtracted(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	res := ev.(VideoExtracted)
	if res.Err == nil && res.Preview != nil {
		md := res.Preview.Metadata
		c.FileMetadata = &md
		c.VideoScreenshot = res.Preview.Screenshot
	}
	return enterVendorUpload(c)
}

func audioExtracted(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	res := ev.(AudioExtracted)
	if res.Err == nil && res.Metadata != nil {
		c.FileMetadata = res.Metadata
	}
	return enterVendorUpload(c)
}

func enterVendorUpload(c Context) (State, Context, []Effect) {
	c.VendorUploadProgress = 0
	return UploadingToVendor, c, []Effect{UploadToVendor{File: c.File}}
}

func vendorProgress(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	c.VendorUploadProgress = min(max(ev.(VendorProgress).Percent, 0), 100)
	return s, c, nil
}

func vendorSucceeded(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	c.VendorUpload = ev.(VendorSucceeded).Stored
	c.VendorUploadProgress = 100
	return enterRegistration(c)
}

func enterRegistration(c Context) (State, Context, []Effect) {
	return UploadingToContentStore, c, []Effect{RegisterAsset{Registration: c.registration()}}
}

func vendorFailed(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	err := ev.(VendorFailed).Err
	subtitle := vendorCredentialsHint
	if c.Retries <= 1 {
		subtitle = errorMessage(err)
	}

	c.Error = &Error{Cause: err, Title: vendorFailedTitle, Subtitle: subtitle}
	return Failure, c, nil
}

func registrationSucceeded(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	c.Registration = ev.(RegistrationSucceeded).Record
	return Success, c, nil
}

func registrationFailed(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	subtitle := registrationNetworkHint
	if c.Retries > 0 {
		subtitle = registrationRetryHint
	}

	c.Error = &Error{Cause: ev.(RegistrationFailed).Err, Title: registrationFailedTitle, Subtitle: subtitle}
	return Failure, c, nil
}

func retry(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	if !canRetry(c, p.MaxRetries) {
		return s, c, []Effect{NotifyRetryExhausted{Retries: c.Retries, MaxRetries: p.MaxRetries}}
	}

	c.Retries++
	c.Error = nil

	if hasUploadedToVendor(c) {
		return enterRegistration(c)
	}
	return enterVendorUpload(c)
}

func reset(p Policy, s State, c Context, ev Event) (State, Context, []Effect) {
	var effects []Effect
	if c.File != nil {
		effects = append(effects, DiscardFile{File: c.File})
	}
	return Idle, Context{}, effects
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
