package workflow

import "fmt"

// State is the closed set of upload workflow states.
type State int

const (
	Idle State = iota
	ExtractingVideoMetadata
	ExtractingAudioMetadata
	UploadingToVendor
	UploadingToContentStore
	Success
	Failure
)

var stateNames = [...]string{
	Idle:                    "idle",
	ExtractingVideoMetadata: "extractingVideoMetadata",
	ExtractingAudioMetadata: "extractingAudioMetadata",
	UploadingToVendor:       "uploadingToVendor",
	UploadingToContentStore: "uploadingToContentStore",
	Success:                 "success",
	Failure:                 "failure",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", text)
}

// AcceptsSelection reports whether a new file may be selected in this state.
func (s State) AcceptsSelection() bool {
	return s == Idle || s == Failure
}

// busy states own an outstanding asynchronous task.
func (s State) busy() bool {
	switch s {
	case ExtractingVideoMetadata, ExtractingAudioMetadata, UploadingToVendor, UploadingToContentStore:
		return true
	}
	return false
}
