package media

import (
	"context"
	"errors"
	"os"
	"strings"
)

var (
	// ErrNotAudio is returned when audio extraction is asked to handle a non-audio file.
	ErrNotAudio = errors.New("file is not audio")
	// ErrNoVideoStream indicates the probe found no decodable video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrNoFrame indicates no still frame could be captured.
	ErrNoFrame = errors.New("no frame available")
)

// File is a selected payload stored on local disk for the lifetime of an upload session.
type File struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Path     string `json:"-"`
}

func (f *File) IsVideo() bool {
	return f != nil && strings.HasPrefix(f.mediaType(), "video/")
}

func (f *File) IsAudio() bool {
	return f != nil && strings.HasPrefix(f.mediaType(), "audio/")
}

func (f *File) mediaType() string {
	return strings.ToLower(strings.TrimSpace(f.MIMEType))
}

// Open returns a reader over the file contents.
func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Remove deletes the backing file. A missing file is not an error.
func (f *File) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Waveform holds normalized (0..1) per-bucket peak and RMS amplitudes.
type Waveform struct {
	Peaks []float64 `json:"peaks"`
	RMS   []float64 `json:"rms"`
}

// Metadata is the extracted description of a media file. Duration is in seconds.
type Metadata struct {
	Duration   float64     `json:"duration"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Waveform   *Waveform   `json:"waveform,omitempty"`
}

// VideoPreview is the result of video extraction: a JPEG still plus metadata.
type VideoPreview struct {
	Screenshot []byte
	Metadata   Metadata
}

// Extractor derives previews and metadata from media files. Both operations are best-effort
// from the caller's point of view; errors are reported but never block an upload.
type Extractor interface {
	ExtractVideoPreview(ctx context.Context, file *File) (*VideoPreview, error)
	ExtractAudioMetadata(ctx context.Context, file *File) (*Metadata, error)
}
