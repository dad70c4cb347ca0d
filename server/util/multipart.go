package util

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/server/resp"
)

const maxFieldSize = 64 << 10

var (
	ErrFileTooLarge = errors.New("file exceeds the configured size limit")
	ErrMissingFile  = errors.New("no file part in request")
)

// MultipartUpload is a streamed multipart body whose file part has been saved to disk.
type MultipartUpload struct {
	File   *media.File
	Values map[string]string
}

// SaveMultipartFile streams the multipart body, writing the part named field to a new file in
// tempDir. Other parts are kept as plain values. On failure an error response is written and
// nothing is left on disk.
func SaveMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxFileSize int64, tempDir string) (*MultipartUpload, bool) {
	if maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+maxFieldSize)
	}

	upload, err := readMultipart(r, field, maxFileSize, tempDir)
	if err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.Is(err, ErrFileTooLarge), errors.As(err, &maxBytes):
			resp.WriteRequestTooLarge(w, fmt.Sprintf("file must not exceed %d bytes", maxFileSize))
		case errors.Is(err, ErrMissingFile):
			resp.WriteInvalidRequest(w, fmt.Sprintf("a %q file part is required", field))
		default:
			resp.WriteInvalidRequest(w, fmt.Sprintf("could not read multipart body: %v", err))
		}
		return nil, false
	}

	return upload, true
}

func readMultipart(r *http.Request, field string, maxFileSize int64, tempDir string) (*MultipartUpload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	upload := &MultipartUpload{Values: map[string]string{}}
	cleanup := func() {
		if upload.File != nil {
			_ = upload.File.Remove()
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanup()
			return nil, err
		}

		name := part.FormName()
		switch {
		case name == field && part.FileName() != "" && upload.File == nil:
			file, err := saveTemp(part, maxFileSize, tempDir)
			if err != nil {
				part.Close()
				cleanup()
				return nil, err
			}
			file.Name = filepath.Base(part.FileName())
			file.MIMEType = media.DetectMIME(file.Path, part.Header.Get("Content-Type"))
			upload.File = file
		case name != "" && part.FileName() == "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				part.Close()
				cleanup()
				return nil, err
			}
			upload.Values[name] = strings.TrimSpace(string(value))
		}
		part.Close()
	}

	if upload.File == nil {
		return nil, ErrMissingFile
	}

	return upload, nil
}

func saveTemp(src io.Reader, maxFileSize int64, tempDir string) (*media.File, error) {
	out, err := os.CreateTemp(tempDir, "mediadrop-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	reader := src
	if maxFileSize > 0 {
		reader = io.LimitReader(src, maxFileSize+1)
	}

	n, err := io.Copy(out, reader)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && maxFileSize > 0 && n > maxFileSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(out.Name())
		return nil, err
	}

	return &media.File{Size: n, Path: out.Name()}, nil
}
