package media

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMIME returns the declared media type unless it is missing or generic, in which case
// the file header is sniffed.
func DetectMIME(path, declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}

	mt, _, _ := strings.Cut(detected.String(), ";")
	return mt
}
