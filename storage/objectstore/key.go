package vendor

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

// ObjectKey builds a storage key for fileName from pattern. The base name is slugged so keys
// are URL safe; names that slug to nothing fall back to a UUID.
func ObjectKey(pattern *storageutil.PathPattern, fileName string, now time.Time) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	base := slug.Make(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	if base == "" {
		base = uuid.NewString()
	}

	return pattern.Generate(base, now, ext)
}
