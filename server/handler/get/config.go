package get

import (
	"net/http"

	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/state"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

type Config struct {
	UploadEndpoint      string              `json:"upload-endpoint"`
	CredentialsEndpoint string              `json:"credentials-endpoint,omitempty"`
	Vendor              vendor.Capabilities `json:"vendor"`
	MaxFileSize         uint                `json:"max-file-size"`
	MaxRetries          int                 `json:"max-retries"`
}

func HandleConfig(st *state.MediadropState, w http.ResponseWriter, r *http.Request) {
	base := st.Cfg.Server.PublicUrl

	out := Config{
		UploadEndpoint: storageutil.PublicURL(base, "uploads"),
		Vendor:         st.Vendor.Describe(),
		MaxFileSize:    st.Cfg.Server.Limits.MaxFileSize,
		MaxRetries:     st.Cfg.Upload.MaxRetries,
	}
	if st.Cfg.Credentials.Enabled {
		out.CredentialsEndpoint = storageutil.PublicURL(base, "credentials")
	}

	resp.WriteOK(w, out)
}
