package asset

import (
	"fmt"
	"net/http"

	"github.com/indieinfra/mediadrop/server/handler/common"
	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/state"
)

// HandleDelete removes an asset from the storage vendor and then drops its record. The record
// is kept when the vendor delete fails so the call can be repeated. Assets held by a vendor
// other than the configured one are refused with 409.
func HandleDelete(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			resp.WriteInvalidRequest(w, "an asset id is required")
			return
		}

		rec, err := st.Registrar.Get(r.Context(), id)
		if err != nil {
			common.LogAndWriteError(w, r, "get asset", err)
			return
		}

		if rec.Vendor != nil {
			if name := st.Vendor.Describe().Name; rec.Vendor.Vendor != "" && rec.Vendor.Vendor != name {
				resp.WriteConflict(w, fmt.Sprintf("asset %v is stored by vendor %q, but %q is configured", id, rec.Vendor.Vendor, name))
				return
			}

			if err := st.Vendor.DeleteFile(r.Context(), rec.Vendor, st.Credentials()); err != nil {
				common.LogAndWriteError(w, r, "delete vendor file", err)
				return
			}
		}

		if err := st.Registrar.Delete(r.Context(), id); err != nil {
			common.LogAndWriteError(w, r, "delete asset", err)
			return
		}

		common.Logger(r).Infof("deleted asset %v", id)
		resp.WriteNoContent(w)
	}
}
