package get

import (
	"net/http"

	"github.com/indieinfra/mediadrop/server/handler/common"
	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/state"
)

// HandleSource returns the record of a registered asset, addressed either by path or by the
// id query parameter.
func HandleSource(st *state.MediadropState, w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		resp.WriteInvalidRequest(w, "source requires an id")
		return
	}

	rec, err := st.Registrar.Get(r.Context(), id)
	if err != nil {
		common.LogAndWriteError(w, r, "get asset", err)
		return
	}

	resp.WriteOK(w, rec)
}
