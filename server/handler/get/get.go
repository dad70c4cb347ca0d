package get

import (
	"fmt"
	"net/http"

	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/state"
)

// DispatchGet answers the query endpoint: ?q=config describes the deployment, ?q=source
// returns a registered asset.
func DispatchGet(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch q {
		case "config":
			HandleConfig(st, w, r)
		case "source":
			HandleSource(st, w, r)
		default:
			resp.WriteInvalidRequest(w, fmt.Sprintf("Unknown query: %q", q))
		}
	}
}
