package common

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/session"
	"github.com/indieinfra/mediadrop/server/util"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	"github.com/indieinfra/mediadrop/workflow"
)

// Logger returns the request logger from context, or a fresh one.
func Logger(r *http.Request) *util.RequestLogger {
	if rl := util.FromContext(r.Context()); rl != nil {
		return rl
	}
	return util.WithRequest(log.Default(), r, "")
}

// LogAndWriteError logs an error with request context and maps known conditions to client responses.
func LogAndWriteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	Logger(r).Errorf("%s failed: %v", op, err)

	switch {
	case errors.Is(err, content.ErrNotFound):
		resp.WriteNotFound(w, "asset not found")
	case errors.Is(err, session.ErrNotFound):
		resp.WriteNotFound(w, "upload session not found")
	case errors.Is(err, workflow.ErrClosed):
		resp.WriteGone(w, "upload session is closed")
	case errors.Is(err, vendor.ErrMissingCredential):
		resp.WriteInternalServerError(w, "storage vendor is not fully configured")
	default:
		resp.WriteInternalServerError(w, fmt.Sprintf("%s failed", op))
	}
}
