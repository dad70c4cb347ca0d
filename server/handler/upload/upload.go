package upload

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/indieinfra/mediadrop/server/handler/common"
	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/session"
	"github.com/indieinfra/mediadrop/server/state"
	"github.com/indieinfra/mediadrop/server/util"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
	"github.com/indieinfra/mediadrop/workflow"
)

const fileField = "file"

// View is the JSON representation of an upload session.
type View struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	State     workflow.State   `json:"state"`
	Context   workflow.Context `json:"context"`
	Notices   []string         `json:"notices,omitempty"`
}

func newView(s *session.Session, snap workflow.Snapshot, notices []string) View {
	return View{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		State:     snap.State,
		Context:   snap.Context,
		Notices:   notices,
	}
}

// rejected reports whether a selection was refused. Accepted selections always move the
// workflow into extraction.
func rejected(out workflow.Outcome) bool {
	return out.Snapshot.State.AcceptsSelection()
}

func selection(upload *util.MultipartUpload) workflow.FileSelected {
	return workflow.FileSelected{
		File:        upload.File,
		Title:       upload.Values["title"],
		Description: upload.Values["description"],
	}
}

func location(st *state.MediadropState, id string) string {
	return storageutil.PublicURL(st.Cfg.Server.PublicUrl, "uploads", id)
}

func saveFile(st *state.MediadropState, w http.ResponseWriter, r *http.Request) (*util.MultipartUpload, bool) {
	if _, ok := util.RequireMultipart(w, r); !ok {
		return nil, false
	}

	maxSize := int64(st.Cfg.Server.Limits.MaxFileSize)
	return util.SaveMultipartFile(w, r, fileField, maxSize, st.Cfg.Upload.TempDir)
}

// HandleCreate accepts a multipart body with a "file" part and optional "title" and
// "description" fields, and starts a new upload session for it.
func HandleCreate(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, ok := saveFile(st, w, r)
		if !ok {
			return
		}

		s := st.Sessions.Create()
		out, err := s.Machine.Send(r.Context(), selection(upload))
		if err != nil {
			_ = st.Sessions.Remove(s.ID)
			_ = upload.File.Remove()
			common.LogAndWriteError(w, r, "select file", err)
			return
		}

		if rejected(out) {
			_ = st.Sessions.Remove(s.ID)
			_ = upload.File.Remove()
			resp.WriteUnsupportedMediaType(w, strings.Join(out.Notices, "; "))
			return
		}

		common.Logger(r).WithSession(s.ID).Infof("started upload of %q (%v, %d bytes)", upload.File.Name, upload.File.MIMEType, upload.File.Size)
		resp.WriteCreated(w, location(st, s.ID), newView(s, out.Snapshot, out.Notices))
	}
}

func HandleGet(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := st.Sessions.Get(r.PathValue("id"))
		if err != nil {
			common.LogAndWriteError(w, r, "get upload", err)
			return
		}

		resp.WriteOK(w, newView(s, s.Machine.Snapshot(), nil))
	}
}

// HandleReplaceFile selects a new file for an idle or failed session. The previous payload is
// discarded by the workflow once the new one is accepted.
func HandleReplaceFile(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := st.Sessions.Get(r.PathValue("id"))
		if err != nil {
			common.LogAndWriteError(w, r, "replace file", err)
			return
		}

		if current := s.Machine.Snapshot().State; !current.AcceptsSelection() {
			resp.WriteConflict(w, fmt.Sprintf("cannot select a file while the upload is %v", current))
			return
		}

		upload, ok := saveFile(st, w, r)
		if !ok {
			return
		}

		out, err := s.Machine.Send(r.Context(), selection(upload))
		if err != nil {
			_ = upload.File.Remove()
			common.LogAndWriteError(w, r, "replace file", err)
			return
		}

		switch {
		case !out.Handled:
			_ = upload.File.Remove()
			resp.WriteConflict(w, fmt.Sprintf("cannot select a file while the upload is %v", out.Snapshot.State))
			return
		case rejected(out):
			_ = upload.File.Remove()
			resp.WriteUnsupportedMediaType(w, strings.Join(out.Notices, "; "))
			return
		}

		common.Logger(r).WithSession(s.ID).Infof("replaced file with %q (%v)", upload.File.Name, upload.File.MIMEType)
		resp.WriteOK(w, newView(s, out.Snapshot, out.Notices))
	}
}

func HandleCancel(st *state.MediadropState) http.HandlerFunc {
	return handleEvent(st, "cancel", func() workflow.Event { return workflow.CancelInput{} })
}

func HandleRetry(st *state.MediadropState) http.HandlerFunc {
	return handleEvent(st, "retry", func() workflow.Event { return workflow.Retry{} })
}

func HandleReset(st *state.MediadropState) http.HandlerFunc {
	return handleEvent(st, "reset", func() workflow.Event { return workflow.Reset{} })
}

// handleEvent sends a body-less event. Events the current state ignores answer 409, as do
// events the workflow refused with a notice.
func handleEvent(st *state.MediadropState, op string, event func() workflow.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := st.Sessions.Get(r.PathValue("id"))
		if err != nil {
			common.LogAndWriteError(w, r, op+" upload", err)
			return
		}

		before := s.Machine.Snapshot().State
		out, err := s.Machine.Send(r.Context(), event())
		if err != nil {
			common.LogAndWriteError(w, r, op+" upload", err)
			return
		}

		if !out.Handled {
			resp.WriteConflict(w, fmt.Sprintf("cannot %v an upload that is %v", op, out.Snapshot.State))
			return
		}

		if len(out.Notices) > 0 && out.Snapshot.State == before {
			resp.WriteConflict(w, strings.Join(out.Notices, "; "))
			return
		}

		resp.WriteOK(w, newView(s, out.Snapshot, out.Notices))
	}
}

// HandleDelete closes the session, cancelling in-flight work and removing the payload.
func HandleDelete(st *state.MediadropState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := st.Sessions.Remove(id); err != nil {
			common.LogAndWriteError(w, r, "delete upload", err)
			return
		}

		common.Logger(r).WithSession(id).Infof("upload session closed")
		resp.WriteNoContent(w)
	}
}
