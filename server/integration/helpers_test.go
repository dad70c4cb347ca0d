package integration

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/server/auth"
	"github.com/indieinfra/mediadrop/server/handler/asset"
	"github.com/indieinfra/mediadrop/server/handler/get"
	"github.com/indieinfra/mediadrop/server/handler/upload"
	"github.com/indieinfra/mediadrop/server/middleware"
	"github.com/indieinfra/mediadrop/server/session"
	"github.com/indieinfra/mediadrop/server/state"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	"github.com/indieinfra/mediadrop/workflow"
)

const jwtSecret = "integration-secret-0123456789"

func baseConfig(t testing.TB) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.Server{
			PublicUrl: "https://media.example.test",
			Limits:    config.ServerLimits{MaxFileSize: 1 << 20, MaxMultipartMem: 1 << 20},
		},
		Auth:   config.Auth{JwtSecret: jwtSecret},
		Upload: config.Upload{MaxRetries: 3, TempDir: t.TempDir()},
	}
}

// newState wires a registry of real workflows to the given vendor and registrar.
func newState(t testing.TB, cfg *config.Config, v vendor.Adapter, registrar content.Registrar) *state.MediadropState {
	t.Helper()

	st := &state.MediadropState{Cfg: cfg, Vendor: v, Registrar: registrar}

	caps := v.Describe()
	policy := workflow.Policy{
		MaxRetries: cfg.Upload.MaxRetries,
		Accept:     func(mimeType string) bool { return vendor.Accepts(caps, mimeType) },
	}

	sessions, err := session.NewRegistry(16, func(id string) *workflow.Machine {
		return workflow.New(policy, workflow.Dependencies{
			Vendor:      v,
			Credentials: st.Credentials(),
			Registrar:   registrar,
		})
	})
	if err != nil {
		t.Fatalf("failed to create session registry: %v", err)
	}
	t.Cleanup(sessions.Close)
	st.Sessions = sessions

	return st
}

// withToken wraps the API with token validation and signs every request with both scopes.
func withToken(st *state.MediadropState) http.Handler {
	cfg := st.Cfg
	mux := http.NewServeMux()
	mux.Handle("POST /uploads", middleware.ValidateTokenMiddleware(cfg, auth.ScopeUpload, upload.HandleCreate(st)))
	mux.Handle("GET /uploads/{id}", middleware.ValidateTokenMiddleware(cfg, auth.ScopeUpload, upload.HandleGet(st)))
	mux.Handle("GET /assets/{id}", middleware.ValidateTokenMiddleware(cfg, auth.ScopeAssets, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		get.HandleSource(st, w, r)
	})))
	mux.Handle("DELETE /assets/{id}", middleware.ValidateTokenMiddleware(cfg, auth.ScopeAssets, asset.HandleDelete(st)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.IssueToken([]byte(cfg.Auth.JwtSecret), cfg.Auth.Issuer, "integration", []auth.Scope{auth.ScopeUpload, auth.ScopeAssets}, time.Hour)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		r.Header.Set("Authorization", "Bearer "+token)
		mux.ServeHTTP(w, r)
	})
}

func uploadRequest(t testing.TB, name, contentType string, data []byte, title string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatal(err)
		}
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// runUpload posts a file and polls the session until the workflow settles.
func runUpload(t testing.TB, h http.Handler, req *http.Request) upload.View {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var view upload.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for view.State != workflow.Success && view.State != workflow.Failure {
		if time.Now().After(deadline) {
			t.Fatalf("upload %v did not settle, last state %v", view.ID, view.State)
		}
		time.Sleep(20 * time.Millisecond)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+view.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 polling %v, got %d", view.ID, rec.Code)
		}
		view = upload.View{}
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("failed to decode view: %v", err)
		}
	}

	return view
}
