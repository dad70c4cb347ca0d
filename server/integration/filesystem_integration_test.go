package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/storage/content"
	"github.com/indieinfra/mediadrop/storage/objectstore/filesystem"
	"github.com/indieinfra/mediadrop/workflow"
)

func newFilesystemState(tb testing.TB) (http.Handler, string) {
	tb.Helper()

	mediaDir := tb.TempDir()
	cfg := baseConfig(tb)

	v, err := filesystem.NewAdapter(&config.FilesystemVendorStrategy{
		Path:        mediaDir,
		PublicUrl:   "https://cdn.example.test/media",
		PathPattern: "{year}/{filename}",
	})
	if err != nil {
		tb.Fatalf("failed to create filesystem vendor: %v", err)
	}

	registrar, err := content.NewFilesystemRegistrar(&config.FilesystemContentStrategy{Path: tb.TempDir()})
	if err != nil {
		tb.Fatalf("failed to create filesystem registrar: %v", err)
	}

	return withToken(newState(tb, cfg, v, registrar)), mediaDir
}

func TestFilesystem_UploadRegisterAndDelete(t *testing.T) {
	h, mediaDir := newFilesystemState(t)

	data := []byte("ID3\x03\x00\x00\x00\x00\x00\x00fake mp3 frames")
	view := runUpload(t, h, uploadRequest(t, "Dawn Chorus.mp3", "audio/mpeg", data, "Dawn chorus"))

	if view.State != workflow.Success {
		t.Fatalf("expected success, got %v (%+v)", view.State, view.Context.Error)
	}

	rec := view.Context.Registration
	if rec == nil || rec.Title != "Dawn chorus" || rec.Vendor == nil {
		t.Fatalf("unexpected registration %+v", rec)
	}
	if rec.ExternalFile == nil || rec.ExternalFile.Name != "Dawn Chorus.mp3" || rec.ExternalFile.Size != int64(len(data)) {
		t.Fatalf("unexpected external file %+v", rec.ExternalFile)
	}

	stored := filepath.Join(mediaDir, filepath.FromSlash(rec.Vendor.Key))
	got, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("expected vendor copy at %v: %v", stored, err)
	}
	if string(got) != string(data) {
		t.Fatalf("vendor copy differs from upload")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/"+rec.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var fetched content.Record
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if fetched.ID != rec.ID || fetched.Vendor.URL != rec.Vendor.URL {
		t.Fatalf("unexpected record %+v", fetched)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/"+rec.ID, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Fatalf("expected vendor copy removed, got %v", err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/"+rec.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestFilesystem_RejectsImages(t *testing.T) {
	h, mediaDir := newFilesystemState(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "cover.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, ""))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("nothing may reach the vendor, found %d entries", len(entries))
	}
}

func BenchmarkFilesystem_Upload(b *testing.B) {
	h, _ := newFilesystemState(b)
	data := make([]byte, 64<<10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		view := runUpload(b, h, uploadRequest(b, fmt.Sprintf("clip-%d.mp4", i), "video/mp4", data, ""))
		if view.State != workflow.Success {
			b.Fatalf("upload %d failed: %+v", i, view.Context.Error)
		}
	}
}
