package asset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/server/state"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

type memoryRegistrar struct {
	records map[string]*content.Record
	deleted []string
}

func (m *memoryRegistrar) Register(context.Context, *content.Registration) (*content.Record, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryRegistrar) Get(ctx context.Context, id string) (*content.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRegistrar) Delete(ctx context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return content.ErrNotFound
	}
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type recordingVendor struct {
	vendor.NoopAdapter
	deleted []string
	creds   vendor.Credentials
	err     error
}

func (v *recordingVendor) Describe() vendor.Capabilities {
	return vendor.Capabilities{Name: "s3"}
}

func (v *recordingVendor) DeleteFile(ctx context.Context, stored *vendor.StoredFile, creds vendor.Credentials) error {
	if v.err != nil {
		return v.err
	}
	v.deleted = append(v.deleted, stored.Key)
	v.creds = creds
	return nil
}

func setup(v vendor.Adapter) (*state.MediadropState, *memoryRegistrar, http.Handler) {
	reg := &memoryRegistrar{records: map[string]*content.Record{
		"abc": {ID: "abc", Vendor: &vendor.StoredFile{Vendor: "s3", Key: "2026/clip.mp4"}},
	}}
	st := &state.MediadropState{
		Cfg:       &config.Config{Vendor: config.Vendor{Credentials: map[string]string{"bucket": "media"}}},
		Vendor:    v,
		Registrar: reg,
	}

	mux := http.NewServeMux()
	mux.Handle("DELETE /assets/{id}", HandleDelete(st))
	return st, reg, mux
}

func TestHandleDelete(t *testing.T) {
	v := &recordingVendor{}
	_, reg, h := setup(v)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/abc", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(v.deleted) != 1 || v.deleted[0] != "2026/clip.mp4" {
		t.Fatalf("expected vendor delete of the stored key, got %v", v.deleted)
	}
	if v.creds.Get("bucket") != "media" {
		t.Fatalf("expected configured credentials, got %v", v.creds)
	}
	if len(reg.deleted) != 1 || reg.deleted[0] != "abc" {
		t.Fatalf("expected record deleted, got %v", reg.deleted)
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	v := &recordingVendor{}
	_, _, h := setup(v)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if len(v.deleted) != 0 {
		t.Fatalf("vendor must not be called for unknown assets")
	}
}

func TestHandleDelete_VendorFailureKeepsRecord(t *testing.T) {
	v := &recordingVendor{err: errors.New("access denied")}
	_, reg, h := setup(v)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/abc", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if _, ok := reg.records["abc"]; !ok {
		t.Fatalf("record must survive a failed vendor delete")
	}
}

func TestHandleDelete_VendorMismatch(t *testing.T) {
	v := &recordingVendor{}
	_, reg, h := setup(v)
	reg.records["fs"] = &content.Record{ID: "fs", Vendor: &vendor.StoredFile{Vendor: "filesystem", Key: "2026/clip.mp4"}}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/fs", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if len(v.deleted) != 0 {
		t.Fatalf("vendor must not delete files stored elsewhere, got %v", v.deleted)
	}
	if _, ok := reg.records["fs"]; !ok {
		t.Fatalf("record must survive a vendor mismatch")
	}
}
