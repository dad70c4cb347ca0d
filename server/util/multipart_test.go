package util

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
)

func multipartRequest(t *testing.T, build func(w *multipart.Writer)) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	build(w)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func filePart(t *testing.T, w *multipart.Writer, field, name, contentType string, data []byte) {
	t.Helper()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	pw, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = pw.Write(data)
}

func tempEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestSaveMultipartFile(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, func(w *multipart.Writer) {
		_ = w.WriteField("title", "  Interview ")
		filePart(t, w, "file", "../clips/interview.mp4", "video/mp4", []byte("not really a video"))
		_ = w.WriteField("description", "raw cut")
	})
	rr := httptest.NewRecorder()

	upload, ok := SaveMultipartFile(rr, req, "file", 1<<20, dir)
	if !ok {
		t.Fatalf("expected success, got %d: %s", rr.Code, rr.Body.String())
	}
	t.Cleanup(func() { _ = upload.File.Remove() })

	if upload.File.Name != "interview.mp4" {
		t.Fatalf("unexpected name %q", upload.File.Name)
	}
	if upload.File.MIMEType != "video/mp4" {
		t.Fatalf("declared type should be kept, got %q", upload.File.MIMEType)
	}
	if upload.File.Size != int64(len("not really a video")) {
		t.Fatalf("unexpected size %d", upload.File.Size)
	}
	if upload.Values["title"] != "Interview" || upload.Values["description"] != "raw cut" {
		t.Fatalf("unexpected values %v", upload.Values)
	}

	data, err := os.ReadFile(upload.File.Path)
	if err != nil || string(data) != "not really a video" {
		t.Fatalf("unexpected temp contents %q (%v)", data, err)
	}
}

func TestSaveMultipartFile_SniffsGenericType(t *testing.T) {
	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	req := multipartRequest(t, func(w *multipart.Writer) {
		filePart(t, w, "file", "cover", "application/octet-stream", png)
	})
	rr := httptest.NewRecorder()

	upload, ok := SaveMultipartFile(rr, req, "file", 1<<20, dir)
	if !ok {
		t.Fatalf("expected success, got %d", rr.Code)
	}
	t.Cleanup(func() { _ = upload.File.Remove() })

	if upload.File.MIMEType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", upload.File.MIMEType)
	}
}

func TestSaveMultipartFile_TooLarge(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, func(w *multipart.Writer) {
		filePart(t, w, "file", "a.mp3", "audio/mpeg", []byte("0123456789"))
	})
	rr := httptest.NewRecorder()

	if _, ok := SaveMultipartFile(rr, req, "file", 5, dir); ok {
		t.Fatalf("expected failure for oversized file")
	}
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 response, got %d", rr.Code)
	}
	if n := tempEntries(t, dir); n != 0 {
		t.Fatalf("expected no temp files left, found %d", n)
	}
}

func TestSaveMultipartFile_MissingFile(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, func(w *multipart.Writer) {
		_ = w.WriteField("title", "hello")
	})
	rr := httptest.NewRecorder()

	if _, ok := SaveMultipartFile(rr, req, "file", 1<<20, dir); ok {
		t.Fatalf("expected failure without file part")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSaveMultipartFile_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	if _, ok := SaveMultipartFile(rr, req, "file", 1<<20, t.TempDir()); ok {
		t.Fatalf("expected failure")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
