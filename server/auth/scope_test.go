package auth

import (
	"net/http/httptest"
	"testing"
)

func TestScopeString(t *testing.T) {
	if ScopeUpload.String() != "upload" || ScopeAssets.String() != "assets" {
		t.Fatalf("unexpected scope string values")
	}
}

func TestRequestHasScope(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if RequestHasScope(req, ScopeUpload) {
		t.Fatalf("expected false when no token in context")
	}

	req = req.WithContext(AddClaims(req.Context(), &Claims{Scope: "assets upload"}))
	if !RequestHasScope(req, ScopeUpload) {
		t.Fatalf("expected true when token has scope")
	}

	req = req.WithContext(AddClaims(req.Context(), &Claims{Scope: "assets"}))
	if RequestHasScope(req, ScopeUpload) {
		t.Fatalf("expected false when scope is missing")
	}
}
