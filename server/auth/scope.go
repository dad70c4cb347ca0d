package auth

import (
	"net/http"
)

type Scope int

const (
	ScopeUpload Scope = iota
	ScopeAssets
)

var scopeName = map[Scope]string{
	ScopeUpload: "upload",
	ScopeAssets: "assets",
}

func (scope Scope) String() string {
	return scopeName[scope]
}

func RequestHasScope(r *http.Request, scope Scope) bool {
	claims := GetClaims(r.Context())
	if claims == nil {
		return false
	}

	return claims.HasScope(scope)
}
