package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claimsKeyType struct{}

var claimsKey = claimsKeyType{}

var (
	ErrEmptyToken   = errors.New("received empty token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the bearer token claims accepted by the API. An empty Scope grants every scope.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// ExtractBearerToken extracts a Bearer token from an Authorization header value.
// Returns an empty string if the header is not present, malformed, or not a Bearer token.
func ExtractBearerToken(auth string) string {
	if auth == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// IssueToken signs an HS256 token for subject. A zero validFor issues a token without expiry.
func IssueToken(secret []byte, issuer, subject string, scopes []Scope, validFor time.Duration) (string, error) {
	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		names = append(names, s.String())
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Scope: strings.Join(names, " "),
	}
	if validFor != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(validFor))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken parses and validates an HS256 token. When issuer is set the token must carry it.
func VerifyToken(secret []byte, issuer, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func AddClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func GetClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}

	return claims
}

func (c *Claims) String() string {
	return fmt.Sprintf("Claims{sub=%v, iss=%v, scope=%v}", c.Subject, c.Issuer, c.Scope)
}

func (c *Claims) HasScope(scope Scope) bool {
	if strings.TrimSpace(c.Scope) == "" {
		return true
	}
	return slices.Contains(strings.Fields(strings.ToLower(c.Scope)), strings.ToLower(scope.String()))
}
