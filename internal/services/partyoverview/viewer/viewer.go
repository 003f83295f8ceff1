// Package viewer resolves who is looking at the party overview.
package viewer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
)

// CookieName carries a viewer token for browser sessions.
const CookieName = "po_viewer"

// LocalUserID identifies the viewer when token verification is disabled.
const LocalUserID = "local"

// Viewer is the user rendering the overview.
type Viewer struct {
	UserID string
	IsGM   bool
}

// Config controls viewer token verification.
//
// A nil Key disables verification; every request then resolves to the
// local viewer.
type Config struct {
	Issuer  string
	Key     ed25519.PublicKey
	LocalGM bool
	Now     func() time.Time
}

type viewerClaims struct {
	jwt.RegisteredClaims
	GM bool `json:"gm"`
}

// Resolver turns requests into viewers.
type Resolver struct {
	cfg Config
}

// NewResolver validates cfg and returns a resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Key != nil && len(cfg.Key) != ed25519.PublicKeySize {
		return nil, errors.New("viewer public key has the wrong size")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{cfg: cfg}, nil
}

// Local returns the viewer used when verification is disabled.
func (r *Resolver) Local() Viewer {
	return Viewer{UserID: LocalUserID, IsGM: r.cfg.LocalGM}
}

// Resolve extracts the viewer from the Authorization header or the viewer
// cookie.
func (r *Resolver) Resolve(req *http.Request) (Viewer, error) {
	if r.cfg.Key == nil {
		return r.Local(), nil
	}
	token := bearerToken(req)
	if token == "" {
		if cookie, err := req.Cookie(CookieName); err == nil {
			token = strings.TrimSpace(cookie.Value)
		}
	}
	return r.ParseToken(token)
}

// ResolveToken resolves a raw bearer token, e.g. from gRPC metadata.
// Without a verifier every token resolves to the local viewer.
func (r *Resolver) ResolveToken(token string) (Viewer, error) {
	if !r.Verifying() {
		return r.Local(), nil
	}
	return r.ParseToken(token)
}

// Verifying reports whether viewer tokens are checked.
func (r *Resolver) Verifying() bool {
	return r.cfg.Key != nil
}

// ParseToken verifies an EdDSA-signed viewer token.
func (r *Resolver) ParseToken(token string) (Viewer, error) {
	v, _, err := r.ParseTokenExpiry(token)
	return v, err
}

// ParseTokenExpiry verifies token like ParseToken and also returns when it
// expires.
func (r *Resolver) ParseTokenExpiry(token string) (Viewer, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Viewer{}, time.Time{}, apperrors.New(apperrors.CodeUnauthenticated, "viewer token is required")
	}
	if r.cfg.Key == nil {
		return Viewer{}, time.Time{}, errors.New("viewer verifier is not configured")
	}

	var parsed viewerClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return r.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithTimeFunc(r.cfg.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Viewer{}, time.Time{}, mapJWTError(err)
	}
	if r.cfg.Issuer != "" && parsed.Issuer != r.cfg.Issuer {
		return Viewer{}, time.Time{}, apperrors.New(apperrors.CodeUnauthenticated, "viewer token issuer mismatch")
	}
	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return Viewer{}, time.Time{}, apperrors.New(apperrors.CodeUnauthenticated, "viewer token sub is required")
	}
	return Viewer{UserID: subject, IsGM: parsed.GM}, parsed.ExpiresAt.Time, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "viewer token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "viewer token signature is invalid", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "viewer token is invalid", err)
	}
}

func bearerToken(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ParsePublicKey decodes a base64 ed25519 public key. An empty value
// returns a nil key.
func ParsePublicKey(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, errors.New("decode viewer public key: invalid base64")
		}
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.New("viewer public key must be 32 bytes")
	}
	return ed25519.PublicKey(decoded), nil
}

type contextKey struct{}

// WithViewer stores v on ctx.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the viewer stored on ctx.
func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(contextKey{}).(Viewer)
	return v, ok
}
