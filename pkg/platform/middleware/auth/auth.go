// Package auth resolves the caller's role from a signed cookie and enforces
// role requirements on routes. There is no login: an absent or invalid cookie
// means the default viewer role.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"supplydash/pkg/domain"
	dErrors "supplydash/pkg/domain-errors"
	"supplydash/pkg/platform/httputil"
	request "supplydash/pkg/platform/middleware/request"
	"supplydash/pkg/requestcontext"
)

const (
	CookieName = "supplydash_role"
	issuer     = "supplydash"
	minKeyLen  = 16
)

var ErrInvalidToken = errors.New("invalid role token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 role tokens.
type Signer struct {
	key    []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type SignerOption func(*Signer)

// WithSecureCookie marks issued cookies Secure.
func WithSecureCookie(secure bool) SignerOption {
	return func(s *Signer) {
		s.secure = secure
	}
}

func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(key []byte, ttl time.Duration, opts ...SignerOption) (*Signer, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("role signing key must be at least %d bytes", minKeyLen)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Signer{key: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Signer) Sign(role domain.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("sign role token: unknown role %q", role)
	}
	now := s.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign role token: %w", err)
	}
	return token, nil
}

// Parse verifies token and returns its role.
func (s *Signer) Parse(token string) (domain.Role, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return role, nil
}

// Cookie returns the role cookie for role.
func (s *Signer) Cookie(role domain.Role) (*http.Cookie, error) {
	token, err := s.Sign(role)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Middleware stores the cookie's role in the request context, or the default
// role when the cookie is absent or does not verify.
func Middleware(signer *Signer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := domain.DefaultRole
			if c, err := r.Cookie(CookieName); err == nil {
				parsed, err := signer.Parse(c.Value)
				if err != nil {
					logger.DebugContext(ctx, "ignoring invalid role cookie",
						"request_id", request.GetRequestID(ctx),
						"error", err,
					)
				} else {
					role = parsed
				}
			}
			ctx = requestcontext.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose role is not in allowed. Admin is always
// allowed.
func RequireRole(logger *slog.Logger, allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !role.In(allowed...) {
				logger.WarnContext(ctx, "role not permitted",
					"request_id", request.GetRequestID(ctx),
					"role", string(role),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"role": string(role)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
