package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "echo-trivia"

// ErrInvalidToken is returned for tokens that fail signature, expiry or subject checks.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller of a request. An empty UserID is a guest.
type Identity struct {
	UserID string
}

func (i Identity) IsAuthenticated() bool { return i.UserID != "" }

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller, or a guest when none was stored.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and verifies HS256 bearer tokens.
type Service struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token whose subject is userID.
func (s *Service) IssueToken(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// Parse verifies tokenStr and returns the identity it names.
func (s *Service) Parse(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject}, nil
}

// Middleware attaches the caller identity. A missing token means guest; a present but
// invalid one is rejected with 401. Websocket clients may pass ?token= instead of a header.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.Parse(raw)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"UNAUTHORIZED","message":"invalid token"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
