// Package auth resolves connection credentials into a typed identity
// during the websocket handshake. No middleware: the session state machine
// consumes the result explicitly.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims the chat server understands.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Resolver validates HMAC-signed tokens issued by the account service.
type Resolver struct {
	secret []byte
	issuer string
}

// NewResolver creates a token resolver.
func NewResolver(cfg config.AuthConfig) *Resolver {
	return &Resolver{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// Resolve extracts and validates the connection's credentials. Missing
// credentials resolve to Anonymous; present-but-invalid credentials
// resolve to Failed. The caller decides what each outcome means for the
// connection.
func (r *Resolver) Resolve(req *http.Request) domain.Identity {
	token := extractToken(req)
	if token == "" {
		return domain.Anonymous()
	}

	userID, err := r.validate(token)
	if err != nil {
		return domain.FailedIdentity(err)
	}

	return domain.Authenticated(userID)
}

// ResolveToken validates a bare token string (used by HTTP middleware).
func (r *Resolver) ResolveToken(token string) domain.Identity {
	if token == "" {
		return domain.Anonymous()
	}
	userID, err := r.validate(token)
	if err != nil {
		return domain.FailedIdentity(err)
	}
	return domain.Authenticated(userID)
}

func (r *Resolver) validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	if r.issuer != "" && claims.Issuer != "" && claims.Issuer != r.issuer {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

// Sign issues a token for the given user. Exists for local development and
// tests; production tokens come from the account service with the shared
// secret.
func (r *Resolver) Sign(userID string, expiresAt jwt.NumericDate) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			Subject:   userID,
			ExpiresAt: &expiresAt,
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

// extractToken pulls the credential from the Authorization header
// ("Token <t>" or "Bearer <t>") or the token query parameter, in that
// order.
func extractToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 {
			scheme := strings.ToLower(parts[0])
			if scheme == "token" || scheme == "bearer" {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return req.URL.Query().Get("token")
}
