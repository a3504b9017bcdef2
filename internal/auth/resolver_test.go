package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
)

func testResolver() *Resolver {
	return NewResolver(config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "siiot-chat",
	})
}

func signedToken(t *testing.T, r *Resolver, userID string, ttl time.Duration) string {
	t.Helper()
	token, err := r.Sign(userID, *jwt.NewNumericDate(time.Now().Add(ttl)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestResolveMissingCredentialsIsAnonymous(t *testing.T) {
	r := testResolver()
	req := httptest.NewRequest("GET", "/ws/chat/room-1", nil)

	identity := r.Resolve(req)
	if identity.State != domain.IdentityAnonymous {
		t.Fatalf("state = %d, want anonymous", identity.State)
	}
}

func TestResolveTokenHeader(t *testing.T) {
	r := testResolver()
	token := signedToken(t, r, "user-7", time.Hour)

	for _, scheme := range []string{"Token", "Bearer"} {
		req := httptest.NewRequest("GET", "/ws/chat/room-1", nil)
		req.Header.Set("Authorization", scheme+" "+token)

		identity := r.Resolve(req)
		if identity.State != domain.IdentityAuthenticated {
			t.Fatalf("%s scheme: state = %d, want authenticated", scheme, identity.State)
		}
		if identity.UserID != "user-7" {
			t.Errorf("%s scheme: user id = %q", scheme, identity.UserID)
		}
	}
}

func TestResolveQueryParameter(t *testing.T) {
	r := testResolver()
	token := signedToken(t, r, "user-7", time.Hour)

	req := httptest.NewRequest("GET", "/ws/chat/room-1?token="+token, nil)
	identity := r.Resolve(req)
	if identity.State != domain.IdentityAuthenticated || identity.UserID != "user-7" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestResolveGarbageTokenFails(t *testing.T) {
	r := testResolver()
	req := httptest.NewRequest("GET", "/ws/chat/room-1", nil)
	req.Header.Set("Authorization", "Token not-a-jwt")

	identity := r.Resolve(req)
	if identity.State != domain.IdentityFailed {
		t.Fatalf("state = %d, want failed", identity.State)
	}
	if !errors.Is(identity.Err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", identity.Err)
	}
}

func TestResolveExpiredTokenFails(t *testing.T) {
	r := testResolver()
	token := signedToken(t, r, "user-7", -time.Minute)

	identity := r.ResolveToken(token)
	if identity.State != domain.IdentityFailed {
		t.Fatalf("state = %d, want failed", identity.State)
	}
	if !errors.Is(identity.Err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", identity.Err)
	}
}

func TestResolveWrongSecretFails(t *testing.T) {
	other := NewResolver(config.AuthConfig{JWTSecret: "different-secret", Issuer: "siiot-chat"})
	token := signedToken(t, other, "user-7", time.Hour)

	identity := testResolver().ResolveToken(token)
	if identity.State != domain.IdentityFailed {
		t.Fatalf("state = %d, want failed", identity.State)
	}
}

func TestResolveWrongIssuerFails(t *testing.T) {
	// Same secret, different issuer.
	other := NewResolver(config.AuthConfig{JWTSecret: "test-secret", Issuer: "someone-else"})
	token := signedToken(t, other, "user-7", time.Hour)

	identity := testResolver().ResolveToken(token)
	if identity.State != domain.IdentityFailed {
		t.Fatalf("state = %d, want failed", identity.State)
	}
}
