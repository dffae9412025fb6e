package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/storage/memory"
)

func seedUser(t *testing.T, store *memory.Store, email, password, role string) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := store.CreateUser(context.Background(), user.User{
		Nom:        "Test",
		Email:      email,
		MotDePasse: string(hash),
		Role:       role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLoginSuccess(t *testing.T) {
	store := memory.New()
	seeded := seedUser(t, store, "agent@dgi.test", "passw0rd", user.RoleAgent)
	svc := New(store, "test-secret", time.Hour, nil)

	token, u, err := svc.Login(context.Background(), "agent@dgi.test", "passw0rd")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if u.ID != seeded.ID || u.Role != user.RoleAgent {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.MotDePasse != "" {
		t.Fatal("password hash leaked in login response")
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != seeded.ID || claims.Role != user.RoleAgent {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejections(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "agent@dgi.test", "passw0rd", user.RoleAgent)
	svc := New(store, "test-secret", time.Hour, nil)

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@dgi.test", "passw0rd", ErrUserNotFound},
		{"wrong password", "agent@dgi.test", "nope", ErrBadPassword},
		{"missing email", "", "passw0rd", ErrMissingCredentials},
		{"missing password", "agent@dgi.test", "", ErrMissingCredentials},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !IsCredentialError(err) {
				t.Fatalf("%v should be a credential error", err)
			}
		})
	}
}

func TestLoginInvalidRole(t *testing.T) {
	store := memory.New()
	hash, _ := bcrypt.GenerateFromPassword([]byte("passw0rd"), bcrypt.MinCost)
	if _, err := store.CreateUser(context.Background(), user.User{
		Nom: "Ghost", Email: "ghost@dgi.test", MotDePasse: string(hash), Role: "superuser",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := New(store, "test-secret", time.Hour, nil)

	_, _, err := svc.Login(context.Background(), "ghost@dgi.test", "passw0rd")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("got %v, want ErrInvalidRole", err)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "agent@dgi.test", "passw0rd", user.RoleAgent)
	svc := New(store, "test-secret", time.Hour, nil)

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v", err)
	}

	other := New(store, "other-secret", time.Hour, nil)
	token, _, err := other.Login(context.Background(), "agent@dgi.test", "passw0rd")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong-secret token: got %v", err)
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "agent@dgi.test", "passw0rd", user.RoleAgent)
	svc := New(store, "test-secret", time.Hour, nil)

	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, _, err := svc.Login(context.Background(), "agent@dgi.test", "passw0rd")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(30 * time.Minute) }
	if _, err := svc.VerifyToken(token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: got %v", err)
	}
}
