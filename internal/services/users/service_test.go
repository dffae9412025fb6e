package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/storage/memory"
)

func TestCreateAgent(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	created, err := svc.CreateAgent(context.Background(), "Awa Diop", "awa@dgi.test", "secret99")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if created.Role != user.RoleAgent {
		t.Fatalf("role = %q, want agent", created.Role)
	}
	if created.MotDePasse != "" {
		t.Fatal("password hash leaked in response")
	}

	// The stored hash must verify against the original password.
	stored, err := store.GetUserByEmail(context.Background(), "awa@dgi.test")
	if err != nil {
		t.Fatalf("get stored user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.MotDePasse), []byte("secret99")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if cost, err := bcrypt.Cost([]byte(stored.MotDePasse)); err != nil || cost < 10 {
		t.Fatalf("bcrypt cost = %d (%v), want >= 10", cost, err)
	}
}

func TestCreateAgentRejections(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	if _, err := svc.CreateAgent(context.Background(), "", "a@dgi.test", "secret99"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("missing name: got %v", err)
	}
	if _, err := svc.CreateAgent(context.Background(), "Awa", "a@dgi.test", "abc"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password: got %v", err)
	}

	if _, err := svc.CreateAgent(context.Background(), "Awa", "a@dgi.test", "secret99"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateAgent(context.Background(), "Autre", "a@dgi.test", "secret99"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestListExcludesHashes(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	if _, err := svc.CreateAgent(context.Background(), "Awa", "a@dgi.test", "secret99"); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
	if all[0].MotDePasse != "" {
		t.Fatal("list leaked a password hash")
	}
}

func TestUpdate(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	created, err := svc.CreateAgent(context.Background(), "Awa", "a@dgi.test", "secret99")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(context.Background(), created.ID, "Awa Diop", "awa.diop@dgi.test", user.RoleAdmin)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Nom != "Awa Diop" || updated.Email != "awa.diop@dgi.test" || updated.Role != user.RoleAdmin {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := svc.Update(context.Background(), 999, "X", "x@dgi.test", user.RoleAgent); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown id: got %v", err)
	}
	if _, err := svc.Update(context.Background(), created.ID, "Awa", "awa.diop@dgi.test", "root"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role: got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	created, err := svc.CreateAgent(context.Background(), "Awa", "a@dgi.test", "secret99")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), created.ID, "wrong", "nouveau99"); !errors.Is(err, ErrOldPasswordWrong) {
		t.Fatalf("wrong old password: got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), created.ID, "secret99", "nouveau99"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	stored, err := store.GetUser(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.MotDePasse), []byte("nouveau99")); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.MotDePasse), []byte("secret99")); err == nil {
		t.Fatal("old password still verifies")
	}
}
