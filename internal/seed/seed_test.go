package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/storage/memory"
)

const seedYAML = `
users:
  - nom: Chef Service
    email: chef@dgi.test
    mot_de_passe: admin99
    role: admin
  - nom: Awa Diop
    email: awa@dgi.test
    mot_de_passe: agent99
    role: agent
motifs:
  - libelle: Déclaration TVA
    agent_email: awa@dgi.test
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestApply(t *testing.T) {
	store := memory.New()
	path := writeSeedFile(t, seedYAML)

	if err := Apply(context.Background(), path, store, store, logging.NewDefault("test")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	admin, err := store.GetUserByEmail(context.Background(), "chef@dgi.test")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if admin.Role != user.RoleAdmin {
		t.Fatalf("role = %q", admin.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.MotDePasse), []byte("admin99")); err != nil {
		t.Fatalf("seeded password not hashed correctly: %v", err)
	}

	ms, err := store.ListMotifs(context.Background())
	if err != nil || len(ms) != 1 {
		t.Fatalf("motifs = %v, %v", ms, err)
	}

	// Reapplying is a no-op, not a duplicate-email failure.
	if err := Apply(context.Background(), path, store, store, logging.NewDefault("test")); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	all, _ := store.ListUsers(context.Background())
	if len(all) != 2 {
		t.Fatalf("users after reapply = %d, want 2", len(all))
	}
	ms, _ = store.ListMotifs(context.Background())
	if len(ms) != 1 {
		t.Fatalf("motifs after reapply = %d, want 1", len(ms))
	}
}

func TestApplyMissingFileIsSkipped(t *testing.T) {
	store := memory.New()
	if err := Apply(context.Background(), "/nonexistent/seed.yaml", store, store, logging.NewDefault("test")); err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
}

func TestApplyRejectsMotifForNonAgent(t *testing.T) {
	store := memory.New()
	path := writeSeedFile(t, `
users:
  - nom: Chef
    email: chef@dgi.test
    mot_de_passe: admin99
    role: admin
motifs:
  - libelle: TVA
    agent_email: chef@dgi.test
`)

	if err := Apply(context.Background(), path, store, store, logging.NewDefault("test")); err == nil {
		t.Fatal("motif bound to an admin must be rejected")
	}
}
