package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

func TestUserEmailUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Nom: "Awa", Email: "awa@dgi.test", Role: user.RoleAgent}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Nom: "Autre", Email: "AWA@dgi.test", Role: user.RoleAgent}); !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("case-insensitive duplicate: got %v", err)
	}

	if _, err := store.GetUser(ctx, 999); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing user: got %v", err)
	}
}

func seedRdv(t *testing.T, store *Store, agentID int64, date, heure string) rendezvous.RendezVous {
	t.Helper()
	r, err := store.CreateRendezVous(context.Background(), rendezvous.RendezVous{
		Reference: "R", ContribuableNom: "X", ContribuableEmail: "x@example.test",
		Telephone: "770000000", MotifID: 1, AgentID: agentID,
		DateRdv: date, HeureRdv: heure, Statut: rendezvous.StatusEnAttente,
	})
	if err != nil {
		t.Fatalf("seed rdv: %v", err)
	}
	return r
}

func TestSlotUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	seedRdv(t, store, 1, "2025-06-20", "14:30")

	_, err := store.CreateRendezVous(ctx, rendezvous.RendezVous{
		Reference: "R2", ContribuableNom: "Y", ContribuableEmail: "y@example.test",
		Telephone: "770000001", MotifID: 1, AgentID: 1,
		DateRdv: "2025-06-20", HeureRdv: "14:30", Statut: rendezvous.StatusEnAttente,
	})
	if !errors.Is(err, storage.ErrSlotTaken) {
		t.Fatalf("duplicate slot: got %v", err)
	}

	taken, err := store.SlotTaken(ctx, "2025-06-20", "14:30", 1, 1)
	if err != nil || !taken {
		t.Fatalf("SlotTaken = %v, %v", taken, err)
	}
	taken, err = store.SlotTaken(ctx, "2025-06-20", "15:00", 1, 1)
	if err != nil || taken {
		t.Fatalf("free slot reported taken: %v, %v", taken, err)
	}
}

func TestUpdateRejectsOccupiedSlot(t *testing.T) {
	store := New()
	ctx := context.Background()

	seedRdv(t, store, 1, "2025-06-20", "14:30")
	second := seedRdv(t, store, 1, "2025-06-20", "15:00")

	// Moving onto another row's slot conflicts.
	second.HeureRdv = "14:30"
	if _, err := store.UpdateRendezVous(ctx, second); !errors.Is(err, storage.ErrSlotTaken) {
		t.Fatalf("update onto taken slot: got %v", err)
	}

	// A row keeping its own slot does not conflict with itself.
	second.HeureRdv = "15:00"
	second.Statut = rendezvous.StatusConfirme
	updated, err := store.UpdateRendezVous(ctx, second)
	if err != nil {
		t.Fatalf("update own slot: %v", err)
	}
	if updated.Statut != rendezvous.StatusConfirme {
		t.Fatalf("statut = %q", updated.Statut)
	}
}

func TestListJoinsDisplayFields(t *testing.T) {
	store := New()
	ctx := context.Background()

	agent, err := store.CreateUser(ctx, user.User{Nom: "Awa Diop", Email: "awa@dgi.test", Role: user.RoleAgent})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	m, err := store.CreateMotif(ctx, motif.Motif{Libelle: "Déclaration TVA", AgentID: agent.ID})
	if err != nil {
		t.Fatalf("create motif: %v", err)
	}
	if _, err := store.CreateRendezVous(ctx, rendezvous.RendezVous{
		Reference: "R", ContribuableNom: "X", ContribuableEmail: "x@example.test",
		Telephone: "770000000", MotifID: m.ID, AgentID: agent.ID,
		DateRdv: "2025-06-20", HeureRdv: "14:30", Statut: rendezvous.StatusEnAttente,
	}); err != nil {
		t.Fatalf("create rdv: %v", err)
	}

	rows, err := store.ListRendezVousByAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len = %d", len(rows))
	}
	row := rows[0]
	if row.MotifLibelle != "Déclaration TVA" || row.AgentNom != "Awa Diop" || row.AgentEmail != "awa@dgi.test" {
		t.Fatalf("joined fields missing: %+v", row)
	}
}

func TestDeletePastScoping(t *testing.T) {
	store := New()
	ctx := context.Background()

	seedRdv(t, store, 1, "2025-06-10", "09:00")
	seedRdv(t, store, 1, "2025-06-20", "09:00")
	seedRdv(t, store, 2, "2025-06-10", "10:00")

	deleted, err := store.DeletePastRendezVousByAgent(ctx, 1, "2025-06-15")
	if err != nil {
		t.Fatalf("delete by agent: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("agent-scoped delete = %d, want 1", deleted)
	}

	deleted, err = store.DeletePastRendezVous(ctx, "2025-06-15")
	if err != nil {
		t.Fatalf("delete global: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("global delete = %d, want 1 (agent 2's past row)", deleted)
	}

	deleted, err = store.DeletePastRendezVous(ctx, "2025-06-15")
	if err != nil || deleted != 0 {
		t.Fatalf("second purge = %d, %v, want 0", deleted, err)
	}
}

func TestMarkRappelEnvoye(t *testing.T) {
	store := New()
	ctx := context.Background()

	r := seedRdv(t, store, 1, "2025-06-20", "09:00")
	if err := store.MarkRappelEnvoye(ctx, r.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	stored, err := store.GetRendezVous(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.RappelEnvoye {
		t.Fatal("rappel_envoye not set")
	}

	if err := store.MarkRappelEnvoye(ctx, 999); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing row: got %v", err)
	}
}
