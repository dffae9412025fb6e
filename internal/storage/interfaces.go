// Package storage defines the persistence interfaces consumed by the
// services, with in-memory and PostgreSQL implementations in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
)

// ErrSlotTaken is returned when an insert collides with an existing
// appointment on the same (date, heure, motif, agent) slot.
var ErrSlotTaken = errors.New("appointment slot already taken")

// ErrEmailTaken is returned when a user insert or update collides with an
// existing account email.
var ErrEmailTaken = errors.New("email already in use")

// UserStore persists staff accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	ListAgents(ctx context.Context) ([]user.User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

// MotifStore persists appointment reasons.
type MotifStore interface {
	CreateMotif(ctx context.Context, m motif.Motif) (motif.Motif, error)
	GetMotif(ctx context.Context, id int64) (motif.Motif, error)
	ListMotifs(ctx context.Context) ([]motif.Motif, error)
}

// RendezVousStore persists appointments. List results are joined with motif
// and agent display fields.
type RendezVousStore interface {
	CreateRendezVous(ctx context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error)
	UpdateRendezVous(ctx context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error)
	GetRendezVous(ctx context.Context, id int64) (rendezvous.RendezVous, error)
	ListRendezVous(ctx context.Context) ([]rendezvous.Listed, error)
	ListRendezVousByAgent(ctx context.Context, agentID int64) ([]rendezvous.Listed, error)
	SlotTaken(ctx context.Context, dateRdv, heureRdv string, motifID, agentID int64) (bool, error)
	MarkRappelEnvoye(ctx context.Context, id int64) error
	DeletePastRendezVous(ctx context.Context, before string) (int64, error)
	DeletePastRendezVousByAgent(ctx context.Context, agentID int64, before string) (int64, error)
}
