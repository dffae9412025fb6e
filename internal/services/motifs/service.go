// Package motifs manages the registry of appointment reasons and the agents
// bound to them.
package motifs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// User-facing rejections for registry operations.
var (
	ErrMotifNotFound   = errors.New("Motif non trouvé")
	ErrAgentNotFound   = errors.New("Agent non trouvé")
	ErrMissingLibelle  = errors.New("Le libellé est requis")
	ErrNotAgentAccount = errors.New("Le compte associé n'est pas un agent")
)

// Agent is the public registry entry exposed to the booking form: identity
// only, no account details.
type Agent struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

// Service exposes the motif and agent registry.
type Service struct {
	motifs storage.MotifStore
	users  storage.UserStore
	log    *logging.Logger
}

// New constructs a motifs service.
func New(motifs storage.MotifStore, users storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("motifs")
	}
	return &Service{motifs: motifs, users: users, log: log}
}

// List returns all motifs with their bound agents.
func (s *Service) List(ctx context.Context) ([]motif.Motif, error) {
	all, err := s.motifs.ListMotifs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list motifs: %w", err)
	}
	return all, nil
}

// ListAgents returns the public agent registry (id and name only).
func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	accounts, err := s.users.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agents := make([]Agent, 0, len(accounts))
	for _, a := range accounts {
		agents = append(agents, Agent{ID: a.ID, Nom: a.Nom})
	}
	return agents, nil
}

// Create registers a new motif bound to an existing agent account.
func (s *Service) Create(ctx context.Context, libelle string, agentID int64) (motif.Motif, error) {
	libelle = strings.TrimSpace(libelle)
	if libelle == "" {
		return motif.Motif{}, ErrMissingLibelle
	}
	if err := s.requireAgent(ctx, agentID); err != nil {
		return motif.Motif{}, err
	}

	created, err := s.motifs.CreateMotif(ctx, motif.Motif{Libelle: libelle, AgentID: agentID})
	if err != nil {
		return motif.Motif{}, fmt.Errorf("create motif: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("motif_id", created.ID).
		WithField("agent_id", agentID).
		Info("motif created")
	return created, nil
}

// Resolve loads a motif by id, mapping missing rows to ErrMotifNotFound.
func (s *Service) Resolve(ctx context.Context, id int64) (motif.Motif, error) {
	m, err := s.motifs.GetMotif(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return motif.Motif{}, ErrMotifNotFound
		}
		return motif.Motif{}, fmt.Errorf("get motif %d: %w", id, err)
	}
	return m, nil
}

// IsAgent reports whether id belongs to an existing agent account.
func (s *Service) IsAgent(ctx context.Context, id int64) (bool, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get user %d: %w", id, err)
	}
	return u.Role == user.RoleAgent, nil
}

func (s *Service) requireAgent(ctx context.Context, id int64) error {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAgentNotFound
		}
		return fmt.Errorf("get user %d: %w", id, err)
	}
	if u.Role != user.RoleAgent {
		return ErrNotAgentAccount
	}
	return nil
}
