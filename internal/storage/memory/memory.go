package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Missing rows are reported as sql.ErrNoRows so callers handle
// both implementations identically.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]user.User
	motifs     map[int64]motif.Motif
	rendezvous map[int64]rendezvous.RendezVous
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.MotifStore = (*Store)(nil)
var _ storage.RendezVousStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:     1,
		users:      make(map[int64]user.User),
		motifs:     make(map[int64]motif.Motif),
		rendezvous: make(map[int64]rendezvous.RendezVous),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, storage.ErrEmailTaken
		}
	}

	u.ID = s.nextIDLocked()
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	for id, other := range s.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return user.User{}, storage.ErrEmailTaken
		}
	}

	existing.Nom = u.Nom
	existing.Email = u.Email
	existing.Role = u.Role
	s.users[u.ID] = existing
	return existing, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, sql.ErrNoRows
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]user.User, error) {
	all, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var agents []user.User
	for _, u := range all {
		if u.Role == user.RoleAgent {
			agents = append(agents, u)
		}
	}
	return agents, nil
}

func (s *Store) SetPassword(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.MotDePasse = hash
	s.users[id] = u
	return nil
}

// MotifStore implementation ---------------------------------------------------

func (s *Store) CreateMotif(_ context.Context, m motif.Motif) (motif.Motif, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextIDLocked()
	s.motifs[m.ID] = m
	return m, nil
}

func (s *Store) GetMotif(_ context.Context, id int64) (motif.Motif, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.motifs[id]
	if !ok {
		return motif.Motif{}, sql.ErrNoRows
	}
	return m, nil
}

func (s *Store) ListMotifs(_ context.Context) ([]motif.Motif, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]motif.Motif, 0, len(s.motifs))
	for _, m := range s.motifs {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// RendezVousStore implementation ----------------------------------------------

func (s *Store) CreateRendezVous(_ context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slotTakenLocked(r.DateRdv, r.HeureRdv, r.MotifID, r.AgentID, 0) {
		return rendezvous.RendezVous{}, storage.ErrSlotTaken
	}

	r.ID = s.nextIDLocked()
	r.CreatedAt = time.Now().UTC()
	s.rendezvous[r.ID] = r
	return r, nil
}

func (s *Store) UpdateRendezVous(_ context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rendezvous[r.ID]
	if !ok {
		return rendezvous.RendezVous{}, sql.ErrNoRows
	}

	// The motif is not updatable; the new slot is checked against every
	// other row, mirroring the unique constraint in Postgres.
	if s.slotTakenLocked(r.DateRdv, r.HeureRdv, existing.MotifID, r.AgentID, r.ID) {
		return rendezvous.RendezVous{}, storage.ErrSlotTaken
	}

	existing.DateRdv = r.DateRdv
	existing.HeureRdv = r.HeureRdv
	existing.AgentID = r.AgentID
	existing.Statut = r.Statut
	s.rendezvous[r.ID] = existing
	return existing, nil
}

func (s *Store) GetRendezVous(_ context.Context, id int64) (rendezvous.RendezVous, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rendezvous[id]
	if !ok {
		return rendezvous.RendezVous{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *Store) ListRendezVous(_ context.Context) ([]rendezvous.Listed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(rendezvous.RendezVous) bool { return true }), nil
}

func (s *Store) ListRendezVousByAgent(_ context.Context, agentID int64) ([]rendezvous.Listed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(r rendezvous.RendezVous) bool { return r.AgentID == agentID }), nil
}

func (s *Store) listLocked(keep func(rendezvous.RendezVous) bool) []rendezvous.Listed {
	var result []rendezvous.Listed
	for _, r := range s.rendezvous {
		if !keep(r) {
			continue
		}
		row := rendezvous.Listed{RendezVous: r}
		if m, ok := s.motifs[r.MotifID]; ok {
			row.MotifLibelle = m.Libelle
		}
		if a, ok := s.users[r.AgentID]; ok {
			row.AgentNom = a.Nom
			row.AgentEmail = a.Email
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) SlotTaken(_ context.Context, dateRdv, heureRdv string, motifID, agentID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slotTakenLocked(dateRdv, heureRdv, motifID, agentID, 0), nil
}

func (s *Store) slotTakenLocked(dateRdv, heureRdv string, motifID, agentID, excludeID int64) bool {
	for _, r := range s.rendezvous {
		if r.ID == excludeID {
			continue
		}
		if r.DateRdv == dateRdv && r.HeureRdv == heureRdv && r.MotifID == motifID && r.AgentID == agentID {
			return true
		}
	}
	return false
}

func (s *Store) MarkRappelEnvoye(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rendezvous[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.RappelEnvoye = true
	s.rendezvous[id] = r
	return nil
}

func (s *Store) DeletePastRendezVous(_ context.Context, before string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBeforeLocked(before, func(rendezvous.RendezVous) bool { return true }), nil
}

func (s *Store) DeletePastRendezVousByAgent(_ context.Context, agentID int64, before string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBeforeLocked(before, func(r rendezvous.RendezVous) bool { return r.AgentID == agentID }), nil
}

func (s *Store) deleteBeforeLocked(before string, keep func(rendezvous.RendezVous) bool) int64 {
	var deleted int64
	for id, r := range s.rendezvous {
		if keep(r) && r.DateRdv < before {
			delete(s.rendezvous, id)
			deleted++
		}
	}
	return deleted
}
