package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Slot
// uniqueness is enforced by the rendez_vous_slot_unique constraint, so the
// duplicate-appointment check does not depend on a preceding read.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.MotifStore = (*Store)(nil)
var _ storage.RendezVousStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO utilisateurs (nom, email, mot_de_passe, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.Nom, u.Email, u.MotDePasse, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err, "utilisateurs_email_key") {
			return user.User{}, storage.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE utilisateurs
		SET nom = $2, email = $3, role = $4
		WHERE id = $1
	`, u.ID, u.Nom, u.Email, u.Role)
	if err != nil {
		if isUniqueViolation(err, "utilisateurs_email_key") {
			return user.User{}, storage.ErrEmailTaken
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, nom, email, mot_de_passe, role, created_at
		FROM utilisateurs
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, nom, email, mot_de_passe, role, created_at
		FROM utilisateurs
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Nom, &u.Email, &u.MotDePasse, &u.Role, &u.CreatedAt); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.queryUsers(ctx, `
		SELECT id, nom, email, mot_de_passe, role, created_at
		FROM utilisateurs
		ORDER BY id
	`)
}

func (s *Store) ListAgents(ctx context.Context) ([]user.User, error) {
	return s.queryUsers(ctx, `
		SELECT id, nom, email, mot_de_passe, role, created_at
		FROM utilisateurs
		WHERE role = 'agent'
		ORDER BY id
	`)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Nom, &u.Email, &u.MotDePasse, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE utilisateurs SET mot_de_passe = $2 WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- MotifStore -------------------------------------------------------------

func (s *Store) CreateMotif(ctx context.Context, m motif.Motif) (motif.Motif, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO motifs (libelle, agent_id)
		VALUES ($1, $2)
		RETURNING id
	`, m.Libelle, m.AgentID).Scan(&m.ID)
	if err != nil {
		return motif.Motif{}, err
	}
	return m, nil
}

func (s *Store) GetMotif(ctx context.Context, id int64) (motif.Motif, error) {
	var m motif.Motif
	err := s.db.QueryRowContext(ctx, `
		SELECT id, libelle, agent_id FROM motifs WHERE id = $1
	`, id).Scan(&m.ID, &m.Libelle, &m.AgentID)
	if err != nil {
		return motif.Motif{}, err
	}
	return m, nil
}

func (s *Store) ListMotifs(ctx context.Context) ([]motif.Motif, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, libelle, agent_id FROM motifs ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []motif.Motif
	for rows.Next() {
		var m motif.Motif
		if err := rows.Scan(&m.ID, &m.Libelle, &m.AgentID); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- RendezVousStore --------------------------------------------------------

func (s *Store) CreateRendezVous(ctx context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error) {
	r.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rendez_vous
			(reference, contribuable_nom, contribuable_email, telephone,
			 motif_id, agent_id, date_rdv, heure_rdv, statut, rappel_envoye, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, r.Reference, r.ContribuableNom, r.ContribuableEmail, r.Telephone,
		r.MotifID, r.AgentID, r.DateRdv, r.HeureRdv, r.Statut, r.RappelEnvoye, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err, "rendez_vous_slot_unique") {
			return rendezvous.RendezVous{}, storage.ErrSlotTaken
		}
		return rendezvous.RendezVous{}, err
	}
	return r, nil
}

func (s *Store) UpdateRendezVous(ctx context.Context, r rendezvous.RendezVous) (rendezvous.RendezVous, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rendez_vous
		SET date_rdv = $2, heure_rdv = $3, agent_id = $4, statut = $5
		WHERE id = $1
	`, r.ID, r.DateRdv, r.HeureRdv, r.AgentID, r.Statut)
	if err != nil {
		if isUniqueViolation(err, "rendez_vous_slot_unique") {
			return rendezvous.RendezVous{}, storage.ErrSlotTaken
		}
		return rendezvous.RendezVous{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return rendezvous.RendezVous{}, sql.ErrNoRows
	}
	return s.GetRendezVous(ctx, r.ID)
}

func (s *Store) GetRendezVous(ctx context.Context, id int64) (rendezvous.RendezVous, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference, contribuable_nom, contribuable_email, telephone,
		       motif_id, agent_id, date_rdv, heure_rdv, statut, rappel_envoye, created_at
		FROM rendez_vous
		WHERE id = $1
	`, id)

	var (
		r    rendezvous.RendezVous
		date time.Time
	)
	if err := row.Scan(&r.ID, &r.Reference, &r.ContribuableNom, &r.ContribuableEmail, &r.Telephone,
		&r.MotifID, &r.AgentID, &date, &r.HeureRdv, &r.Statut, &r.RappelEnvoye, &r.CreatedAt); err != nil {
		return rendezvous.RendezVous{}, err
	}
	r.DateRdv = date.Format(rendezvous.DateLayout)
	r.HeureRdv = strings.TrimSpace(r.HeureRdv)
	return r, nil
}

const listedQuery = `
	SELECT r.id, r.reference, r.contribuable_nom, r.contribuable_email, r.telephone,
	       r.motif_id, r.agent_id, r.date_rdv, r.heure_rdv, r.statut, r.rappel_envoye, r.created_at,
	       COALESCE(m.libelle, ''), COALESCE(u.nom, ''), COALESCE(u.email, '')
	FROM rendez_vous r
	LEFT JOIN motifs m ON r.motif_id = m.id
	LEFT JOIN utilisateurs u ON r.agent_id = u.id
`

func (s *Store) ListRendezVous(ctx context.Context) ([]rendezvous.Listed, error) {
	return s.queryListed(ctx, listedQuery+` ORDER BY r.date_rdv, r.heure_rdv, r.id`)
}

func (s *Store) ListRendezVousByAgent(ctx context.Context, agentID int64) ([]rendezvous.Listed, error) {
	return s.queryListed(ctx, listedQuery+` WHERE r.agent_id = $1 ORDER BY r.date_rdv, r.heure_rdv, r.id`, agentID)
}

func (s *Store) queryListed(ctx context.Context, query string, args ...any) ([]rendezvous.Listed, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rendezvous.Listed
	for rows.Next() {
		var (
			row  rendezvous.Listed
			date time.Time
		)
		if err := rows.Scan(&row.ID, &row.Reference, &row.ContribuableNom, &row.ContribuableEmail, &row.Telephone,
			&row.MotifID, &row.AgentID, &date, &row.HeureRdv, &row.Statut, &row.RappelEnvoye, &row.CreatedAt,
			&row.MotifLibelle, &row.AgentNom, &row.AgentEmail); err != nil {
			return nil, err
		}
		row.DateRdv = date.Format(rendezvous.DateLayout)
		row.HeureRdv = strings.TrimSpace(row.HeureRdv)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) SlotTaken(ctx context.Context, dateRdv, heureRdv string, motifID, agentID int64) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rendez_vous
		WHERE date_rdv = $1 AND heure_rdv = $2 AND motif_id = $3 AND agent_id = $4
	`, dateRdv, heureRdv, motifID, agentID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) MarkRappelEnvoye(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rendez_vous SET rappel_envoye = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeletePastRendezVous(ctx context.Context, before string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM rendez_vous WHERE date_rdv < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) DeletePastRendezVousByAgent(ctx context.Context, agentID int64, before string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM rendez_vous WHERE agent_id = $1 AND date_rdv < $2
	`, agentID, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
