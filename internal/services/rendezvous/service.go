// Package rendezvous implements the appointment lifecycle: citizen-facing
// creation, staff status updates, role-filtered listing with purge and
// reminder side effects, and bulk past-appointment purge.
package rendezvous

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domain "github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/notify"
	"github.com/dgi-platform/rendezvous-service/internal/services/motifs"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// User-facing rejections. Message texts are the French wire responses.
var (
	ErrSlotConflict       = errors.New("Un rendez-vous existe déjà pour ce créneau")
	ErrMotifNotFound      = errors.New("Motif non trouvé")
	ErrAgentMismatch      = errors.New("Agent non associé à ce motif")
	ErrAgentNotFound      = errors.New("Agent non trouvé")
	ErrPastDate           = errors.New("La date doit être dans le futur")
	ErrRendezVousNotFound = errors.New("Rendez-vous non trouvé")
)

// ValidationError carries field-level failures for a malformed request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string { return "Validation échouée" }

// CreateRequest is a citizen appointment submission.
type CreateRequest struct {
	ContribuableNom   string `json:"contribuable_nom"`
	ContribuableEmail string `json:"contribuable_email"`
	Telephone         string `json:"telephone"`
	MotifID           int64  `json:"motif_id"`
	AgentID           int64  `json:"agent_id"`
	DateRdv           string `json:"date_rdv"`
	HeureRdv          string `json:"heure_rdv"`
	Statut            string `json:"statut"`
	Reference         string `json:"reference"`
}

// UpdateRequest is a staff-side status update.
type UpdateRequest struct {
	DateRdv  string `json:"date_rdv"`
	HeureRdv string `json:"heure_rdv"`
	AgentID  int64  `json:"agent_id"`
	Statut   string `json:"statut"`
}

// Identity is the verified caller of role-filtered operations.
type Identity struct {
	UserID int64
	Role   string
}

// Service orchestrates appointment persistence, referential validation and
// notification dispatch.
type Service struct {
	store      storage.RendezVousStore
	users      storage.UserStore
	registry   *motifs.Service
	dispatcher *notify.Dispatcher
	log        *logging.Logger
	now        func() time.Time
}

// New constructs the lifecycle service.
func New(store storage.RendezVousStore, users storage.UserStore, registry *motifs.Service, dispatcher *notify.Dispatcher, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("rendezvous")
	}
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher(nil, log)
	}
	return &Service{
		store:      store,
		users:      users,
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Address == strings.TrimSpace(s)
}

// Create validates and persists a new pending appointment. Checks run in a
// fixed order: slot conflict, motif existence, motif/agent binding, agent
// existence, future date. No notification is sent on creation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.RendezVous, error) {
	var fields []string
	if strings.TrimSpace(req.ContribuableNom) == "" {
		fields = append(fields, "Le nom est requis")
	}
	if !validEmail(req.ContribuableEmail) {
		fields = append(fields, "Email invalide")
	}
	if strings.TrimSpace(req.Telephone) == "" {
		fields = append(fields, "Le téléphone est requis")
	}
	if req.MotifID <= 0 {
		fields = append(fields, "Le motif est requis")
	}
	if req.AgentID <= 0 {
		fields = append(fields, "L'agent est requis")
	}
	date, err := domain.ParseDate(req.DateRdv)
	if err != nil {
		fields = append(fields, "Date invalide")
	}
	heure, err := domain.NormalizeHeure(req.HeureRdv)
	if err != nil {
		fields = append(fields, "Heure invalide")
	}
	if domain.Status(req.Statut) != domain.StatusEnAttente {
		fields = append(fields, "Le statut initial doit être en_attente")
	}
	if strings.TrimSpace(req.Reference) == "" {
		fields = append(fields, "La référence est requise")
	}
	if len(fields) > 0 {
		return domain.RendezVous{}, &ValidationError{Fields: fields}
	}

	dateStr := date.Format(domain.DateLayout)

	taken, err := s.store.SlotTaken(ctx, dateStr, heure, req.MotifID, req.AgentID)
	if err != nil {
		return domain.RendezVous{}, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return domain.RendezVous{}, ErrSlotConflict
	}

	m, err := s.registry.Resolve(ctx, req.MotifID)
	if err != nil {
		if errors.Is(err, motifs.ErrMotifNotFound) {
			return domain.RendezVous{}, ErrMotifNotFound
		}
		return domain.RendezVous{}, err
	}
	if m.AgentID != req.AgentID {
		return domain.RendezVous{}, ErrAgentMismatch
	}

	isAgent, err := s.registry.IsAgent(ctx, req.AgentID)
	if err != nil {
		return domain.RendezVous{}, err
	}
	if !isAgent {
		return domain.RendezVous{}, ErrAgentNotFound
	}

	if domain.PastDate(date, s.now()) {
		return domain.RendezVous{}, ErrPastDate
	}

	created, err := s.store.CreateRendezVous(ctx, domain.RendezVous{
		Reference:         strings.TrimSpace(req.Reference),
		ContribuableNom:   strings.TrimSpace(req.ContribuableNom),
		ContribuableEmail: strings.TrimSpace(req.ContribuableEmail),
		Telephone:         strings.TrimSpace(req.Telephone),
		MotifID:           req.MotifID,
		AgentID:           req.AgentID,
		DateRdv:           dateStr,
		HeureRdv:          heure,
		Statut:            domain.StatusEnAttente,
	})
	if err != nil {
		// The storage layer enforces the slot uniqueness constraint, so a
		// concurrent identical submission still surfaces as a conflict.
		if errors.Is(err, storage.ErrSlotTaken) {
			return domain.RendezVous{}, ErrSlotConflict
		}
		return domain.RendezVous{}, fmt.Errorf("create rendez-vous: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("rendezvous_id", created.ID).
		WithField("reference", created.Reference).
		WithField("agent_id", created.AgentID).
		Info("rendez-vous created")
	return created, nil
}

// UpdateStatus persists a staff-side change of date, time, agent and status,
// then dispatches a status-change email to the citizen. Delivery failure does
// not fail the update.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req UpdateRequest) (domain.RendezVous, error) {
	var fields []string
	date, err := domain.ParseDate(req.DateRdv)
	if err != nil {
		fields = append(fields, "Date invalide")
	}
	heure, err := domain.NormalizeHeure(req.HeureRdv)
	if err != nil {
		fields = append(fields, "Heure invalide")
	}
	if req.AgentID <= 0 {
		fields = append(fields, "L'agent est requis")
	}
	if !domain.ValidStatus(domain.Status(req.Statut)) {
		fields = append(fields, "Statut invalide")
	}
	if len(fields) > 0 {
		return domain.RendezVous{}, &ValidationError{Fields: fields}
	}

	existing, err := s.store.GetRendezVous(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RendezVous{}, ErrRendezVousNotFound
		}
		return domain.RendezVous{}, fmt.Errorf("get rendez-vous %d: %w", id, err)
	}

	agent, err := s.users.GetUser(ctx, req.AgentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RendezVous{}, ErrAgentNotFound
		}
		return domain.RendezVous{}, fmt.Errorf("get user %d: %w", req.AgentID, err)
	}
	if agent.Role != user.RoleAgent {
		return domain.RendezVous{}, ErrAgentNotFound
	}

	if domain.PastDate(date, s.now()) {
		return domain.RendezVous{}, ErrPastDate
	}

	existing.DateRdv = date.Format(domain.DateLayout)
	existing.HeureRdv = heure
	existing.AgentID = req.AgentID
	existing.Statut = domain.Status(req.Statut)

	updated, err := s.store.UpdateRendezVous(ctx, existing)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.RendezVous{}, ErrRendezVousNotFound
		case errors.Is(err, storage.ErrSlotTaken):
			return domain.RendezVous{}, ErrSlotConflict
		}
		return domain.RendezVous{}, fmt.Errorf("update rendez-vous %d: %w", id, err)
	}

	s.log.WithContext(ctx).
		WithField("rendezvous_id", updated.ID).
		WithField("statut", updated.Statut).
		Info("rendez-vous updated")

	s.dispatcher.Dispatch(ctx, notify.StatusChangeMessage(updated, agent.Nom))
	return updated, nil
}

// ListForRequester returns appointments visible to the caller. Agents first
// have their own past appointments purged and then see only their own rows;
// reminder emails for appointments starting within 24 hours are dispatched in
// a detached background task after the rows are computed. Admins see all
// rows with no side effects.
func (s *Service) ListForRequester(ctx context.Context, ident Identity) ([]domain.Listed, error) {
	if ident.Role != user.RoleAgent {
		rows, err := s.store.ListRendezVous(ctx)
		if err != nil {
			return nil, fmt.Errorf("list rendez-vous: %w", err)
		}
		return rows, nil
	}

	today := s.now().Format(domain.DateLayout)
	if deleted, err := s.store.DeletePastRendezVousByAgent(ctx, ident.UserID, today); err != nil {
		return nil, fmt.Errorf("purge past rendez-vous for agent %d: %w", ident.UserID, err)
	} else if deleted > 0 {
		s.log.WithContext(ctx).
			WithField("agent_id", ident.UserID).
			WithField("deleted", deleted).
			Info("past rendez-vous purged on listing")
	}

	rows, err := s.store.ListRendezVousByAgent(ctx, ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("list rendez-vous for agent %d: %w", ident.UserID, err)
	}

	go s.dispatchReminders(context.WithoutCancel(ctx), rows)

	return rows, nil
}

// dispatchReminders sends the agent a reminder for each row starting within
// the next 24 hours that has not been reminded yet, marking each attempted
// row so it is reminded at most once.
func (s *Service) dispatchReminders(ctx context.Context, rows []domain.Listed) {
	now := s.now()
	for _, row := range rows {
		if !row.DueForReminder(now) || row.AgentEmail == "" {
			continue
		}
		s.dispatcher.Dispatch(ctx, notify.ReminderMessage(row))
		if err := s.store.MarkRappelEnvoye(ctx, row.ID); err != nil {
			s.log.WithContext(ctx).WithError(err).
				WithField("rendezvous_id", row.ID).
				Warn("could not mark reminder as sent")
		}
	}
}

// PurgePast hard-deletes every appointment dated strictly before today and
// returns the number removed.
func (s *Service) PurgePast(ctx context.Context) (int64, error) {
	today := s.now().Format(domain.DateLayout)
	deleted, err := s.store.DeletePastRendezVous(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("purge past rendez-vous: %w", err)
	}
	if deleted > 0 {
		s.log.WithContext(ctx).WithField("deleted", deleted).Info("past rendez-vous purged")
	}
	return deleted, nil
}
