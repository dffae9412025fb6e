// Package users implements administrator account management: listing,
// agent creation, profile updates and password changes.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// BcryptCost is the work factor applied to all stored password hashes.
const BcryptCost = 10

// User-facing rejections. Message texts are the French wire responses.
var (
	ErrUserNotFound     = errors.New("Utilisateur non trouvé")
	ErrEmailTaken       = errors.New("Cet email est déjà utilisé")
	ErrInvalidRole      = errors.New("Rôle invalide")
	ErrMissingFields    = errors.New("Tous les champs sont requis")
	ErrOldPasswordWrong = errors.New("Ancien mot de passe incorrect")
	ErrPasswordTooShort = errors.New("Le mot de passe doit contenir au moins 6 caractères")
)

// Service implements the account administration operations.
type Service struct {
	store storage.UserStore
	log   *logging.Logger
}

// New constructs a users service.
func New(store storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// List returns all accounts without password hashes.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	all, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range all {
		all[i].MotDePasse = ""
	}
	return all, nil
}

// ListAgents returns all agent accounts without password hashes.
func (s *Service) ListAgents(ctx context.Context) ([]user.User, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	for i := range agents {
		agents[i].MotDePasse = ""
	}
	return agents, nil
}

// CreateAgent provisions a new agent account with a bcrypt-hashed password.
// The role is always agent regardless of the caller's input.
func (s *Service) CreateAgent(ctx context.Context, nom, email, motDePasse string) (user.User, error) {
	nom = strings.TrimSpace(nom)
	email = strings.TrimSpace(email)
	if nom == "" || email == "" || motDePasse == "" {
		return user.User{}, ErrMissingFields
	}
	if len(motDePasse) < 6 {
		return user.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(motDePasse), BcryptCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Nom:        nom,
		Email:      email,
		MotDePasse: string(hash),
		Role:       user.RoleAgent,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create agent: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("user_id", created.ID).
		WithField("email", created.Email).
		Info("agent account created")

	created.MotDePasse = ""
	return created, nil
}

// Update modifies an account's name, email and role.
func (s *Service) Update(ctx context.Context, id int64, nom, email, role string) (user.User, error) {
	nom = strings.TrimSpace(nom)
	email = strings.TrimSpace(email)
	if nom == "" || email == "" || role == "" {
		return user.User{}, ErrMissingFields
	}
	if !user.ValidRole(role) {
		return user.User{}, ErrInvalidRole
	}

	updated, err := s.store.UpdateUser(ctx, user.User{ID: id, Nom: nom, Email: email, Role: role})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return user.User{}, ErrUserNotFound
		case errors.Is(err, storage.ErrEmailTaken):
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("update user %d: %w", id, err)
	}

	s.log.WithContext(ctx).WithField("user_id", id).Info("user account updated")

	updated.MotDePasse = ""
	return updated, nil
}

// ChangePassword re-proves the caller's current password before storing a new
// bcrypt hash for the account.
func (s *Service) ChangePassword(ctx context.Context, userID int64, ancien, nouveau string) error {
	if ancien == "" || nouveau == "" {
		return ErrMissingFields
	}
	if len(nouveau) < 6 {
		return ErrPasswordTooShort
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.MotDePasse), []byte(ancien)); err != nil {
		s.log.WithContext(ctx).WithField("user_id", userID).Warn("password change with wrong current password")
		return ErrOldPasswordWrong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nouveau), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("store password for user %d: %w", userID, err)
	}

	s.log.WithContext(ctx).WithField("user_id", userID).Info("password changed")
	return nil
}
