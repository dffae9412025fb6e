// Package seed bootstraps staff accounts and motifs from a YAML file on
// startup. Entries that already exist are left untouched, so seeding is safe
// to run on every boot.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/dgi-platform/rendezvous-service/internal/domain/motif"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/services/users"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// File is the YAML bootstrap document.
type File struct {
	Users  []UserEntry  `yaml:"users"`
	Motifs []MotifEntry `yaml:"motifs"`
}

// UserEntry is one staff account to provision.
type UserEntry struct {
	Nom        string `yaml:"nom"`
	Email      string `yaml:"email"`
	MotDePasse string `yaml:"mot_de_passe"`
	Role       string `yaml:"role"`
}

// MotifEntry is one appointment reason, bound to an agent by email.
type MotifEntry struct {
	Libelle    string `yaml:"libelle"`
	AgentEmail string `yaml:"agent_email"`
}

// Apply loads the seed file at path and provisions its entries. A missing
// file is not an error; the service simply starts empty.
func Apply(ctx context.Context, path string, userStore storage.UserStore, motifStore storage.MotifStore, log *logging.Logger) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("path", path).Debug("seed file absent; skipping bootstrap")
			return nil
		}
		return fmt.Errorf("read seed file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	for _, entry := range f.Users {
		if err := seedUser(ctx, userStore, entry, log); err != nil {
			return err
		}
	}
	for _, entry := range f.Motifs {
		if err := seedMotif(ctx, userStore, motifStore, entry, log); err != nil {
			return err
		}
	}
	return nil
}

func seedUser(ctx context.Context, store storage.UserStore, entry UserEntry, log *logging.Logger) error {
	if entry.Email == "" || entry.MotDePasse == "" {
		return fmt.Errorf("seed user %q: email and mot_de_passe are required", entry.Nom)
	}
	if !user.ValidRole(entry.Role) {
		return fmt.Errorf("seed user %q: unknown role %q", entry.Email, entry.Role)
	}

	if _, err := store.GetUserByEmail(ctx, entry.Email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("seed user %q: %w", entry.Email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(entry.MotDePasse), users.BcryptCost)
	if err != nil {
		return fmt.Errorf("seed user %q: hash password: %w", entry.Email, err)
	}

	created, err := store.CreateUser(ctx, user.User{
		Nom:        entry.Nom,
		Email:      entry.Email,
		MotDePasse: string(hash),
		Role:       entry.Role,
	})
	if err != nil {
		return fmt.Errorf("seed user %q: %w", entry.Email, err)
	}

	log.WithField("user_id", created.ID).WithField("email", created.Email).Info("seeded account")
	return nil
}

func seedMotif(ctx context.Context, userStore storage.UserStore, motifStore storage.MotifStore, entry MotifEntry, log *logging.Logger) error {
	if entry.Libelle == "" || entry.AgentEmail == "" {
		return fmt.Errorf("seed motif %q: libelle and agent_email are required", entry.Libelle)
	}

	agent, err := userStore.GetUserByEmail(ctx, entry.AgentEmail)
	if err != nil {
		return fmt.Errorf("seed motif %q: agent %q: %w", entry.Libelle, entry.AgentEmail, err)
	}
	if agent.Role != user.RoleAgent {
		return fmt.Errorf("seed motif %q: %q is not an agent account", entry.Libelle, entry.AgentEmail)
	}

	existing, err := motifStore.ListMotifs(ctx)
	if err != nil {
		return fmt.Errorf("seed motif %q: %w", entry.Libelle, err)
	}
	for _, m := range existing {
		if m.Libelle == entry.Libelle && m.AgentID == agent.ID {
			return nil
		}
	}

	created, err := motifStore.CreateMotif(ctx, motif.Motif{Libelle: entry.Libelle, AgentID: agent.ID})
	if err != nil {
		return fmt.Errorf("seed motif %q: %w", entry.Libelle, err)
	}

	log.WithField("motif_id", created.ID).WithField("libelle", created.Libelle).Info("seeded motif")
	return nil
}
