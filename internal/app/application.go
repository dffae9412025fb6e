// Package app wires the storage layer, services and notification dispatcher
// into one application object consumed by the HTTP surface.
package app

import (
	"time"

	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/notify"
	"github.com/dgi-platform/rendezvous-service/internal/services/auth"
	"github.com/dgi-platform/rendezvous-service/internal/services/motifs"
	rdvsvc "github.com/dgi-platform/rendezvous-service/internal/services/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/services/users"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
	"github.com/dgi-platform/rendezvous-service/internal/storage/memory"
)

// Stores groups the persistence interfaces behind the application. Leaving a
// field nil selects the in-memory implementation, which keeps tests and local
// runs free of external dependencies.
type Stores struct {
	Users      storage.UserStore
	Motifs     storage.MotifStore
	RendezVous storage.RendezVousStore
}

// Options configures New.
type Options struct {
	Stores    Stores
	Notifier  notify.Notifier
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *logging.Logger
}

// Application bundles the running services.
type Application struct {
	Auth       *auth.Service
	Users      *users.Service
	Motifs     *motifs.Service
	RendezVous *rdvsvc.Service
	Dispatcher *notify.Dispatcher
	Stores     Stores
	Log        *logging.Logger
}

// New constructs a fully wired application.
func New(opts Options) *Application {
	log := opts.Logger
	if log == nil {
		log = logging.NewDefault("app")
	}

	stores := opts.Stores
	if stores.Users == nil || stores.Motifs == nil || stores.RendezVous == nil {
		mem := memory.New()
		if stores.Users == nil {
			stores.Users = mem
		}
		if stores.Motifs == nil {
			stores.Motifs = mem
		}
		if stores.RendezVous == nil {
			stores.RendezVous = mem
		}
	}

	dispatcher := notify.NewDispatcher(opts.Notifier, log.WithField("component", "notify"))
	motifSvc := motifs.New(stores.Motifs, stores.Users, log.WithField("component", "motifs"))

	return &Application{
		Auth:       auth.New(stores.Users, opts.JWTSecret, opts.TokenTTL, log.WithField("component", "auth")),
		Users:      users.New(stores.Users, log.WithField("component", "users")),
		Motifs:     motifSvc,
		RendezVous: rdvsvc.New(stores.RendezVous, stores.Users, motifSvc, dispatcher, log.WithField("component", "rendezvous")),
		Dispatcher: dispatcher,
		Stores:     stores,
		Log:        log,
	}
}
