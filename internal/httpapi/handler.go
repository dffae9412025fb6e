// Package httpapi exposes the REST surface over the application services.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dgi-platform/rendezvous-service/internal/app"
	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/metrics"
	"github.com/dgi-platform/rendezvous-service/internal/middleware"
	"github.com/dgi-platform/rendezvous-service/internal/services/auth"
	"github.com/dgi-platform/rendezvous-service/internal/services/motifs"
	rdvsvc "github.com/dgi-platform/rendezvous-service/internal/services/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/services/users"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logging.Logger
}

// Options configures NewHandler.
type Options struct {
	// LoginLimiter throttles the login route. Nil disables throttling.
	LoginLimiter *middleware.LoginLimiter
}

// NewHandler returns a mux exposing the REST API.
func NewHandler(application *app.Application, opts Options) http.Handler {
	h := &handler{app: application, log: application.Log.WithField("component", "httpapi")}

	authn := middleware.NewAuthMiddleware(application.Auth, h.log)
	adminOnly := middleware.RequireRoles(h.log, user.RoleAdmin)
	staff := middleware.RequireRoles(h.log, user.RoleAdmin, user.RoleAgent)

	login := http.Handler(http.HandlerFunc(h.login))
	if opts.LoginLimiter != nil {
		login = opts.LoginLimiter.Handler(login)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", login)

	// Public booking surface.
	mux.HandleFunc("GET /api/rendezvous/motifs", h.listMotifs)
	mux.HandleFunc("GET /api/rendezvous/agents", h.listPublicAgents)
	mux.HandleFunc("GET /api/motifs", h.listMotifs)
	mux.HandleFunc("POST /api/rendezvous", h.createRendezVous)

	// Staff surface.
	mux.Handle("GET /api/rendezvous", authn.Handler(staff(http.HandlerFunc(h.listRendezVous))))
	mux.Handle("PUT /api/rendezvous/{id}", authn.Handler(staff(http.HandlerFunc(h.updateRendezVous))))
	mux.Handle("DELETE /api/rendezvous/past", authn.Handler(staff(http.HandlerFunc(h.purgePast))))
	mux.Handle("PUT /api/users/password", authn.Handler(staff(http.HandlerFunc(h.changePassword))))

	// Admin surface.
	mux.Handle("GET /api/users", authn.Handler(adminOnly(http.HandlerFunc(h.listUsers))))
	mux.Handle("PUT /api/users/{id}", authn.Handler(adminOnly(http.HandlerFunc(h.updateUser))))
	mux.Handle("GET /api/agents", authn.Handler(adminOnly(http.HandlerFunc(h.listAgents))))
	mux.Handle("POST /api/agents", authn.Handler(adminOnly(http.HandlerFunc(h.createAgent))))
	mux.Handle("POST /api/motifs", authn.Handler(adminOnly(http.HandlerFunc(h.createMotif))))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email      string `json:"email"`
		MotDePasse string `json:"mot_de_passe"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	token, u, err := h.app.Auth.Login(r.Context(), payload.Email, payload.MotDePasse)
	if err != nil {
		if auth.IsCredentialError(err) {
			metrics.RecordLoginAttempt("rejected")
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	metrics.RecordLoginAttempt("success")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

func (h *handler) listMotifs(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Motifs.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) listPublicAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.app.Motifs.ListAgents(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *handler) createRendezVous(w http.ResponseWriter, r *http.Request) {
	var req rdvsvc.CreateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if _, err := h.app.RendezVous.Create(r.Context(), req); err != nil {
		h.rendezVousError(w, r, err)
		return
	}

	// Bookings are anonymous: confirm without echoing the stored record.
	writeMessage(w, http.StatusCreated, "Rendez-vous enregistré avec succès")
}

func (h *handler) listRendezVous(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentification requise")
		return
	}

	rows, err := h.app.RendezVous.ListForRequester(r.Context(), ident)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) updateRendezVous(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var req rdvsvc.UpdateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	updated, err := h.app.RendezVous.UpdateStatus(r.Context(), id, req)
	if err != nil {
		h.rendezVousError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) purgePast(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.app.RendezVous.PurgePast(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Users.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var payload struct {
		Nom   string `json:"nom"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	updated, err := h.app.Users.Update(r.Context(), id, payload.Nom, payload.Email, payload.Role)
	if err != nil {
		h.usersError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.app.Users.ListAgents(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *handler) createAgent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nom        string `json:"nom"`
		Email      string `json:"email"`
		MotDePasse string `json:"mot_de_passe"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	created, err := h.app.Users.CreateAgent(r.Context(), payload.Nom, payload.Email, payload.MotDePasse)
	if err != nil {
		h.usersError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentification requise")
		return
	}

	var payload struct {
		AncienMotDePasse  string `json:"ancien_mot_de_passe"`
		NouveauMotDePasse string `json:"nouveau_mot_de_passe"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if err := h.app.Users.ChangePassword(r.Context(), ident.UserID, payload.AncienMotDePasse, payload.NouveauMotDePasse); err != nil {
		h.usersError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Mot de passe modifié avec succès"})
}

func (h *handler) createMotif(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Libelle string `json:"libelle"`
		AgentID int64  `json:"agent_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	created, err := h.app.Motifs.Create(r.Context(), payload.Libelle, payload.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, motifs.ErrAgentNotFound):
			writeMessage(w, http.StatusNotFound, err.Error())
		case errors.Is(err, motifs.ErrMissingLibelle), errors.Is(err, motifs.ErrNotAgentAccount):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			h.serverError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// identityFrom reads the verified caller identity stored by the auth
// middleware.
func identityFrom(r *http.Request) (rdvsvc.Identity, bool) {
	userID, ok := logging.GetUserID(r.Context())
	if !ok {
		return rdvsvc.Identity{}, false
	}
	return rdvsvc.Identity{UserID: userID, Role: logging.GetRole(r.Context())}, true
}

// rendezVousError maps lifecycle errors onto wire statuses.
func (h *handler) rendezVousError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *rdvsvc.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": verr.Error(),
			"errors":  verr.Fields,
		})
	case errors.Is(err, rdvsvc.ErrRendezVousNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rdvsvc.ErrSlotConflict),
		errors.Is(err, rdvsvc.ErrMotifNotFound),
		errors.Is(err, rdvsvc.ErrAgentMismatch),
		errors.Is(err, rdvsvc.ErrAgentNotFound),
		errors.Is(err, rdvsvc.ErrPastDate):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.serverError(w, r, err)
	}
}

// usersError maps account administration errors onto wire statuses.
func (h *handler) usersError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrMissingFields),
		errors.Is(err, users.ErrOldPasswordWrong),
		errors.Is(err, users.ErrPasswordTooShort):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.serverError(w, r, err)
	}
}

// serverError logs full detail and returns a generic 500.
func (h *handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeMessage(w, http.StatusNotFound, "Ressource non trouvée")
		return
	}
	h.log.WithContext(r.Context()).WithError(err).
		WithField("path", r.URL.Path).
		WithField("method", r.Method).
		Error("request failed")
	writeMessage(w, http.StatusInternalServerError, "Erreur interne du serveur")
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
