// Package notify delivers citizen and agent emails around appointment
// lifecycle events. Delivery is best-effort: the dispatcher logs transport
// failures and never surfaces them to callers.
package notify

import (
	"context"
	"fmt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/metrics"
)

// Message is a single outbound email. Kind labels the triggering event for
// metrics.
type Message struct {
	To      string
	Subject string
	Body    string
	Kind    string
}

// Notifier sends a single message. Implementations may fail; the Dispatcher
// is responsible for containing those failures.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Dispatcher wraps a Notifier with the fire-and-forget contract: one attempt
// per event, errors logged and swallowed.
type Dispatcher struct {
	notifier Notifier
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher around the given transport. A nil
// notifier disables delivery; dispatch attempts are then logged only.
func NewDispatcher(notifier Notifier, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewDefault("notify")
	}
	return &Dispatcher{notifier: notifier, log: log}
}

// Dispatch attempts delivery of msg exactly once. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d.notifier == nil {
		d.log.WithContext(ctx).
			WithField("to", msg.To).
			WithField("subject", msg.Subject).
			Debug("mail transport disabled; notification dropped")
		return
	}
	if err := d.notifier.Send(ctx, msg); err != nil {
		metrics.RecordNotification(msg.Kind, false)
		d.log.WithContext(ctx).WithError(err).
			WithField("to", msg.To).
			WithField("subject", msg.Subject).
			Warn("notification delivery failed")
		return
	}
	metrics.RecordNotification(msg.Kind, true)
	d.log.WithContext(ctx).
		WithField("to", msg.To).
		WithField("subject", msg.Subject).
		Info("notification sent")
}

// StatusChangeMessage builds the citizen-facing email sent after an
// appointment status update.
func StatusChangeMessage(r rendezvous.RendezVous, agentNom string) Message {
	return Message{
		To:      r.ContribuableEmail,
		Kind:    "status_change",
		Subject: fmt.Sprintf("Mise à jour de votre rendez-vous %s", r.Reference),
		Body: fmt.Sprintf(
			"Bonjour %s,\n\nVotre rendez-vous %s a été mis à jour.\n\nStatut : %s\nDate : %s\nHeure : %s\nAgent : %s\n\nCordialement,\nLe service des rendez-vous",
			r.ContribuableNom, r.Reference, r.Statut, r.DateRdv, r.HeureRdv, agentNom),
	}
}

// ReminderMessage builds the agent-facing email for an appointment starting
// within the next 24 hours.
func ReminderMessage(row rendezvous.Listed) Message {
	return Message{
		To:      row.AgentEmail,
		Kind:    "reminder",
		Subject: fmt.Sprintf("Rappel : rendez-vous %s le %s à %s", row.Reference, row.DateRdv, row.HeureRdv),
		Body: fmt.Sprintf(
			"Bonjour %s,\n\nRappel : vous avez un rendez-vous dans les prochaines 24 heures.\n\nRéférence : %s\nContribuable : %s (%s)\nMotif : %s\nDate : %s\nHeure : %s\n",
			row.AgentNom, row.Reference, row.ContribuableNom, row.ContribuableEmail,
			row.MotifLibelle, row.DateRdv, row.HeureRdv),
	}
}
