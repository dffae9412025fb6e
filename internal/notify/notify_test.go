package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgi-platform/rendezvous-service/internal/domain/rendezvous"
)

func TestDispatchSwallowsTransportErrors(t *testing.T) {
	var attempts int
	failing := NotifierFunc(func(context.Context, Message) error {
		attempts++
		return errors.New("connection refused")
	})

	d := NewDispatcher(failing, nil)
	d.Dispatch(context.Background(), Message{To: "x@example.test", Subject: "s", Body: "b"})

	assert.Equal(t, 1, attempts, "exactly one delivery attempt")
}

func TestDispatchWithNilNotifier(t *testing.T) {
	d := NewDispatcher(nil, nil)
	// Must not panic; delivery is simply disabled.
	d.Dispatch(context.Background(), Message{To: "x@example.test"})
}

func TestStatusChangeMessage(t *testing.T) {
	msg := StatusChangeMessage(rendezvous.RendezVous{
		Reference:         "RDV-42",
		ContribuableNom:   "Moussa Ndiaye",
		ContribuableEmail: "moussa@example.test",
		DateRdv:           "2025-06-20",
		HeureRdv:          "14:30",
		Statut:            rendezvous.StatusConfirme,
	}, "Awa Diop")

	require.Equal(t, "moussa@example.test", msg.To)
	assert.Contains(t, msg.Subject, "RDV-42")
	assert.Contains(t, msg.Body, "confirme")
	assert.Contains(t, msg.Body, "2025-06-20")
	assert.Contains(t, msg.Body, "Awa Diop")
}

func TestReminderMessageTargetsAgent(t *testing.T) {
	msg := ReminderMessage(rendezvous.Listed{
		RendezVous: rendezvous.RendezVous{
			Reference:         "RDV-42",
			ContribuableNom:   "Moussa Ndiaye",
			ContribuableEmail: "moussa@example.test",
			DateRdv:           "2025-06-20",
			HeureRdv:          "14:30",
		},
		MotifLibelle: "Déclaration TVA",
		AgentNom:     "Awa Diop",
		AgentEmail:   "awa@dgi.test",
	})

	require.Equal(t, "awa@dgi.test", msg.To, "reminder goes to the agent, not the citizen")
	assert.Contains(t, msg.Subject, "RDV-42")
	assert.Contains(t, msg.Body, "Déclaration TVA")
}
