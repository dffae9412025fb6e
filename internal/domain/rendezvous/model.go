// Package rendezvous defines the appointment domain model and the wire
// date/time conventions shared by the service, storage and HTTP layers.
package rendezvous

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

// Recognized appointment statuses.
const (
	StatusEnAttente Status = "en_attente"
	StatusConfirme  Status = "confirme"
	StatusAnnule    Status = "annule"
	StatusModifie   Status = "modifie"
)

// ValidStatus reports whether s is one of the recognized statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusEnAttente, StatusConfirme, StatusAnnule, StatusModifie:
		return true
	}
	return false
}

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

// RendezVous is an appointment requested by a citizen (contribuable) against
// a motif and the agent bound to it. DateRdv holds a DateLayout date and
// HeureRdv an HH:MM time, both kept as strings to preserve the wire values.
type RendezVous struct {
	ID                int64     `json:"id"`
	Reference         string    `json:"reference"`
	ContribuableNom   string    `json:"contribuable_nom"`
	ContribuableEmail string    `json:"contribuable_email"`
	Telephone         string    `json:"telephone"`
	MotifID           int64     `json:"motif_id"`
	AgentID           int64     `json:"agent_id"`
	DateRdv           string    `json:"date_rdv"`
	HeureRdv          string    `json:"heure_rdv"`
	Statut            Status    `json:"statut"`
	RappelEnvoye      bool      `json:"rappel_envoye"`
	CreatedAt         time.Time `json:"-"`
}

// Listed is an appointment row joined with display fields from its motif and
// agent, as returned by the list endpoints.
type Listed struct {
	RendezVous
	MotifLibelle string `json:"motif_libelle"`
	AgentNom     string `json:"agent_nom"`
	AgentEmail   string `json:"-"`
}

// ParseDate parses a wire-format appointment date.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return d, nil
}

// NormalizeHeure validates an HH:MM or HH:MM:SS time-of-day value and
// truncates it to minute precision. Single-digit hours are zero-padded.
func NormalizeHeure(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("invalid time %q", value)
	}

	// Hours may omit the leading zero; minutes and seconds may not.
	hour, err := parseComponent(parts[0], 23)
	if err != nil {
		return "", fmt.Errorf("invalid time %q", value)
	}
	minute, err := parseComponent(parts[1], 59)
	if err != nil || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid time %q", value)
	}
	if len(parts) == 3 {
		if _, err := parseComponent(parts[2], 59); err != nil || len(parts[2]) != 2 {
			return "", fmt.Errorf("invalid time %q", value)
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func parseComponent(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, fmt.Errorf("bad component")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0, fmt.Errorf("bad component")
	}
	return n, nil
}

// PastDate reports whether date falls strictly before now's calendar day.
// Time-of-day is ignored.
func PastDate(date, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())
	return day.Before(today)
}

// StartTime combines the appointment date and HH:MM time into a point in
// time, in now's location. It is used for the 24-hour reminder window check.
func (r RendezVous) StartTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" 15:04", r.DateRdv+" "+r.HeureRdv, loc)
}

// DueForReminder reports whether the appointment starts within (now,
// now+24h] and has not yet been reminded.
func (r RendezVous) DueForReminder(now time.Time) bool {
	if r.RappelEnvoye {
		return false
	}
	start, err := r.StartTime(now.Location())
	if err != nil {
		return false
	}
	return start.After(now) && !start.After(now.Add(24*time.Hour))
}
