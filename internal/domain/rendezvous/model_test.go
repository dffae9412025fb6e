package rendezvous

import (
	"fmt"
	"testing"
	"time"
)

func TestNormalizeHeure(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "14:30", want: "14:30"},
		{in: "14:30:00", want: "14:30"},
		{in: "9:05", want: "09:05"},
		{in: "09:05:59", want: "09:05"},
		{in: "00:00", want: "00:00"},
		{in: "23:59", want: "23:59"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "14:5", wantErr: true},
		{in: "14:30:5", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:30:45:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := NormalizeHeure(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeHeure(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHeure(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeHeure(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func ExampleNormalizeHeure() {
	heure, _ := NormalizeHeure("14:30:00")
	fmt.Println(heure)
	// Output: 14:30
}

func TestPastDate(t *testing.T) {
	now := time.Date(2025, 3, 15, 13, 45, 0, 0, time.UTC)

	yesterday := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	if !PastDate(yesterday, now) {
		t.Error("yesterday should be past")
	}

	// Same calendar day counts as not past even if the moment has passed.
	earlier := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	if PastDate(earlier, now) {
		t.Error("today should not be past")
	}

	tomorrow := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	if PastDate(tomorrow, now) {
		t.Error("tomorrow should not be past")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusEnAttente, StatusConfirme, StatusAnnule, StatusModifie} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("pending") {
		t.Error("unknown status accepted")
	}
}

func TestDueForReminder(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	in12h := RendezVous{DateRdv: "2025-03-15", HeureRdv: "22:00"}
	if !in12h.DueForReminder(now) {
		t.Error("appointment in 12h should be due for reminder")
	}

	in30h := RendezVous{DateRdv: "2025-03-16", HeureRdv: "16:00"}
	if in30h.DueForReminder(now) {
		t.Error("appointment in 30h should not be due yet")
	}

	past := RendezVous{DateRdv: "2025-03-15", HeureRdv: "09:00"}
	if past.DueForReminder(now) {
		t.Error("appointment already started should not be due")
	}

	alreadySent := RendezVous{DateRdv: "2025-03-15", HeureRdv: "22:00", RappelEnvoye: true}
	if alreadySent.DueForReminder(now) {
		t.Error("reminded appointment should not be due again")
	}

	exactly24h := RendezVous{DateRdv: "2025-03-16", HeureRdv: "10:00"}
	if !exactly24h.DueForReminder(now) {
		t.Error("appointment exactly 24h out should be due")
	}
}
