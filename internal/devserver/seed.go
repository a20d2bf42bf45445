package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flocksync/internal/domain"
)

// Seed provisions a small demo congregation so a fresh devserver is usable
// immediately: two units, one account per role and a handful of members.
// It is idempotent per database file only in the crudest sense; run it once
// against an empty storage.
func (s *Server) Seed(ctx context.Context) error {
	unitAlpha := uuid.NewString()
	unitBravo := uuid.NewString()

	units := []map[string]any{
		{"id": unitAlpha, "name": "Alpha Unit", "created_at": seedTime()},
		{"id": unitBravo, "name": "Bravo Unit", "created_at": seedTime()},
	}
	for _, u := range units {
		if err := s.seedRow(ctx, "units", u); err != nil {
			return err
		}
	}

	subunits := []map[string]any{
		{"id": uuid.NewString(), "unit_id": unitAlpha, "name": "Alpha Choir"},
		{"id": uuid.NewString(), "unit_id": unitAlpha, "name": "Alpha Ushers"},
		{"id": uuid.NewString(), "unit_id": unitBravo, "name": "Bravo Choir"},
	}
	for _, su := range subunits {
		if err := s.seedRow(ctx, "subunits", su); err != nil {
			return err
		}
	}

	accounts := []struct {
		email, name, role, unit string
	}{
		{"head.alpha@flock.dev", "Ade Balogun", "unit_head", unitAlpha},
		{"pastor.alpha@flock.dev", "Ngozi Eze", "unit_pastor", unitAlpha},
		{"head.bravo@flock.dev", "Tunde Okafor", "unit_head", unitBravo},
		{"evangelist@flock.dev", "Chiamaka Obi", "evangelist", unitAlpha},
		{"admin@flock.dev", "Femi Adeyemi", "admin_pastor", ""},
		{"smr@flock.dev", "Bola Williams", "smr", ""},
	}
	for _, a := range accounts {
		if _, err := s.CreateUser(ctx, a.email, "changeme", a.name, domain.Role(a.role), a.unit); err != nil {
			return fmt.Errorf("seed user %s: %w", a.email, err)
		}
	}

	memberNames := map[string][]string{
		unitAlpha: {"Grace Adeola", "Samuel Nwosu", "Blessing Okeke", "David Ajayi"},
		unitBravo: {"Esther Uche", "Joshua Bello", "Mary Danjuma"},
	}
	for unit, names := range memberNames {
		for _, name := range names {
			row := map[string]any{
				"id":         uuid.NewString(),
				"unit_id":    unit,
				"full_name":  name,
				"phone":      "",
				"created_at": seedTime(),
			}
			if err := s.seedRow(ctx, "members", row); err != nil {
				return err
			}
		}
	}

	welcome := map[string]any{
		"id":         uuid.NewString(),
		"title":      "Welcome",
		"body":       "<p>Welcome to the development backend.</p>",
		"created_at": seedTime(),
	}
	return s.seedRow(ctx, "announcements", welcome)
}

func (s *Server) seedRow(ctx context.Context, collection string, row map[string]any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if _, err := s.storage.InsertRow(ctx, collection, payload); err != nil {
		return fmt.Errorf("seed %s: %w", collection, err)
	}
	return nil
}

func seedTime() string {
	return time.Now().UTC().Format(time.RFC3339)
}
