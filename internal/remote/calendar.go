package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"treinos/api/internal/calendar"
)

// GetWeek reads a calendar week document. Returns ErrNotFound when the
// week has never been written; callers create it lazily.
func (s *DocumentStore) GetWeek(ctx context.Context, userID, weekStart string) (calendar.Week, error) {
	if err := s.ready(); err != nil {
		return calendar.Week{}, err
	}
	var week calendar.Week
	var dayNotes []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT week_type, load_percent, note, day_notes
		FROM calendar_weeks
		WHERE user_id=$1 AND week_start=$2
	`, userID, weekStart).Scan(&week.Type, &week.Load, &week.Note, &dayNotes)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Week{}, ErrNotFound
	}
	if err != nil {
		return calendar.Week{}, fmt.Errorf("get calendar week: %w", err)
	}
	_ = json.Unmarshal(dayNotes, &week.Days)
	week.Normalize()
	return week, nil
}

// PutWeek upserts a calendar week document.
func (s *DocumentStore) PutWeek(ctx context.Context, userID, weekStart string, week calendar.Week) error {
	if err := s.ready(); err != nil {
		return err
	}
	week.Normalize()
	dayNotes, err := json.Marshal(week.Days)
	if err != nil {
		return fmt.Errorf("marshal day notes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calendar_weeks (user_id, week_start, week_type, load_percent, note, day_notes)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (user_id, week_start)
		DO UPDATE SET week_type=EXCLUDED.week_type, load_percent=EXCLUDED.load_percent,
			note=EXCLUDED.note, day_notes=EXCLUDED.day_notes, updated_at=NOW()
	`, userID, weekStart, week.Type, week.Load, week.Note, string(dayNotes))
	if err != nil {
		return fmt.Errorf("put calendar week: %w", err)
	}
	return nil
}
