// Package calendar holds the weekly load/periodization notes shown next to
// the training plan.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// Week is one calendar week, keyed by the ISO date of its Monday. Weeks are
// created lazily on first access and never deleted; clearing blanks the
// fields instead.
type Week struct {
	Type string            `json:"type"`
	Load int               `json:"load"`
	Note string            `json:"note"`
	Days map[string]string `json:"days"`
}

// MaxLoad is the upper bound of the planned-load percentage.
const MaxLoad = 150

// WeekKey returns the ISO date of the Monday of the week containing t.
func WeekKey(t time.Time) string {
	// time.Weekday has Sunday=0; shift so Monday=0.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format("2006-01-02")
}

// ValidateKey checks that key is an ISO date falling on a Monday.
func ValidateKey(key string) error {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return fmt.Errorf("invalid week key %q: %w", key, err)
	}
	if t.Weekday() != time.Monday {
		return fmt.Errorf("week key %q is not a Monday", key)
	}
	return nil
}

// Normalize fills nil maps and clamps nothing: out-of-range load is an
// error at the edit boundary, not silently adjusted.
func (w *Week) Normalize() {
	if w.Days == nil {
		w.Days = map[string]string{}
	}
}

// Validate checks field constraints before a week is persisted.
func (w Week) Validate() error {
	if w.Load < 0 || w.Load > MaxLoad {
		return fmt.Errorf("load %d out of range 0-%d", w.Load, MaxLoad)
	}
	for day := range w.Days {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return fmt.Errorf("invalid day note key %q: %w", day, err)
		}
	}
	return nil
}

// Blank clears every field while keeping the week itself alive.
func (w *Week) Blank() {
	w.Type = ""
	w.Load = 0
	w.Note = ""
	w.Days = map[string]string{}
}

// Book is the locally cached set of weeks, stored as one JSON document
// under the calendar key.
type Book map[string]Week

// ParseBook decodes the cached calendar document; malformed input yields an
// empty book.
func ParseBook(raw []byte) Book {
	var b Book
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &b)
	}
	if b == nil {
		b = Book{}
	}
	for key, week := range b {
		week.Normalize()
		b[key] = week
	}
	return b
}

// Encode serializes the book for the local store.
func (b Book) Encode() []byte {
	raw, _ := json.Marshal(b)
	return raw
}

// GetOrCreate returns the week under key, creating an empty one on first
// access.
func (b Book) GetOrCreate(key string) Week {
	if week, ok := b[key]; ok {
		week.Normalize()
		return week
	}
	week := Week{Days: map[string]string{}}
	b[key] = week
	return week
}
