// Package plan holds the in-memory training-plan document and its
// validation rules. It performs no I/O; the local mirror and the remote
// document store are reconciled elsewhere.
package plan

import (
	"encoding/json"
	"fmt"
)

// DayCount is fixed: Monday through Saturday, index 0-5.
const DayCount = 6

// DayNames are the Portuguese weekday labels used throughout the app and in
// import files.
var DayNames = [DayCount]string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

// Series is one set within an exercise. All fields are free-form strings;
// numeric constraints are enforced at commit time, not per keystroke.
// Descanso is in seconds.
type Series struct {
	Peso     string `json:"peso"`
	Reps     string `json:"reps"`
	RPE      string `json:"rpe"`
	Descanso string `json:"descanso"`
}

type Exercise struct {
	Name   string   `json:"name"`
	Obs    string   `json:"obs,omitempty"`
	Series []Series `json:"series"`
}

// Day is an ordered sequence of exercises. Order is the training sequence
// and must survive save/reload/sync cycles.
type Day []Exercise

// Plan is the single mutable source of truth in memory. Days never change
// count; the slot index is the only day identity.
type Plan struct {
	Days [DayCount]Day
}

// planDocument is the persisted JSON shape: {"days": {"0": [...], ...}}.
// Day keys are stringified indices.
type planDocument struct {
	Days map[string]Day `json:"days"`
}

// Parse decodes a persisted plan document. It never fails: malformed JSON
// yields an empty plan and missing day slots are backfilled with empty
// lists.
func Parse(raw []byte) Plan {
	var doc planDocument
	if len(raw) > 0 {
		// Decode errors are deliberately swallowed; a corrupt local
		// mirror must not brick the app.
		_ = json.Unmarshal(raw, &doc)
	}
	var p Plan
	for i := 0; i < DayCount; i++ {
		day := doc.Days[fmt.Sprintf("%d", i)]
		if day == nil {
			day = Day{}
		}
		p.Days[i] = normalizeDay(day)
	}
	return p
}

// Encode serializes the plan into its persisted document shape.
func (p Plan) Encode() []byte {
	doc := planDocument{Days: make(map[string]Day, DayCount)}
	for i := 0; i < DayCount; i++ {
		day := p.Days[i]
		if day == nil {
			day = Day{}
		}
		doc.Days[fmt.Sprintf("%d", i)] = day
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// Clone returns a deep copy, so callers can snapshot the plan atomically
// before handing it to an async writer.
func (p Plan) Clone() Plan {
	var out Plan
	for i := 0; i < DayCount; i++ {
		out.Days[i] = cloneDay(p.Days[i])
	}
	return out
}

func cloneDay(day Day) Day {
	out := make(Day, len(day))
	for i, ex := range day {
		series := make([]Series, len(ex.Series))
		copy(series, ex.Series)
		out[i] = Exercise{Name: ex.Name, Obs: ex.Obs, Series: series}
	}
	return out
}

func normalizeDay(day Day) Day {
	out := make(Day, 0, len(day))
	for _, ex := range day {
		if ex.Series == nil {
			ex.Series = []Series{}
		}
		out = append(out, ex)
	}
	return out
}

// Equal reports whether two plans hold the same days, exercises and series
// in the same order.
func (p Plan) Equal(other Plan) bool {
	for i := 0; i < DayCount; i++ {
		a, b := p.Days[i], other.Days[i]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j].Name != b[j].Name || a[j].Obs != b[j].Obs {
				return false
			}
			if len(a[j].Series) != len(b[j].Series) {
				return false
			}
			for k := range a[j].Series {
				if a[j].Series[k] != b[j].Series[k] {
					return false
				}
			}
		}
	}
	return true
}

// CommitExercise validates and applies an exercise edit on day dayIndex.
// A negative exerciseIndex appends; otherwise the exercise at that position
// is replaced. On validation failure nothing is mutated and the returned
// error names the offending field and series ordinal. Returns the updated
// day on success.
func (p *Plan) CommitExercise(dayIndex, exerciseIndex int, name, obs string, series []Series) (Day, error) {
	if dayIndex < 0 || dayIndex >= DayCount {
		return nil, &ValidationError{Message: fmt.Sprintf("day index %d out of range", dayIndex)}
	}
	if name == "" {
		return nil, &ValidationError{Field: FieldName, Message: "exercise name is required"}
	}
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if series == nil {
		series = []Series{}
	}

	ex := Exercise{Name: name, Obs: obs, Series: series}
	day := p.Days[dayIndex]
	if exerciseIndex >= 0 {
		if exerciseIndex >= len(day) {
			return nil, &ValidationError{Message: fmt.Sprintf("exercise index %d out of range for day %d", exerciseIndex, dayIndex)}
		}
		day[exerciseIndex] = ex
	} else {
		day = append(day, ex)
	}
	p.Days[dayIndex] = day
	return day, nil
}

// ReorderDay applies a permutation of the day's current exercise indices.
// Either the full permutation is valid and applied, or the day is left
// untouched.
func (p *Plan) ReorderDay(dayIndex int, order []int) error {
	if dayIndex < 0 || dayIndex >= DayCount {
		return &ValidationError{Message: fmt.Sprintf("day index %d out of range", dayIndex)}
	}
	day := p.Days[dayIndex]
	if len(order) != len(day) {
		return &ValidationError{Message: fmt.Sprintf("invalid permutation: got %d indices, day has %d exercises", len(order), len(day))}
	}
	seen := make([]bool, len(day))
	for _, idx := range order {
		if idx < 0 || idx >= len(day) {
			return &ValidationError{Message: fmt.Sprintf("invalid permutation: index %d out of range", idx)}
		}
		if seen[idx] {
			return &ValidationError{Message: fmt.Sprintf("invalid permutation: duplicate index %d", idx)}
		}
		seen[idx] = true
	}
	reordered := make(Day, len(day))
	for pos, idx := range order {
		reordered[pos] = day[idx]
	}
	p.Days[dayIndex] = reordered
	return nil
}

// DeleteExercise removes the exercise at exerciseIndex from day dayIndex.
// A stale index (the exercise no longer exists, e.g. after a concurrent
// remote replace) is an error and a no-op, never a panic.
func (p *Plan) DeleteExercise(dayIndex, exerciseIndex int) error {
	if dayIndex < 0 || dayIndex >= DayCount {
		return &ValidationError{Message: fmt.Sprintf("day index %d out of range", dayIndex)}
	}
	day := p.Days[dayIndex]
	if exerciseIndex < 0 || exerciseIndex >= len(day) {
		return &ValidationError{Message: fmt.Sprintf("exercise index %d no longer exists on day %d", exerciseIndex, dayIndex)}
	}
	p.Days[dayIndex] = append(day[:exerciseIndex], day[exerciseIndex+1:]...)
	return nil
}
