// Package planfile reads and writes the single-JSON plan export file.
package planfile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"treinos/api/internal/plan"
)

// Version of the export format.
const Version = 1

// ParseError marks a structurally malformed import; nothing is applied
// when it is returned.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid plan file: " + e.Reason
}

// File is the exported document: {version, exportedAt, planId, days}.
type File struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exportedAt"`
	PlanID     string              `json:"planId"`
	Days       map[string]plan.Day `json:"days"`
}

// Export serializes the plan with numeric day keys.
func Export(planID string, p plan.Plan) ([]byte, error) {
	file := File{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		PlanID:     planID,
		Days:       make(map[string]plan.Day, plan.DayCount),
	}
	for i := 0; i < plan.DayCount; i++ {
		day := p.Days[i]
		if day == nil {
			day = plan.Day{}
		}
		file.Days[strconv.Itoa(i)] = day
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan file: %w", err)
	}
	return raw, nil
}

// rawFile decodes leniently: days stay raw so a single bad day key can be
// reported without partially applying the rest.
type rawFile struct {
	Version    int                        `json:"version"`
	PlanID     string                     `json:"planId"`
	Days       map[string]json.RawMessage `json:"days"`
}

// Import parses an export file into a normalized 6-day plan. Day keys may
// be numeric indices or day names; every missing field defaults to its
// safe empty value. Malformed structure aborts the whole import.
func Import(raw []byte) (plan.Plan, string, error) {
	var p plan.Plan
	for i := range p.Days {
		p.Days[i] = plan.Day{}
	}

	var file rawFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return p, "", &ParseError{Reason: err.Error()}
	}
	if file.Days == nil {
		return p, "", &ParseError{Reason: "missing days object"}
	}

	for key, rawDay := range file.Days {
		index, ok := dayIndexForKey(key)
		if !ok {
			return p, "", &ParseError{Reason: fmt.Sprintf("unknown day key %q", key)}
		}
		var day plan.Day
		if err := json.Unmarshal(rawDay, &day); err != nil {
			return p, "", &ParseError{Reason: fmt.Sprintf("day %q: %s", key, err)}
		}
		if len(day) == 0 {
			continue
		}
		normalized := make(plan.Day, 0, len(day))
		for _, ex := range day {
			if ex.Series == nil {
				ex.Series = []plan.Series{}
			}
			normalized = append(normalized, ex)
		}
		// A day given under both its index and its name must not
		// duplicate; the populated key wins.
		if len(p.Days[index]) == 0 {
			p.Days[index] = normalized
		}
	}
	return p, file.PlanID, nil
}

func dayIndexForKey(key string) (int, bool) {
	if index, err := strconv.Atoi(key); err == nil {
		if index >= 0 && index < plan.DayCount {
			return index, true
		}
		return 0, false
	}
	for i, name := range plan.DayNames {
		if strings.EqualFold(key, name) {
			return i, true
		}
	}
	return 0, false
}
