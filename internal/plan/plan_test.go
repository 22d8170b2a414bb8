package plan

import (
	"errors"
	"testing"
)

func samplePlan() Plan {
	var p Plan
	for i := 0; i < DayCount; i++ {
		p.Days[i] = Day{}
	}
	p.Days[0] = Day{
		{Name: "Supino reto", Obs: "barra", Series: []Series{
			{Peso: "60", Reps: "8", RPE: "7", Descanso: "90"},
			{Peso: "62.5", Reps: "6", RPE: "8", Descanso: "120"},
		}},
		{Name: "Crucifixo", Series: []Series{{Peso: "14", Reps: "12"}}},
		{Name: "Tríceps corda", Series: []Series{}},
	}
	p.Days[3] = Day{
		{Name: "Agachamento", Series: []Series{{Peso: "80", Reps: "5", RPE: "8.5", Descanso: "180"}}},
	}
	return p
}

func TestEncodeParseRoundTrip(t *testing.T) {
	p := samplePlan()
	got := Parse(p.Encode())
	if !got.Equal(p) {
		t.Fatalf("round-trip changed the plan: got %+v want %+v", got, p)
	}
}

func TestParseMalformedYieldsEmptyPlan(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"days": 42}`, `[1,2,3]`} {
		p := Parse([]byte(raw))
		for i := 0; i < DayCount; i++ {
			if p.Days[i] == nil {
				t.Fatalf("raw %q: day %d is nil, want empty slice", raw, i)
			}
			if len(p.Days[i]) != 0 {
				t.Fatalf("raw %q: day %d not empty", raw, i)
			}
		}
	}
}

func TestParseBackfillsMissingDays(t *testing.T) {
	p := Parse([]byte(`{"days":{"2":[{"name":"Remada","series":[]}]}}`))
	if len(p.Days[2]) != 1 || p.Days[2][0].Name != "Remada" {
		t.Fatalf("day 2 not preserved: %+v", p.Days[2])
	}
	for _, i := range []int{0, 1, 3, 4, 5} {
		if p.Days[i] == nil || len(p.Days[i]) != 0 {
			t.Fatalf("day %d should be backfilled empty, got %+v", i, p.Days[i])
		}
	}
}

func TestCommitExerciseAppendAndReplace(t *testing.T) {
	p := samplePlan()
	day, err := p.CommitExercise(1, -1, "Levantamento terra", "", []Series{{Peso: "100", Reps: "5"}})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if len(day) != 1 || day[0].Name != "Levantamento terra" {
		t.Fatalf("unexpected day after append: %+v", day)
	}

	day, err = p.CommitExercise(1, 0, "Levantamento terra", "pegada mista", []Series{{Peso: "110", Reps: "3"}})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if len(day) != 1 || day[0].Obs != "pegada mista" || day[0].Series[0].Peso != "110" {
		t.Fatalf("unexpected day after replace: %+v", day)
	}
}

func TestCommitExerciseValidation(t *testing.T) {
	cases := []struct {
		name    string
		series  []Series
		field   string
		ordinal int
	}{
		{"rpe too high", []Series{{RPE: "11"}}, FieldRPE, 1},
		{"rpe too low", []Series{{RPE: "0.5"}}, FieldRPE, 1},
		{"rpe not numeric", []Series{{RPE: "hard"}}, FieldRPE, 1},
		{"reps negative", []Series{{Reps: "-1"}}, FieldReps, 1},
		{"reps fractional", []Series{{Reps: "2.5"}}, FieldReps, 1},
		{"peso negative", []Series{{Peso: "-20"}}, FieldPeso, 1},
		{"descanso negative", []Series{{Descanso: "-30"}}, FieldDescanso, 1},
		{"second row flagged", []Series{{RPE: "9"}, {RPE: "12"}}, FieldRPE, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := samplePlan()
			before := p.Clone()
			_, err := p.CommitExercise(0, 0, "Supino reto", "", tc.series)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field || verr.Ordinal != tc.ordinal {
				t.Fatalf("flagged %s/%d, want %s/%d", verr.Field, verr.Ordinal, tc.field, tc.ordinal)
			}
			if !p.Equal(before) {
				t.Fatal("rejected commit mutated the plan")
			}
		})
	}
}

func TestCommitExerciseEmptyFieldsAllowed(t *testing.T) {
	p := samplePlan()
	if _, err := p.CommitExercise(2, -1, "Mobilidade", "", []Series{{}, {Peso: "", Reps: "", RPE: "", Descanso: ""}}); err != nil {
		t.Fatalf("empty series fields must be accepted: %v", err)
	}
}

func TestCommitExerciseRequiresName(t *testing.T) {
	p := samplePlan()
	before := p.Clone()
	_, err := p.CommitExercise(0, -1, "", "", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != FieldName {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if !p.Equal(before) {
		t.Fatal("rejected commit mutated the plan")
	}
}

func TestReorderDay(t *testing.T) {
	p := samplePlan()
	original := p.Clone()
	if err := p.ReorderDay(0, []int{2, 0, 1}); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}
	want := []string{"Tríceps corda", "Supino reto", "Crucifixo"}
	for i, name := range want {
		if p.Days[0][i].Name != name {
			t.Fatalf("position %d: got %q want %q", i, p.Days[0][i].Name, name)
		}
	}

	invalid := [][]int{
		{0, 1},          // wrong length
		{0, 1, 3},       // out of range
		{0, 0, 1},       // duplicate
		{-1, 0, 1},      // negative
		{0, 1, 2, 2},    // too long
	}
	for _, order := range invalid {
		p2 := original.Clone()
		if err := p2.ReorderDay(0, order); err == nil {
			t.Fatalf("order %v: expected error", order)
		}
		if !p2.Equal(original) {
			t.Fatalf("order %v: failed reorder mutated the day", order)
		}
	}
}

func TestDeleteExercise(t *testing.T) {
	p := samplePlan()
	if err := p.DeleteExercise(0, 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(p.Days[0]) != 2 || p.Days[0][1].Name != "Tríceps corda" {
		t.Fatalf("unexpected day after delete: %+v", p.Days[0])
	}

	// Stale index after a concurrent replacement shrank the day.
	before := p.Clone()
	if err := p.DeleteExercise(0, 5); err == nil {
		t.Fatal("stale index must error")
	}
	if !p.Equal(before) {
		t.Fatal("failed delete mutated the plan")
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := samplePlan()
	c := p.Clone()
	c.Days[0][0].Series[0].Peso = "999"
	c.Days[0][0].Name = "changed"
	if p.Days[0][0].Series[0].Peso == "999" || p.Days[0][0].Name == "changed" {
		t.Fatal("Clone shares backing storage with the original")
	}
}
