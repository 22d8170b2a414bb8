package calendar

import (
	"testing"
	"time"
)

func TestWeekKey(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2026-08-31", "2026-08-31"}, // a Monday maps to itself
		{"2026-09-02", "2026-08-31"}, // Wednesday
		{"2026-09-06", "2026-08-31"}, // Sunday belongs to the preceding Monday
	}
	for _, tc := range cases {
		parsed, err := time.Parse("2006-01-02", tc.date)
		if err != nil {
			t.Fatalf("bad test date: %v", err)
		}
		if got := WeekKey(parsed); got != tc.want {
			t.Fatalf("WeekKey(%s) = %s, want %s", tc.date, got, tc.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("2026-08-31"); err != nil {
		t.Fatalf("valid Monday rejected: %v", err)
	}
	if err := ValidateKey("2026-09-01"); err == nil {
		t.Fatal("Tuesday accepted as week key")
	}
	if err := ValidateKey("31/08/2026"); err == nil {
		t.Fatal("non-ISO date accepted")
	}
}

func TestGetOrCreateIsLazy(t *testing.T) {
	b := Book{}
	week := b.GetOrCreate("2026-08-31")
	if week.Days == nil {
		t.Fatal("new week has nil Days map")
	}
	if _, ok := b["2026-08-31"]; !ok {
		t.Fatal("week not created on first access")
	}

	b["2026-09-07"] = Week{Type: "deload", Load: 60}
	again := b.GetOrCreate("2026-09-07")
	if again.Type != "deload" || again.Load != 60 {
		t.Fatal("existing week replaced by GetOrCreate")
	}
}

func TestWeekValidate(t *testing.T) {
	ok := Week{Type: "choque", Load: 120, Days: map[string]string{"2026-09-01": "pesado"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid week rejected: %v", err)
	}
	if err := (Week{Load: 151}).Validate(); err == nil {
		t.Fatal("load above 150 accepted")
	}
	if err := (Week{Load: -1}).Validate(); err == nil {
		t.Fatal("negative load accepted")
	}
	bad := Week{Days: map[string]string{"primeiro": "x"}}
	if err := bad.Validate(); err == nil {
		t.Fatal("non-ISO day note key accepted")
	}
}

func TestBlankKeepsWeekAlive(t *testing.T) {
	b := Book{"2026-08-31": {Type: "base", Load: 80, Note: "volume", Days: map[string]string{"2026-09-01": "leve"}}}
	week := b["2026-08-31"]
	week.Blank()
	b["2026-08-31"] = week
	got := b["2026-08-31"]
	if got.Type != "" || got.Load != 0 || got.Note != "" || len(got.Days) != 0 {
		t.Fatalf("blank did not clear fields: %+v", got)
	}
	if _, ok := b["2026-08-31"]; !ok {
		t.Fatal("blanked week was deleted")
	}
}

func TestParseBookMalformed(t *testing.T) {
	b := ParseBook([]byte("not json"))
	if b == nil || len(b) != 0 {
		t.Fatalf("malformed book should parse empty, got %+v", b)
	}
}
