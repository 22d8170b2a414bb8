package remote

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"treinos/api/internal/plan"
)

func TestUninitializedStoreSurfacesSentinel(t *testing.T) {
	ctx := context.Background()
	var nilStore *DocumentStore
	stores := []*DocumentStore{nilStore, NewDocumentStore(nil)}
	for _, s := range stores {
		if _, err := s.LoadFicha(ctx, "u", "f"); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("LoadFicha: got %v, want ErrNotInitialized", err)
		}
		if err := s.SaveFicha(ctx, "u", "f", plan.Plan{}); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("SaveFicha: got %v, want ErrNotInitialized", err)
		}
		if _, err := s.Revision(ctx, "u", "f"); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("Revision: got %v, want ErrNotInitialized", err)
		}
		if _, err := s.Watch(ctx, "u", "f", time.Second, nil, nil); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("Watch: got %v, want ErrNotInitialized", err)
		}
		if _, err := s.GetWeek(ctx, "u", "2026-08-31"); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("GetWeek: got %v, want ErrNotInitialized", err)
		}
	}
}

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return url
}

// TestFichaRoundTripIntegration exercises the whole-day-replace writer and
// the fan-out loader against a real database.
func TestFichaRoundTripIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := NewDocumentStore(db)
	userID := "it-user"
	fichaID := "it-ficha"

	if _, err := store.EnsureFicha(ctx, userID, fichaID, "Hipertrofia A"); err != nil {
		t.Fatalf("ensure ficha: %v", err)
	}

	var p plan.Plan
	p.Days[0] = plan.Day{
		{Name: "Supino reto", Obs: "barra", Series: []plan.Series{
			{Peso: "60", Reps: "8", RPE: "7", Descanso: "90"},
			{Peso: "62.5", Reps: "6", RPE: "8", Descanso: "120"},
		}},
		{Name: "Crucifixo", Series: []plan.Series{{Peso: "14", Reps: "12"}}},
	}
	p.Days[4] = plan.Day{{Name: "Agachamento", Series: []plan.Series{{Peso: "80", Reps: "5"}}}}

	if err := store.SaveFicha(ctx, userID, fichaID, p); err != nil {
		t.Fatalf("save ficha: %v", err)
	}
	rev1, err := store.Revision(ctx, userID, fichaID)
	if err != nil {
		t.Fatalf("read revision: %v", err)
	}

	loaded, err := store.LoadFicha(ctx, userID, fichaID)
	if err != nil {
		t.Fatalf("load ficha: %v", err)
	}
	if !loaded.Equal(plan.Parse(p.Encode())) {
		t.Fatalf("round-trip changed the plan:\n got %+v\nwant %+v", loaded, p)
	}

	// Whole-day replace: a reorder must not leave orphaned documents.
	if err := p.ReorderDay(0, []int{1, 0}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if err := store.SaveDay(ctx, userID, fichaID, 0, p.Days[0]); err != nil {
		t.Fatalf("save day: %v", err)
	}
	rev2, err := store.Revision(ctx, userID, fichaID)
	if err != nil {
		t.Fatalf("read revision: %v", err)
	}
	if rev2 <= rev1 {
		t.Fatalf("revision did not advance: %d -> %d", rev1, rev2)
	}
	loaded, err = store.LoadFicha(ctx, userID, fichaID)
	if err != nil {
		t.Fatalf("reload ficha: %v", err)
	}
	if len(loaded.Days[0]) != 2 || loaded.Days[0][0].Name != "Crucifixo" {
		t.Fatalf("reorder not persisted: %+v", loaded.Days[0])
	}
	if len(loaded.Days[0][1].Series) != 2 {
		t.Fatalf("series lost on whole-day replace: %+v", loaded.Days[0][1])
	}
}

func TestLoadMissingFichaIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := NewDocumentStore(db)
	if _, err := store.LoadFicha(ctx, "nobody", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
