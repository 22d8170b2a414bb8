// Package remote adapts the Postgres-backed document hierarchy
// (user → ficha → dia → exercicio → serie) into load, save and watch
// operations on whole plan snapshots.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"treinos/api/internal/plan"
)

var (
	// ErrNotFound marks a document that does not exist under its parent.
	ErrNotFound = errors.New("remote: document not found")
	// ErrNotInitialized marks an adapter with no backing connection. The
	// app degrades to local-only instead of hanging.
	ErrNotInitialized = errors.New("remote: document service not initialized")
)

// Ficha is the top-level plan-variant document.
type Ficha struct {
	ID        string
	Name      string
	Revision  int64
	UpdatedAt time.Time
}

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// EnsureFicha creates the ficha document if it does not exist and returns
// it.
func (s *DocumentStore) EnsureFicha(ctx context.Context, userID, fichaID, name string) (Ficha, error) {
	if err := s.ready(); err != nil {
		return Ficha{}, err
	}
	var f Ficha
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO fichas (id, user_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET updated_at = fichas.updated_at
		RETURNING id, name, revision, updated_at
	`, fichaID, userID, name).Scan(&f.ID, &f.Name, &f.Revision, &f.UpdatedAt)
	if err != nil {
		return Ficha{}, fmt.Errorf("ensure ficha: %w", err)
	}
	return f, nil
}

// ListFichas returns the user's plan variants, oldest first.
func (s *DocumentStore) ListFichas(ctx context.Context, userID string) ([]Ficha, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, revision, updated_at
		FROM fichas
		WHERE user_id=$1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list fichas: %w", err)
	}
	defer rows.Close()

	items := make([]Ficha, 0)
	for rows.Next() {
		var item Ficha
		if err := rows.Scan(&item.ID, &item.Name, &item.Revision, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ficha: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fichas: %w", err)
	}
	return items, nil
}

// Revision returns the ficha's current revision counter. The watcher polls
// this instead of diffing documents.
func (s *DocumentStore) Revision(ctx context.Context, userID, fichaID string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var revision int64
	err := s.db.QueryRowContext(ctx, `
		SELECT revision FROM fichas WHERE user_id=$1 AND id=$2
	`, userID, fichaID).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return revision, nil
}

type diaRow struct {
	id    string
	index int
}

// LoadFicha materializes the full plan snapshot: every dia ordered by its
// explicit index field, every exercicio under it, every serie under that,
// fetched with a fan-out and gathered into one plan. The whole snapshot is
// rebuilt on every call; there is no incremental diffing.
func (s *DocumentStore) LoadFicha(ctx context.Context, userID, fichaID string) (plan.Plan, error) {
	var out plan.Plan
	for i := range out.Days {
		out.Days[i] = plan.Day{}
	}
	if err := s.ready(); err != nil {
		return out, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM fichas WHERE user_id=$1 AND id=$2)
	`, userID, fichaID).Scan(&exists); err != nil {
		return out, fmt.Errorf("lookup ficha: %w", err)
	}
	if !exists {
		return out, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day_index FROM dias WHERE ficha_id=$1 ORDER BY day_index ASC
	`, fichaID)
	if err != nil {
		return out, fmt.Errorf("list dias: %w", err)
	}
	dias := make([]diaRow, 0, plan.DayCount)
	for rows.Next() {
		var d diaRow
		if err := rows.Scan(&d.id, &d.index); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan dia: %w", err)
		}
		dias = append(dias, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, fmt.Errorf("iterate dias: %w", err)
	}
	rows.Close()

	days := make([]plan.Day, len(dias))
	g, gctx := errgroup.WithContext(ctx)
	for i, dia := range dias {
		g.Go(func() error {
			day, err := s.loadDia(gctx, dia.id)
			if err != nil {
				return err
			}
			days[i] = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	for i, dia := range dias {
		if dia.index < 0 || dia.index >= plan.DayCount {
			continue
		}
		out.Days[dia.index] = days[i]
	}
	return out, nil
}

func (s *DocumentStore) loadDia(ctx context.Context, diaID string) (plan.Day, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, obs FROM exercicios WHERE dia_id=$1 ORDER BY position ASC
	`, diaID)
	if err != nil {
		return nil, fmt.Errorf("list exercicios: %w", err)
	}
	type exRow struct {
		id       string
		exercise plan.Exercise
	}
	exs := make([]exRow, 0)
	for rows.Next() {
		var row exRow
		if err := rows.Scan(&row.id, &row.exercise.Name, &row.exercise.Obs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan exercicio: %w", err)
		}
		exs = append(exs, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate exercicios: %w", err)
	}
	rows.Close()

	g, gctx := errgroup.WithContext(ctx)
	for i := range exs {
		g.Go(func() error {
			series, err := s.loadSeries(gctx, exs[i].id)
			if err != nil {
				return err
			}
			exs[i].exercise.Series = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	day := make(plan.Day, len(exs))
	for i, row := range exs {
		day[i] = row.exercise
	}
	return day, nil
}

func (s *DocumentStore) loadSeries(ctx context.Context, exercicioID string) ([]plan.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT peso, reps, rpe, descanso FROM series WHERE exercicio_id=$1 ORDER BY position ASC
	`, exercicioID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	series := make([]plan.Series, 0)
	for rows.Next() {
		var item plan.Series
		if err := rows.Scan(&item.Peso, &item.Reps, &item.RPE, &item.Descanso); err != nil {
			return nil, fmt.Errorf("scan serie: %w", err)
		}
		series = append(series, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return series, nil
}

// SaveFicha replaces the remote representation of the whole plan in one
// transaction and bumps the revision once. Each day is whole-day-replace:
// existing exercicio documents are deleted (series cascade) and re-created
// from memory, so reorders and deletions never leave orphans behind.
func (s *DocumentStore) SaveFicha(ctx context.Context, userID, fichaID string, p plan.Plan) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fichas (id, user_id) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, fichaID, userID); err != nil {
		return fmt.Errorf("ensure ficha: %w", err)
	}

	for dayIndex := 0; dayIndex < plan.DayCount; dayIndex++ {
		if err := replaceDay(ctx, tx, fichaID, dayIndex, p.Days[dayIndex]); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE fichas SET revision = revision + 1, updated_at = NOW()
		WHERE user_id=$1 AND id=$2
	`, userID, fichaID); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// SaveDay replaces a single day's documents and bumps the revision.
func (s *DocumentStore) SaveDay(ctx context.Context, userID, fichaID string, dayIndex int, day plan.Day) error {
	if err := s.ready(); err != nil {
		return err
	}
	if dayIndex < 0 || dayIndex >= plan.DayCount {
		return fmt.Errorf("day index %d out of range", dayIndex)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fichas (id, user_id) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, fichaID, userID); err != nil {
		return fmt.Errorf("ensure ficha: %w", err)
	}
	if err := replaceDay(ctx, tx, fichaID, dayIndex, day); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE fichas SET revision = revision + 1, updated_at = NOW()
		WHERE user_id=$1 AND id=$2
	`, userID, fichaID); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func replaceDay(ctx context.Context, tx *sql.Tx, fichaID string, dayIndex int, day plan.Day) error {
	var diaID string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO dias (id, ficha_id, title, day_index)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ficha_id, day_index) DO UPDATE SET title=EXCLUDED.title
		RETURNING id
	`, uuid.NewString(), fichaID, plan.DayNames[dayIndex], dayIndex).Scan(&diaID)
	if err != nil {
		return fmt.Errorf("upsert dia %d: %w", dayIndex, err)
	}

	// Series rows go with their exercicios via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM exercicios WHERE dia_id=$1`, diaID); err != nil {
		return fmt.Errorf("clear dia %d: %w", dayIndex, err)
	}

	for position, ex := range day {
		exercicioID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exercicios (id, dia_id, name, obs, position)
			VALUES ($1, $2, $3, $4, $5)
		`, exercicioID, diaID, ex.Name, ex.Obs, position); err != nil {
			return fmt.Errorf("insert exercicio: %w", err)
		}
		for seriePos, serie := range ex.Series {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO series (id, exercicio_id, peso, reps, rpe, descanso, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.NewString(), exercicioID, serie.Peso, serie.Reps, serie.RPE, serie.Descanso, seriePos); err != nil {
				return fmt.Errorf("insert serie: %w", err)
			}
		}
	}
	return nil
}
