// Package syncer keeps the in-memory training plan consistent across the
// local store, the remote document service and concurrent user edits,
// tolerating intermittent connectivity.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"treinos/api/internal/local"
	"treinos/api/internal/plan"
	"treinos/api/internal/remote"
)

// DefaultFichaID is the plan variant used until the user picks another one.
const DefaultFichaID = "treinos_v1"

// RemoteStore is the slice of the document adapter the reconciler needs.
type RemoteStore interface {
	LoadFicha(ctx context.Context, userID, fichaID string) (plan.Plan, error)
	SaveFicha(ctx context.Context, userID, fichaID string, p plan.Plan) error
	Watch(ctx context.Context, userID, fichaID string, interval time.Duration,
		onSnapshot func(plan.Plan, int64), onError func(error)) (func(), error)
}

// State of the reconciler with respect to the remote store.
type State int

const (
	StateIdle State = iota
	StateSavingRemote
	StatePendingRetry
)

func (s State) String() string {
	switch s {
	case StateSavingRemote:
		return "saving"
	case StatePendingRetry:
		return "pending"
	default:
		return "idle"
	}
}

// PendingWrite is the single outstanding unsynced snapshot. A newer
// enqueue overwrites an older one; the queue never holds more than the
// latest full plan.
type PendingWrite struct {
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"ts"`
}

// Status is a read-only view of the reconciler for the UI.
type Status struct {
	State       State      `json:"-"`
	StateLabel  string     `json:"state"`
	FichaID     string     `json:"fichaId"`
	Degraded    bool       `json:"degraded"`
	HasPending  bool       `json:"hasPending"`
	PendingTS   *time.Time `json:"pendingSince,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastSynced  *time.Time `json:"lastSyncedAt,omitempty"`
	InitialWarn string     `json:"initialWarning,omitempty"`
}

// Options tune the session; zero values fall back to the defaults
// (10s retry, 5s watch poll).
type Options struct {
	RetryInterval time.Duration
	WatchInterval time.Duration
}

// Session owns the in-memory plan and the machinery that mirrors it to
// the local store and the remote document store. Lifecycle is explicit:
// NewSession → Start → Close.
type Session struct {
	localStore local.Store
	remote     RemoteStore
	userID     string
	opts       Options

	// lifeCtx spans the session's lifetime; watchers and background saves
	// run under it, never under a request-scoped context.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu         sync.Mutex
	p          plan.Plan
	fichaID    string
	generation int
	state      State
	saving     bool
	dirty      bool
	pending    *PendingWrite
	online     bool
	closed     bool
	degraded   bool
	lastErr    string
	lastSynced *time.Time
	initWarn   string
	unwatch    func()

	retryOnce sync.Once
	retryStop chan struct{}
	wg        sync.WaitGroup
}

func NewSession(localStore local.Store, remoteStore RemoteStore, userID string, opts Options) *Session {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 10 * time.Second
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 5 * time.Second
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &Session{
		localStore: localStore,
		remote:     remoteStore,
		userID:     userID,
		opts:       opts,
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		fichaID:    DefaultFichaID,
		online:     true,
		retryStop:  make(chan struct{}),
	}
}

// Start loads the local snapshot first (no blank UI), restores any pending
// write left over from a previous run, then attempts a one-shot remote
// fetch. A returned document overwrites both the local mirror and memory;
// a failure leaves the local snapshot standing with a non-blocking
// warning.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if raw, ok, err := s.localStore.Get(ctx, local.KeyLastFicha); err == nil && ok && raw != "" {
		s.fichaID = raw
	}
	if raw, ok, err := s.localStore.Get(ctx, local.KeyPlan); err == nil && ok {
		s.p = plan.Parse([]byte(raw))
	} else {
		s.p = plan.Parse(nil)
	}
	if raw, ok, err := s.localStore.Get(ctx, local.KeyPending); err == nil && ok {
		var pw PendingWrite
		if json.Unmarshal([]byte(raw), &pw) == nil && len(pw.Payload) > 0 {
			s.pending = &pw
			s.state = StatePendingRetry
		} else {
			// Corrupt leftover; drop it rather than retry garbage.
			_ = s.localStore.Remove(ctx, local.KeyPending)
		}
	}
	fichaID := s.fichaID
	gen := s.generation
	hasPending := s.pending != nil
	s.mu.Unlock()

	if hasPending {
		s.armRetryTimer()
	}

	remotePlan, err := s.remote.LoadFicha(ctx, s.userID, fichaID)
	switch {
	case err == nil:
		s.installSnapshot(ctx, gen, remotePlan)
	case errors.Is(err, remote.ErrNotFound):
		// First run against an empty store; local data stands.
	case errors.Is(err, remote.ErrNotInitialized):
		s.mu.Lock()
		s.degraded = true
		s.initWarn = "remote store unavailable, working locally"
		s.mu.Unlock()
		return nil
	default:
		s.mu.Lock()
		s.initWarn = "could not sync with the server, using local data: " + err.Error()
		s.mu.Unlock()
		log.Printf("syncer: initial remote fetch failed: %v", err)
	}

	s.subscribe(fichaID, gen)
	return nil
}

// subscribe arms the change watcher for fichaID under generation gen. The
// watcher runs under the session lifetime context: callers may hold a
// request-scoped context that dies as soon as their handler returns.
func (s *Session) subscribe(fichaID string, gen int) {
	cancel, err := s.remote.Watch(s.lifeCtx, s.userID, fichaID, s.opts.WatchInterval,
		func(snapshot plan.Plan, revision int64) {
			s.installSnapshot(s.lifeCtx, gen, snapshot)
		},
		func(err error) {
			log.Printf("syncer: watch %s: %v", fichaID, err)
		})
	if err != nil {
		if !errors.Is(err, remote.ErrNotInitialized) {
			log.Printf("syncer: subscribe %s: %v", fichaID, err)
		}
		return
	}
	s.mu.Lock()
	if s.generation != gen || s.closed {
		// The session moved on while we were subscribing.
		s.mu.Unlock()
		cancel()
		return
	}
	s.unwatch = cancel
	s.mu.Unlock()
}

// installSnapshot atomically replaces the in-memory plan with a remote
// snapshot, unless the callback is stale (older generation) or local edits
// are still waiting to be pushed — the single-writer assumption makes the
// local state the newer one in that case.
func (s *Session) installSnapshot(ctx context.Context, gen int, snapshot plan.Plan) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	if s.saving || s.pending != nil {
		s.mu.Unlock()
		return
	}
	s.p = snapshot.Clone()
	raw := snapshot.Encode()
	s.mu.Unlock()

	if err := s.localStore.Set(ctx, local.KeyPlan, string(raw)); err != nil {
		log.Printf("syncer: mirror snapshot locally: %v", err)
	}
}

// Snapshot returns a deep copy of the current plan.
func (s *Session) Snapshot() plan.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Clone()
}

// FichaID returns the currently selected plan variant.
func (s *Session) FichaID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fichaID
}

// CommitExercise validates and applies an exercise edit, mirrors the plan
// locally and schedules a remote save. Validation failures mutate nothing.
func (s *Session) CommitExercise(ctx context.Context, dayIndex, exerciseIndex int, name, obs string, series []plan.Series) (plan.Day, error) {
	s.mu.Lock()
	day, err := s.p.CommitExercise(dayIndex, exerciseIndex, name, obs, series)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	raw := s.p.Encode()
	s.mu.Unlock()

	s.persistLocal(ctx, raw)
	s.scheduleSave()
	return day, nil
}

// ReorderDay applies a permutation of a day's exercises.
func (s *Session) ReorderDay(ctx context.Context, dayIndex int, order []int) error {
	s.mu.Lock()
	if err := s.p.ReorderDay(dayIndex, order); err != nil {
		s.mu.Unlock()
		return err
	}
	raw := s.p.Encode()
	s.mu.Unlock()

	s.persistLocal(ctx, raw)
	s.scheduleSave()
	return nil
}

// DeleteExercise removes an exercise; a stale index errors without
// touching the plan.
func (s *Session) DeleteExercise(ctx context.Context, dayIndex, exerciseIndex int) error {
	s.mu.Lock()
	if err := s.p.DeleteExercise(dayIndex, exerciseIndex); err != nil {
		s.mu.Unlock()
		return err
	}
	raw := s.p.Encode()
	s.mu.Unlock()

	s.persistLocal(ctx, raw)
	s.scheduleSave()
	return nil
}

// ReplacePlan installs an imported plan wholesale and syncs it.
func (s *Session) ReplacePlan(ctx context.Context, p plan.Plan) {
	s.mu.Lock()
	s.p = p.Clone()
	raw := s.p.Encode()
	s.mu.Unlock()

	s.persistLocal(ctx, raw)
	s.scheduleSave()
}

// persistLocal mirrors the plan to the local store. Failures degrade
// persistence silently (logged); the in-memory plan stays authoritative.
func (s *Session) persistLocal(ctx context.Context, raw []byte) {
	if err := s.localStore.Set(ctx, local.KeyPlan, string(raw)); err != nil {
		log.Printf("syncer: local persist failed: %v", err)
	}
}

// scheduleSave starts a remote save unless one is already in flight; the
// in-flight save marks the session dirty and re-runs with the latest
// snapshot when it completes. State is coalesced, not queued: only the
// newest full plan is ever sent. The save runs under the session lifetime
// context so a finished HTTP request cannot cancel it mid-write.
func (s *Session) scheduleSave() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.saving {
		s.dirty = true
		s.mu.Unlock()
		return
	}
	s.saving = true
	s.state = StateSavingRemote
	snapshot := s.p.Clone()
	fichaID := s.fichaID
	gen := s.generation
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSave(s.lifeCtx, gen, fichaID, snapshot)
	}()
}

func (s *Session) runSave(ctx context.Context, gen int, fichaID string, snapshot plan.Plan) {
	err := s.remote.SaveFicha(ctx, s.userID, fichaID, snapshot)

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.saving = false
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Coalesce: the pending payload always reflects the latest
		// committed state, overwriting any older pending write.
		latest := s.p.Encode()
		pw := &PendingWrite{Payload: latest, EnqueuedAt: time.Now()}
		s.pending = pw
		s.dirty = false
		s.saving = false
		s.state = StatePendingRetry
		s.degraded = errors.Is(err, remote.ErrNotInitialized)
		s.lastErr = err.Error()
		s.mu.Unlock()

		s.storePending(ctx, pw)
		s.armRetryTimer()
		log.Printf("syncer: remote save failed, sync postponed: %v", err)
		return
	}

	if s.dirty {
		// Edits landed while the save was in flight; push the newest
		// snapshot before settling.
		s.dirty = false
		next := s.p.Clone()
		s.mu.Unlock()
		s.runSave(ctx, gen, fichaID, next)
		return
	}

	now := time.Now()
	s.saving = false
	s.state = StateIdle
	s.pending = nil
	s.degraded = false
	s.lastErr = ""
	s.lastSynced = &now
	s.mu.Unlock()

	if err := s.localStore.Remove(ctx, local.KeyPending); err != nil {
		log.Printf("syncer: clear pending key: %v", err)
	}
}

func (s *Session) storePending(ctx context.Context, pw *PendingWrite) {
	raw, err := json.Marshal(pw)
	if err != nil {
		log.Printf("syncer: marshal pending write: %v", err)
		return
	}
	if err := s.localStore.Set(ctx, local.KeyPending, string(raw)); err != nil {
		log.Printf("syncer: enqueue pending failed: %v", err)
	}
}

// armRetryTimer starts the single system-wide retry loop. It runs for the
// session's lifetime and is a no-op while nothing is pending, so it never
// needs re-arming and cannot leak multiple instances.
func (s *Session) armRetryTimer() {
	s.retryOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(s.opts.RetryInterval)
			defer ticker.Stop()
			for {
				select {
				case <-s.retryStop:
					return
				case <-ticker.C:
					s.mu.Lock()
					shouldFlush := s.online && s.pending != nil && !s.saving && !s.closed
					s.mu.Unlock()
					if shouldFlush {
						s.FlushPending(context.Background())
					}
				}
			}
		}()
	})
}

// FlushPending retries the outstanding write immediately. It is also the
// network-reachability-regained hook. The write itself runs under the
// session lifetime context, not the caller's.
func (s *Session) FlushPending(ctx context.Context) {
	s.mu.Lock()
	if s.pending == nil || s.saving || s.closed {
		s.mu.Unlock()
		return
	}
	// The current in-memory plan supersedes the stored payload: every
	// commit since the failure re-encoded it, and last state wins.
	s.saving = true
	s.state = StateSavingRemote
	snapshot := s.p.Clone()
	fichaID := s.fichaID
	gen := s.generation
	s.mu.Unlock()

	s.runSave(s.lifeCtx, gen, fichaID, snapshot)
}

// SetOnline records network reachability; regaining the network flushes
// the pending write at once.
func (s *Session) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()
	if online && !wasOnline {
		s.FlushPending(ctx)
	}
}

// SwitchFicha changes the active plan variant. The previous watcher is
// cancelled before the new subscription is armed, and the generation bump
// makes any late callback from the old subscription discard itself.
func (s *Session) SwitchFicha(ctx context.Context, fichaID string) error {
	if fichaID == "" {
		return errors.New("ficha id is required")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	if fichaID == s.fichaID {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation
	s.fichaID = fichaID
	s.pending = nil
	s.dirty = false
	s.state = StateIdle
	old := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if old != nil {
		old()
	}
	if err := s.localStore.Set(ctx, local.KeyLastFicha, fichaID); err != nil {
		log.Printf("syncer: persist ficha selection: %v", err)
	}
	if err := s.localStore.Remove(ctx, local.KeyPending); err != nil {
		log.Printf("syncer: clear pending on switch: %v", err)
	}

	remotePlan, err := s.remote.LoadFicha(ctx, s.userID, fichaID)
	switch {
	case err == nil:
		s.mu.Lock()
		if gen == s.generation && !s.closed {
			s.p = remotePlan.Clone()
			raw := remotePlan.Encode()
			s.mu.Unlock()
			s.persistLocal(ctx, raw)
		} else {
			s.mu.Unlock()
		}
	case errors.Is(err, remote.ErrNotFound):
		s.mu.Lock()
		if gen == s.generation && !s.closed {
			s.p = plan.Parse(nil)
			raw := s.p.Encode()
			s.mu.Unlock()
			s.persistLocal(ctx, raw)
		} else {
			s.mu.Unlock()
		}
	default:
		log.Printf("syncer: load ficha %s: %v", fichaID, err)
	}

	s.subscribe(fichaID, gen)
	return nil
}

// Status reports the reconciler state for the UI's sync indicator.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:       s.state,
		StateLabel:  s.state.String(),
		FichaID:     s.fichaID,
		Degraded:    s.degraded,
		HasPending:  s.pending != nil,
		LastError:   s.lastErr,
		LastSynced:  s.lastSynced,
		InitialWarn: s.initWarn,
	}
	if s.pending != nil {
		ts := s.pending.EnqueuedAt
		st.PendingTS = &ts
	}
	return st
}

// Close disposes the session: unsubscribes the watcher, stops the retry
// loop and waits for in-flight work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	close(s.retryStop)
	s.lifeCancel()
	s.wg.Wait()
}
