package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"treinos/api/internal/assistant"
	"treinos/api/internal/calendar"
	"treinos/api/internal/local"
	"treinos/api/internal/pin"
	"treinos/api/internal/plan"
	"treinos/api/internal/planfile"
	"treinos/api/internal/remote"
	"treinos/api/internal/syncer"
	"treinos/api/internal/util"
)

// planSession is the slice of the reconciler the service depends on.
type planSession interface {
	Snapshot() plan.Plan
	FichaID() string
	CommitExercise(ctx context.Context, dayIndex, exerciseIndex int, name, obs string, series []plan.Series) (plan.Day, error)
	ReorderDay(ctx context.Context, dayIndex int, order []int) error
	DeleteExercise(ctx context.Context, dayIndex, exerciseIndex int) error
	ReplacePlan(ctx context.Context, p plan.Plan)
	SwitchFicha(ctx context.Context, fichaID string) error
	SetOnline(ctx context.Context, online bool)
	FlushPending(ctx context.Context)
	Status() syncer.Status
}

// documentStore is the slice of the remote adapter the service depends on
// directly; plan reads and writes go through the reconciler instead.
type documentStore interface {
	Ping(ctx context.Context) error
	ListFichas(ctx context.Context, userID string) ([]remote.Ficha, error)
	EnsureFicha(ctx context.Context, userID, fichaID, name string) (remote.Ficha, error)
	GetWeek(ctx context.Context, userID, weekStart string) (calendar.Week, error)
	PutWeek(ctx context.Context, userID, weekStart string, week calendar.Week) error
}

type chatCoach interface {
	Send(ctx context.Context, userText string) (string, error)
	Transcript(ctx context.Context) []assistant.Message
}

type Service struct {
	session    planSession
	localStore local.Store
	remote     documentStore
	coach      chatCoach
	gate       *pin.Gate
	userID     string
}

func NewService(session planSession, localStore local.Store, remoteStore documentStore, coach chatCoach, gate *pin.Gate, userID string) *Service {
	return &Service{
		session:    session,
		localStore: localStore,
		remote:     remoteStore,
		coach:      coach,
		gate:       gate,
		userID:     userID,
	}
}

// Ping reports readiness of the local store. The remote store is allowed
// to be down; the app keeps working local-only.
func (s *Service) Ping(ctx context.Context) error {
	if pinger, ok := s.localStore.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("local store: %w", err)
		}
	}
	return nil
}

// RemotePing reports whether the document service is reachable.
func (s *Service) RemotePing(ctx context.Context) error {
	return s.remote.Ping(ctx)
}

// Plan returns the in-memory plan snapshot.
func (s *Service) Plan() plan.Plan {
	return s.session.Snapshot()
}

// FichaID returns the id of the ficha the session currently tracks.
func (s *Service) FichaID() string {
	return s.session.FichaID()
}

func (s *Service) CommitExercise(ctx context.Context, dayIndex, exerciseIndex int, name, obs string, series []plan.Series) (plan.Day, error) {
	return s.session.CommitExercise(ctx, dayIndex, exerciseIndex, name, obs, series)
}

func (s *Service) DeleteExercise(ctx context.Context, dayIndex, exerciseIndex int) error {
	return s.session.DeleteExercise(ctx, dayIndex, exerciseIndex)
}

func (s *Service) ReorderDay(ctx context.Context, dayIndex int, order []int) error {
	return s.session.ReorderDay(ctx, dayIndex, order)
}

// Fichas lists the plan variants stored remotely, marking the active one.
func (s *Service) Fichas(ctx context.Context) ([]remote.Ficha, string, error) {
	fichas, err := s.remote.ListFichas(ctx, s.userID)
	if err != nil {
		return nil, "", err
	}
	return fichas, s.session.FichaID(), nil
}

// CreateFicha provisions a new empty plan variant and switches to it. An
// omitted id is generated.
func (s *Service) CreateFicha(ctx context.Context, fichaID, name string) (remote.Ficha, error) {
	if fichaID == "" {
		fichaID = util.NewID("ficha")
	}
	if name == "" {
		name = fichaID
	}
	ficha, err := s.remote.EnsureFicha(ctx, s.userID, fichaID, name)
	if err != nil {
		return remote.Ficha{}, err
	}
	if err := s.session.SwitchFicha(ctx, fichaID); err != nil {
		return remote.Ficha{}, err
	}
	return ficha, nil
}

func (s *Service) SwitchFicha(ctx context.Context, fichaID string) error {
	if fichaID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ficha id is required", nil)
	}
	return s.session.SwitchFicha(ctx, fichaID)
}

func (s *Service) SyncStatus() syncer.Status {
	return s.session.Status()
}

func (s *Service) SetOnline(ctx context.Context, online bool) {
	s.session.SetOnline(ctx, online)
}

func (s *Service) FlushPending(ctx context.Context) {
	s.session.FlushPending(ctx)
}

// SendChat forwards the user message to the coach. A failed proxy call is
// not a transport error for the caller: the inline error text becomes the
// reply and ok is false, mirroring the transcript.
func (s *Service) SendChat(ctx context.Context, text string) (reply string, ok bool, err error) {
	if text == "" {
		return "", false, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message text is required", nil)
	}
	reply, sendErr := s.coach.Send(ctx, text)
	if sendErr != nil {
		return reply, false, nil
	}
	return reply, true, nil
}

func (s *Service) ChatTranscript(ctx context.Context) []assistant.Message {
	return s.coach.Transcript(ctx)
}

// CalendarWeek loads a week by Monday key. The local book is
// authoritative; the remote mirror fills in weeks this device has never
// seen. Missing weeks materialize blank.
func (s *Service) CalendarWeek(ctx context.Context, weekStart string) (calendar.Week, error) {
	if err := calendar.ValidateKey(weekStart); err != nil {
		return calendar.Week{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	book := s.loadCalendarBook(ctx)
	if week, found := book[weekStart]; found {
		return week, nil
	}
	if week, err := s.remote.GetWeek(ctx, s.userID, weekStart); err == nil {
		book[weekStart] = week
		s.storeCalendarBook(ctx, book)
		return week, nil
	}
	return book.GetOrCreate(weekStart), nil
}

// PutCalendarWeek validates and persists a week locally, then mirrors it
// to the remote store best effort.
func (s *Service) PutCalendarWeek(ctx context.Context, weekStart string, week calendar.Week) (calendar.Week, error) {
	if err := calendar.ValidateKey(weekStart); err != nil {
		return calendar.Week{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	week.Normalize()
	if err := week.Validate(); err != nil {
		return calendar.Week{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	book := s.loadCalendarBook(ctx)
	book[weekStart] = week
	if err := s.storeCalendarBook(ctx, book); err != nil {
		return calendar.Week{}, err
	}
	if err := s.remote.PutWeek(ctx, s.userID, weekStart, week); err != nil {
		log.Printf("calendar remote mirror failed: %v", err)
	}
	return week, nil
}

func (s *Service) loadCalendarBook(ctx context.Context) calendar.Book {
	raw, found, err := s.localStore.Get(ctx, local.KeyCalendar)
	if err != nil || !found {
		return calendar.Book{}
	}
	return calendar.ParseBook([]byte(raw))
}

func (s *Service) storeCalendarBook(ctx context.Context, book calendar.Book) error {
	if err := s.localStore.Set(ctx, local.KeyCalendar, string(book.Encode())); err != nil {
		return fmt.Errorf("store calendar: %w", err)
	}
	return nil
}

// CalendarViewState round-trips the opaque calendar UI state.
func (s *Service) CalendarViewState(ctx context.Context) string {
	raw, _, _ := s.localStore.Get(ctx, local.KeyCalendarViewState)
	return raw
}

func (s *Service) SetCalendarViewState(ctx context.Context, state string) error {
	return s.localStore.Set(ctx, local.KeyCalendarViewState, state)
}

// UnlockPin verifies a code against the gate.
func (s *Service) UnlockPin(ctx context.Context, code string) (bool, error) {
	return s.gate.Verify(ctx, code)
}

func (s *Service) PinUnlocked(ctx context.Context) (bool, error) {
	return s.gate.Unlocked(ctx)
}

func (s *Service) LockPin(ctx context.Context) error {
	return s.gate.Lock(ctx)
}

func (s *Service) SetPin(ctx context.Context, code string) error {
	return s.gate.SetPin(ctx, code)
}

// ExportPlan serializes the active plan into the portable file format.
func (s *Service) ExportPlan() ([]byte, error) {
	return planfile.Export(s.session.FichaID(), s.session.Snapshot())
}

// ImportPlan parses an export file and replaces the whole plan with it. A
// malformed file leaves the current plan untouched.
func (s *Service) ImportPlan(ctx context.Context, raw []byte) (plan.Plan, error) {
	imported, _, err := planfile.Import(raw)
	if err != nil {
		return plan.Plan{}, err
	}
	s.session.ReplacePlan(ctx, imported)
	return imported, nil
}

// ActiveTab round-trips the last selected day tab.
func (s *Service) ActiveTab(ctx context.Context) int {
	raw, found, err := s.localStore.Get(ctx, local.KeyActiveTab)
	if err != nil || !found {
		return 0
	}
	var index int
	if _, scanErr := fmt.Sscanf(raw, "%d", &index); scanErr != nil {
		return 0
	}
	if index < 0 || index >= plan.DayCount {
		return 0
	}
	return index
}

func (s *Service) SetActiveTab(ctx context.Context, index int) error {
	if index < 0 || index >= plan.DayCount {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("tab index must be between 0 and %d", plan.DayCount-1), nil)
	}
	return s.localStore.Set(ctx, local.KeyActiveTab, fmt.Sprintf("%d", index))
}
