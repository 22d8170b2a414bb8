package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"treinos/api/internal/calendar"
	"treinos/api/internal/plan"
	"treinos/api/internal/planfile"
	"treinos/api/internal/remote"
	"treinos/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"local":  map[string]any{"status": "ok"},
			"remote": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["local"] = map[string]any{"status": "error", "error": err.Error()}
		}
		// A down remote degrades to local-only; it never blocks readiness.
		if err := s.service.RemotePing(ctx); err != nil {
			checks["remote"] = map[string]any{"status": "degraded", "error": err.Error()}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/plan" {
		writeJSON(w, http.StatusOK, map[string]any{
			"fichaId": s.service.FichaID(),
			"plan":    json.RawMessage(s.service.Plan().Encode()),
		})
		return
	}

	if parts := splitPath(r.URL.Path); len(parts) >= 4 && parts[0] == "api" && parts[1] == "plan" && parts[2] == "days" {
		s.handleDayRoute(w, r, parts[3:])
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/fichas" {
		fichas, activeID, err := s.service.Fichas(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"fichas":   renderFichas(fichas),
			"activeId": activeID,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/fichas" {
		var body struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ficha, err := s.service.CreateFicha(r.Context(), strings.TrimSpace(body.ID), strings.TrimSpace(body.Name))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, renderFicha(ficha))
		return
	}

	if parts := splitPath(r.URL.Path); r.Method == http.MethodPost && len(parts) == 4 &&
		parts[0] == "api" && parts[1] == "fichas" && parts[3] == "activate" {
		if err := s.service.SwitchFicha(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "activeId": parts[2]})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/sync/status" {
		writeJSON(w, http.StatusOK, s.service.SyncStatus())
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/sync/online" {
		var body struct {
			Online bool `json:"online"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.service.SetOnline(r.Context(), body.Online)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/sync/flush" {
		s.service.FlushPending(r.Context())
		writeJSON(w, http.StatusOK, s.service.SyncStatus())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/chat" {
		writeJSON(w, http.StatusOK, map[string]any{"messages": s.service.ChatTranscript(r.Context())})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		reply, ok, err := s.service.SendChat(r.Context(), strings.TrimSpace(body.Text))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "ok": ok})
		return
	}

	if parts := splitPath(r.URL.Path); len(parts) == 4 && parts[0] == "api" && parts[1] == "calendar" && parts[2] == "weeks" {
		s.handleCalendarWeek(w, r, parts[3])
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/calendar/view-state" {
		writeJSON(w, http.StatusOK, map[string]any{"state": s.service.CalendarViewState(r.Context())})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/calendar/view-state" {
		var body struct {
			State string `json:"state"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetCalendarViewState(r.Context(), body.State); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/pin" {
		unlocked, err := s.service.PinUnlocked(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unlocked": unlocked})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pin/unlock" {
		var body struct {
			Code string `json:"code"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		unlocked, err := s.service.UnlockPin(r.Context(), body.Code)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		if !unlocked {
			writeError(w, http.StatusUnauthorized, "PIN_REJECTED", "Incorrect PIN", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unlocked": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pin/lock" {
		if err := s.service.LockPin(r.Context()); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unlocked": false})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/pin" {
		var body struct {
			Code string `json:"code"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetPin(r.Context(), body.Code); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/export" {
		raw, err := s.service.ExportPlan()
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="treinos-export.json"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/import" {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body", nil)
			return
		}
		imported, err := s.service.ImportPlan(r.Context(), raw)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"plan": json.RawMessage(imported.Encode()),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/tab" {
		writeJSON(w, http.StatusOK, map[string]any{"index": s.service.ActiveTab(r.Context())})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/tab" {
		var body struct {
			Index int `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetActiveTab(r.Context(), body.Index); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleDayRoute covers /api/plan/days/{day}/exercises[/{index}] and
// /api/plan/days/{day}/reorder.
func (s *HTTPServer) handleDayRoute(w http.ResponseWriter, r *http.Request, parts []string) {
	dayIndex, err := strconv.Atoi(parts[0])
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "day index must be an integer", nil)
		return
	}

	if len(parts) == 2 && parts[1] == "reorder" && r.Method == http.MethodPost {
		var body struct {
			Order []int `json:"order"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReorderDay(r.Context(), dayIndex, body.Order); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"day": s.service.Plan().Days[dayIndex]})
		return
	}

	if len(parts) >= 2 && parts[1] == "exercises" {
		switch {
		case r.Method == http.MethodPost && len(parts) == 2:
			s.handleCommitExercise(w, r, dayIndex, -1)
			return
		case r.Method == http.MethodPut && len(parts) == 3:
			exerciseIndex, err := strconv.Atoi(parts[2])
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "exercise index must be an integer", nil)
				return
			}
			s.handleCommitExercise(w, r, dayIndex, exerciseIndex)
			return
		case r.Method == http.MethodDelete && len(parts) == 3:
			exerciseIndex, err := strconv.Atoi(parts[2])
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "exercise index must be an integer", nil)
				return
			}
			if err := s.service.DeleteExercise(r.Context(), dayIndex, exerciseIndex); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCommitExercise(w http.ResponseWriter, r *http.Request, dayIndex, exerciseIndex int) {
	var body struct {
		Name   string        `json:"name"`
		Obs    string        `json:"obs"`
		Series []plan.Series `json:"series"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	day, err := s.service.CommitExercise(r.Context(), dayIndex, exerciseIndex, body.Name, body.Obs, body.Series)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day})
}

func (s *HTTPServer) handleCalendarWeek(w http.ResponseWriter, r *http.Request, weekStart string) {
	switch r.Method {
	case http.MethodGet:
		week, err := s.service.CalendarWeek(r.Context(), weekStart)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, week)
	case http.MethodPut:
		var week calendar.Week
		if err := decodeBody(r, &week); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		saved, err := s.service.PutCalendarWeek(r.Context(), weekStart, week)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func renderFicha(f remote.Ficha) map[string]any {
	return map[string]any{
		"id":        f.ID,
		"name":      f.Name,
		"revision":  f.Revision,
		"updatedAt": f.UpdatedAt,
	}
}

func renderFichas(fichas []remote.Ficha) []map[string]any {
	items := make([]map[string]any, 0, len(fichas))
	for _, f := range fichas {
		items = append(items, renderFicha(f))
	}
	return items
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *plan.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(), map[string]any{
			"field": validationErr.Field,
			"serie": validationErr.Ordinal,
		}
	}
	var parseErr *planfile.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadRequest, "INVALID_PLAN_FILE", parseErr.Error(), nil
	}
	if errors.Is(err, remote.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, remote.ErrNotInitialized) {
		return http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE", "Document service not available", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
