// Package api — JSON-поверхность мастера для шаговых экранов фронтенда.
// Валидация полей живёт во внешнем слое схем; здесь проверяется только
// структурная корректность payload-ов и дисциплина переходов.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clearglass/quote-wizard/internal/backend"
	"github.com/clearglass/quote-wizard/internal/session"
	"github.com/clearglass/quote-wizard/internal/vehicles"
	"github.com/clearglass/quote-wizard/internal/wizard"
)

// VehicleIdentifier — внешний сервис идентификации автомобиля.
type VehicleIdentifier interface {
	Identify(ctx context.Context, req vehicles.IdentifyRequest) (*wizard.VehicleLookupResult, error)
}

// QuotePreviewer — чтение готовой квоты для страницы предпросмотра.
type QuotePreviewer interface {
	QuotePreview(ctx context.Context, quoteID string) (json.RawMessage, error)
}

type Handler struct {
	log      *slog.Logger
	sessions session.Repo
	lookup   VehicleIdentifier
	pipeline *wizard.Pipeline
	poller   *backend.Poller
	preview  QuotePreviewer

	// Базовый контекст поллеров; гаснет на shutdown сервера.
	baseCtx context.Context

	// Сессия имеет ровно один пишущий контекст: все мутации одной сессии
	// сериализуются её мьютексом.
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	watched map[string]bool
}

func NewHandler(
	baseCtx context.Context,
	log *slog.Logger,
	sessions session.Repo,
	lookup VehicleIdentifier,
	pipeline *wizard.Pipeline,
	poller *backend.Poller,
	preview QuotePreviewer,
) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
		lookup:   lookup,
		pipeline: pipeline,
		poller:   poller,
		preview:  preview,
		baseCtx:  baseCtx,
		locks:    make(map[string]*sync.Mutex),
		watched:  make(map[string]bool),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/wizard/sessions", h.createSession)
	mux.HandleFunc("GET /api/wizard/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/reset", h.resetSession)

	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/glass", h.setGlass)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/damage", h.setDamage)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/contact", h.setContact)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/vehicle", h.setVehicle)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/part", h.setPart)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/steps/location", h.setLocation)

	mux.HandleFunc("POST /api/wizard/sessions/{id}/vehicle/identify", h.identifyVehicle)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/part/select", h.selectPart)

	mux.HandleFunc("POST /api/wizard/sessions/{id}/navigate/next", h.navNext)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/navigate/prev", h.navPrev)
	mux.HandleFunc("POST /api/wizard/sessions/{id}/navigate/goto", h.navGoto)

	mux.HandleFunc("POST /api/wizard/sessions/{id}/complete", h.completeWizard)
	mux.HandleFunc("GET /api/wizard/sessions/{id}/generation", h.generationState)

	mux.HandleFunc("GET /api/quotes/{quote_id}", h.quotePreview)

	mux.HandleFunc("GET /admin/sessions/export", h.exportSessions)
}

func (h *Handler) lockSession(id string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[id]
	if !ok {
		l = &sync.Mutex{}
		h.locks[id] = l
	}
	return l
}

// releaseLock выбрасывает мьютекс исчезнувшей сессии, иначе карта локов
// растёт по записи на каждую истёкшую сессию за время жизни процесса.
func (h *Handler) releaseLock(id string) {
	h.mu.Lock()
	delete(h.locks, id)
	h.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// loadSession достаёт живую сессию или отвечает 404.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) *wizard.Session {
	id := r.PathValue("id")
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.log.Error("session load failed", "session_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil
	}
	if s == nil {
		h.releaseLock(id)
		writeError(w, http.StatusNotFound, "session not found or expired")
		return nil
	}
	return s
}

func (h *Handler) saveSession(w http.ResponseWriter, ctx context.Context, s *wizard.Session) bool {
	if err := h.sessions.Put(ctx, s); err != nil {
		h.log.Error("session save failed", "session_id", s.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return false
	}
	return true
}
