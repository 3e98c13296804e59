package api

import (
	"errors"
	"net/http"

	"github.com/clearglass/quote-wizard/internal/backend"
	"github.com/clearglass/quote-wizard/internal/infra/metrics"
	"github.com/clearglass/quote-wizard/internal/vehicles"
	"github.com/clearglass/quote-wizard/internal/wizard"
)

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	s := wizard.NewSession()
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	metrics.SessionsCreated.Inc()
	h.log.Info("session created", "session_id", s.ID)
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s := h.loadSession(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	lock := h.lockSession(r.PathValue("id"))
	lock.Lock()
	defer lock.Unlock()

	s := h.loadSession(w, r)
	if s == nil {
		return
	}
	s.Reset()
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) setGlass(w http.ResponseWriter, r *http.Request) {
	var p wizard.GlassSelection
	if !decodeBody(w, r, &p) {
		return
	}
	switch p.Category {
	case wizard.GlassWindshield, wizard.GlassBackGlass,
		wizard.GlassDriverFront, wizard.GlassDriverRear,
		wizard.GlassPassengerFront, wizard.GlassPassengerRear,
		wizard.GlassSunroof:
	default:
		writeError(w, http.StatusBadRequest, "unknown glass category")
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetGlassSelection(p)
		return nil
	})
}

func (h *Handler) setDamage(w http.ResponseWriter, r *http.Request) {
	var p wizard.DamageAssessment
	if !decodeBody(w, r, &p) {
		return
	}
	switch p.Intent {
	case wizard.IntentRepair:
		if p.ChipCount < 1 || p.ChipCount > 3 {
			writeError(w, http.StatusBadRequest, "chip_count must be between 1 and 3")
			return
		}
	case wizard.IntentReplacement:
	default:
		writeError(w, http.StatusBadRequest, "unknown service intent")
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetDamageAssessment(p)
		return nil
	})
}

func (h *Handler) setContact(w http.ResponseWriter, r *http.Request) {
	var p wizard.ContactInfo
	if !decodeBody(w, r, &p) {
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetContactInfo(p)
		return nil
	})
}

func (h *Handler) setVehicle(w http.ResponseWriter, r *http.Request) {
	var p wizard.VehicleIdentification
	if !decodeBody(w, r, &p) {
		return
	}
	// Каждый вариант несёт только свои поля.
	switch p.Method {
	case wizard.MethodVIN:
		if p.VIN == "" {
			writeError(w, http.StatusBadRequest, "vin is required for vin method")
			return
		}
	case wizard.MethodPlate:
		if p.Plate == "" || p.PlateState == "" {
			writeError(w, http.StatusBadRequest, "license_plate and plate_state are required for plate method")
			return
		}
	case wizard.MethodManual:
		if p.Year == 0 || p.Make == "" || p.Model == "" {
			writeError(w, http.StatusBadRequest, "year, make and model are required for manual method")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown identification method")
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetVehicleIdentification(p)
		return nil
	})
}

func (h *Handler) setPart(w http.ResponseWriter, r *http.Request) {
	var p wizard.PartConfirmation
	if !decodeBody(w, r, &p) {
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetPartConfirmation(p)
		return nil
	})
}

// setLocation — последний содержательный шаг; по спеке значение локации
// служит неявным триггером отправки. Ошибка отправки не валит мутацию:
// она оседает в generation_error, клиент видит её во view.
func (h *Handler) setLocation(w http.ResponseWriter, r *http.Request) {
	var p wizard.ServiceLocation
	if !decodeBody(w, r, &p) {
		return
	}
	switch p.Type {
	case wizard.ServiceMobile:
		if p.Street == "" || p.City == "" || p.State == "" {
			writeError(w, http.StatusBadRequest, "full address is required for mobile service")
			return
		}
	case wizard.ServiceInStore:
	default:
		writeError(w, http.StatusBadRequest, "unknown service type")
		return
	}
	if p.PostalCode == "" || p.ShopID == 0 {
		writeError(w, http.StatusBadRequest, "postal_code and shop_id are required")
		return
	}

	h.mutate(w, r, func(s *wizard.Session) error {
		s.SetServiceLocation(p)
		fired, err := h.pipeline.MaybeSubmit(r.Context(), s)
		if err != nil {
			metrics.Submissions.WithLabelValues("failed").Inc()
			return nil // ошибка уже в generation_error
		}
		if fired {
			metrics.Submissions.WithLabelValues("accepted").Inc()
			h.watchTask(s.ID, s.TaskID)
		}
		return nil
	})
}

// identifyVehicle зовёт внешний lookup и применяет результат к сессии.
// Ошибка вызова — шаговая: сессия не мутируется, позиция не меняется.
func (h *Handler) identifyVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicles.IdentifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lock := h.lockSession(r.PathValue("id"))
	lock.Lock()
	defer lock.Unlock()

	s := h.loadSession(w, r)
	if s == nil {
		return
	}

	res, err := h.lookup.Identify(r.Context(), req)
	if err != nil {
		metrics.LookupFailures.Inc()
		h.log.Warn("vehicle lookup failed", "session_id", s.ID, "err", err)
		writeError(w, http.StatusBadGateway, "vehicle lookup failed, please try again")
		return
	}

	s.SetVehicleLookupResult(res)
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

// selectPart фиксирует деталь, до которой пользователь сузился фильтрами.
func (h *Handler) selectPart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NAGSPartNumber string `json:"nags_part_number"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(s *wizard.Session) error {
		if s.Lookup == nil {
			return errors.New("no lookup result to select a part from")
		}
		for i := range s.Lookup.Parts {
			if s.Lookup.Parts[i].NAGSPartNumber == req.NAGSPartNumber {
				part := s.Lookup.Parts[i]
				s.SetSelectedPart(&part)
				return nil
			}
		}
		return errors.New("part is not among lookup candidates")
	})
}

func (h *Handler) navNext(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *wizard.Session) error {
		s.GoToNextStep()
		return nil
	})
}

func (h *Handler) navPrev(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *wizard.Session) error {
		s.GoToPrevStep()
		return nil
	})
}

func (h *Handler) navGoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step wizard.Step `json:"step"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	lock := h.lockSession(r.PathValue("id"))
	lock.Lock()
	defer lock.Unlock()

	s := h.loadSession(w, r)
	if s == nil {
		return
	}
	if err := s.GoToStep(req.Step); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

// completeWizard — явное завершение мастера (continue на последнем шаге
// либо re-submit после ошибки). Идемпотентно на неизменных данных.
func (h *Handler) completeWizard(w http.ResponseWriter, r *http.Request) {
	lock := h.lockSession(r.PathValue("id"))
	lock.Lock()
	defer lock.Unlock()

	s := h.loadSession(w, r)
	if s == nil {
		return
	}

	err := h.pipeline.CompleteWizard(r.Context(), s)
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	switch {
	case errors.Is(err, wizard.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		metrics.Submissions.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusBadGateway, viewOf(s))
		return
	}

	if s.TaskID != "" && s.IsGenerating {
		metrics.Submissions.WithLabelValues("accepted").Inc()
		h.watchTask(s.ID, s.TaskID)
	}
	writeJSON(w, http.StatusAccepted, viewOf(s))
}

func (h *Handler) generationState(w http.ResponseWriter, r *http.Request) {
	s := h.loadSession(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_generating":    s.IsGenerating,
		"task_id":          s.TaskID,
		"quote_id":         s.QuoteID,
		"generation_error": s.GenerationError,
	})
}

func (h *Handler) quotePreview(w http.ResponseWriter, r *http.Request) {
	raw, err := h.preview.QuotePreview(r.Context(), r.PathValue("quote_id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch quote")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// mutate — общий каркас сеттеров: лок сессии, загрузка, мутация, сохранение.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*wizard.Session) error) {
	lock := h.lockSession(r.PathValue("id"))
	lock.Lock()
	defer lock.Unlock()

	s := h.loadSession(w, r)
	if s == nil {
		return
	}
	if err := fn(s); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !h.saveSession(w, r.Context(), s) {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

// watchTask запускает поллер статуса; на терминальном статусе результат
// записывается в сессию. Повторный вызов для той же задачи — no-op.
func (h *Handler) watchTask(sessionID, taskID string) {
	h.mu.Lock()
	if h.watched[taskID] {
		h.mu.Unlock()
		return
	}
	h.watched[taskID] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.watched, taskID)
			h.mu.Unlock()
		}()

		h.poller.Watch(h.baseCtx, taskID, func(st backend.TaskStatus) {
			metrics.PollTerminal.WithLabelValues(string(st.Status)).Inc()

			lock := h.lockSession(sessionID)
			lock.Lock()
			defer lock.Unlock()

			s, err := h.sessions.Get(h.baseCtx, sessionID)
			if err != nil || s == nil {
				h.log.Warn("session gone before terminal status", "session_id", sessionID, "task_id", taskID)
				h.releaseLock(sessionID)
				return
			}
			if st.Status == backend.StateFailed {
				// Падение самой задачи, не отправки: отдельная категория ошибки,
				// восстановление — только явный «start new quote».
				s.FinishGeneration("", st.Error)
			} else {
				s.FinishGeneration(st.QuoteID, "")
			}
			if err := h.sessions.Put(h.baseCtx, s); err != nil {
				h.log.Error("failed to persist terminal status", "session_id", sessionID, "err", err)
			}
		})
	}()
}
