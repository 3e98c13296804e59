package wizard

import (
	"time"

	"github.com/google/uuid"
)

// Session — состояние одного прохода мастера. Ровно один слот на шаг,
// каждый nil до ответа пользователя. Мутируется только сеттерами ниже
// и колбэками lookup/submission; производные значения (FlowType,
// автоселект детали) пересчитываются в момент мутации.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CurrentStep Step `json:"current_step"`

	Glass      *GlassSelection        `json:"glass,omitempty"`
	Damage     *DamageAssessment      `json:"damage,omitempty"`
	Contact    *ContactInfo           `json:"contact,omitempty"`
	Vehicle    *VehicleIdentification `json:"vehicle,omitempty"`
	PartChoice *PartConfirmation      `json:"part_choice,omitempty"`
	Location   *ServiceLocation       `json:"location,omitempty"`

	Lookup       *VehicleLookupResult `json:"lookup,omitempty"`
	SelectedPart *GlassPart           `json:"selected_part,omitempty"`

	// Состояние генерации квоты.
	TaskID          string `json:"task_id,omitempty"`
	QuoteID         string `json:"quote_id,omitempty"`
	GenerationError string `json:"generation_error,omitempty"`
	IsGenerating    bool   `json:"is_generating"`

	// Защита от повторной отправки одного и того же ServiceLocation.
	LastSubmitKey string `json:"last_submit_key,omitempty"`
	SubmitAttempt int    `json:"submit_attempt,omitempty"`
}

func NewSession() *Session {
	return &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		CurrentStep: StepGlassSelection,
	}
}

// FlowType — repair только когда выбрано лобовое стекло и на шаге 2 явно
// выбран ремонт скола; во всех остальных случаях replacement.
func (s *Session) FlowType() FlowType {
	if s.Glass != nil && s.Glass.Category == GlassWindshield &&
		s.Damage != nil && s.Damage.Intent == IntentRepair {
		return FlowRepair
	}
	return FlowReplacement
}

func (s *Session) SetGlassSelection(p GlassSelection) {
	s.Glass = &p
	// Ответ шага 2 при смене категории не трогаем: он просто игнорируется,
	// пока категория не вернётся к windshield.
}

func (s *Session) SetDamageAssessment(p DamageAssessment) {
	s.Damage = &p
}

func (s *Session) SetContactInfo(p ContactInfo) {
	p.Phone = NormalizePhone(p.Phone)
	s.Contact = &p
}

func (s *Session) SetVehicleIdentification(p VehicleIdentification) {
	s.Vehicle = &p
}

func (s *Session) SetPartConfirmation(p PartConfirmation) {
	s.PartChoice = &p
}

func (s *Session) SetServiceLocation(p ServiceLocation) {
	s.Location = &p
}

// SetVehicleLookupResult применяет результат lookup-а. Поздний ответ
// (пользователь уже ушёл дальше) обновляет данные, но не позицию:
// CurrentStep здесь не трогается никогда.
func (s *Session) SetVehicleLookupResult(res *VehicleLookupResult) {
	s.Lookup = res
	// Новый результат обнуляет прежний выбор детали: и автоселект,
	// и подтверждение, сделанное по старому списку кандидатов.
	s.SelectedPart = nil
	s.PartChoice = nil
	if res != nil && len(res.Parts) == 1 {
		part := res.Parts[0]
		s.SelectedPart = &part
	}
}

func (s *Session) SetSelectedPart(p *GlassPart) {
	s.SelectedPart = p
}

// FinishGeneration — терминальный колбэк поллера статуса.
func (s *Session) FinishGeneration(quoteID, errMsg string) {
	s.IsGenerating = false
	s.QuoteID = quoteID
	s.GenerationError = errMsg
}

// Reset очищает все слоты, кэш lookup-а, состояние генерации и возвращает
// мастер на шаг 1 со свежим timestamp. ID сессии сохраняется.
func (s *Session) Reset() {
	fresh := NewSession()
	fresh.ID = s.ID
	*s = *fresh
}
