package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotReady — не заполнены обязательные шаги для отправки.
var ErrNotReady = errors.New("service location, glass selection and contact info are required")

// QuoteSubmitter — исходящий вызов к сервису генерации квот.
// Возвращает идентификатор асинхронной задачи; сам движок статус не поллит.
type QuoteSubmitter interface {
	GenerateQuote(ctx context.Context, req QuoteGenerationRequest) (taskID string, err error)
}

// Форма запроса повторяет контракт бэкенда (quotes/generate).
type QuoteGenerationRequest struct {
	ServiceIntent string `json:"service_intent"`

	VIN          string `json:"vin,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
	PlateState   string `json:"plate_state,omitempty"`

	GlassType string `json:"glass_type"`
	ChipCount *int   `json:"chip_count,omitempty"`

	NAGSPartNumber string `json:"nags_part_number,omitempty"`

	ServiceType   string        `json:"service_type"`
	ShopID        int64         `json:"shop_id"`
	DistanceMiles *float64      `json:"distance_miles,omitempty"`
	Location      QuoteLocation `json:"location"`
	Customer      QuoteCustomer `json:"customer"`
}

type QuoteLocation struct {
	PostalCode    string `json:"postal_code"`
	StreetAddress string `json:"street_address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
}

type QuoteCustomer struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// wireGlassType переводит категорию мастера в значение glass_type бэкенда.
func wireGlassType(c GlassCategory) string {
	switch c {
	case GlassDriverFront:
		return "driver_side"
	case GlassPassengerFront:
		return "passenger_side"
	case GlassDriverRear:
		return "rear_driver_side"
	case GlassPassengerRear:
		return "rear_passenger_side"
	default:
		return string(c)
	}
}

// BuildRequest собирает запрос генерации из сессии. Маппинг детерминирован:
//   - service_intent: chip_repair при flow=repair, иначе replacement;
//   - chip_count только для repair;
//   - идентификация авто по методу шага 4, для manual опускается целиком
//     (бэкенд разбирает такие квоты вручную, без ключа lookup-а);
//   - полный адрес только для mobile;
//   - nags_part_number, если деталь выбрана (авто или подтверждением).
func BuildRequest(s *Session) (QuoteGenerationRequest, error) {
	if s.Location == nil || s.Glass == nil || s.Contact == nil {
		return QuoteGenerationRequest{}, ErrNotReady
	}

	req := QuoteGenerationRequest{
		GlassType:   wireGlassType(s.Glass.Category),
		ServiceType: string(s.Location.Type),
		ShopID:      s.Location.ShopID,
		Location:    QuoteLocation{PostalCode: s.Location.PostalCode},
		Customer: QuoteCustomer{
			Email:     s.Contact.Email,
			Phone:     s.Contact.Phone,
			FirstName: s.Contact.FirstName,
			LastName:  s.Contact.LastName,
		},
	}

	if s.FlowType() == FlowRepair {
		req.ServiceIntent = "chip_repair"
		if s.Damage != nil && s.Damage.ChipCount > 0 {
			n := s.Damage.ChipCount
			req.ChipCount = &n
		}
	} else {
		req.ServiceIntent = "replacement"
	}

	if s.Vehicle != nil {
		switch s.Vehicle.Method {
		case MethodVIN:
			req.VIN = s.Vehicle.VIN
		case MethodPlate:
			req.LicensePlate = s.Vehicle.Plate
			req.PlateState = s.Vehicle.PlateState
		case MethodManual:
			// без ключа идентификации
		}
	}

	if s.Location.Type == ServiceMobile {
		req.Location.StreetAddress = s.Location.Street
		req.Location.City = s.Location.City
		req.Location.State = s.Location.State
		req.DistanceMiles = s.Location.DistanceMiles
	}

	if part := selectedPartNumber(s); part != "" {
		req.NAGSPartNumber = part
	}

	return req, nil
}

func selectedPartNumber(s *Session) string {
	if s.PartChoice != nil && s.PartChoice.PartNumber != "" {
		return s.PartChoice.PartNumber
	}
	if s.SelectedPart != nil {
		return s.SelectedPart.NAGSPartNumber
	}
	return ""
}

// submitKey — отпечаток значения ServiceLocation; отправка идемпотентна
// на значение, а не на вызов сеттера.
func submitKey(loc *ServiceLocation) string {
	raw, _ := json.Marshal(loc)
	return string(raw)
}

// Pipeline — сборка и отправка запроса генерации квоты.
type Pipeline struct {
	log    *slog.Logger
	client QuoteSubmitter
}

func NewPipeline(log *slog.Logger, client QuoteSubmitter) *Pipeline {
	return &Pipeline{log: log, client: client}
}

// MaybeSubmit — неявный триггер после SetServiceLocation. Стреляет не более
// одного раза на каждое отличное значение локации и только при заполненных
// ServiceLocation, GlassSelection и ContactInfo. Возвращает true, если
// отправка реально ушла.
func (p *Pipeline) MaybeSubmit(ctx context.Context, s *Session) (bool, error) {
	if s.Location == nil || s.Glass == nil || s.Contact == nil {
		return false, nil
	}
	if s.IsGenerating {
		return false, nil
	}
	if submitKey(s.Location) == s.LastSubmitKey {
		// То же значение локации уже отправлялось — пользователь должен
		// изменить её или нажать явный re-submit.
		return false, nil
	}
	if err := p.CompleteWizard(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// CompleteWizard — явное, идемпотентное завершение мастера (нажатие continue
// на последнем шаге или re-submit после ошибки). Повторный вызов с теми же
// данными после успешной отправки — no-op; после ошибки — новая попытка.
func (p *Pipeline) CompleteWizard(ctx context.Context, s *Session) error {
	if s.IsGenerating {
		return nil
	}
	req, err := BuildRequest(s)
	if err != nil {
		return err
	}
	key := submitKey(s.Location)
	if key == s.LastSubmitKey && s.TaskID != "" && s.GenerationError == "" {
		return nil
	}

	s.SubmitAttempt++
	s.IsGenerating = true
	s.GenerationError = ""
	s.LastSubmitKey = key

	taskID, err := p.client.GenerateQuote(ctx, req)
	if err != nil {
		s.IsGenerating = false
		s.GenerationError = err.Error()
		p.log.Error("quote submission failed",
			"session_id", s.ID,
			"attempt", s.SubmitAttempt,
			"err", err,
		)
		return fmt.Errorf("generate quote: %w", err)
	}

	s.TaskID = taskID
	p.log.Info("quote generation started",
		"session_id", s.ID,
		"task_id", taskID,
		"intent", req.ServiceIntent,
	)
	return nil
}
