package wizard

import "strings"

// GlassCategory — выбранная категория стекла (шаг 1).
type GlassCategory string

const (
	GlassWindshield     GlassCategory = "windshield"
	GlassBackGlass      GlassCategory = "back_glass"
	GlassDriverFront    GlassCategory = "driver_front"
	GlassDriverRear     GlassCategory = "driver_rear"
	GlassPassengerFront GlassCategory = "passenger_front"
	GlassPassengerRear  GlassCategory = "passenger_rear"
	GlassSunroof        GlassCategory = "sunroof"
)

type GlassSelection struct {
	Category GlassCategory `json:"category"`
}

// ServiceIntent — выбор пользователя на шаге 2: чинить скол или менять стекло.
type ServiceIntent string

const (
	IntentRepair      ServiceIntent = "repair"
	IntentReplacement ServiceIntent = "replacement"
)

// DamageAssessment — шаг 2. Вариант помечен тегом Intent:
// repair несёт ChipCount (1–3), replacement — опциональную причину.
type DamageAssessment struct {
	Intent       ServiceIntent `json:"service_intent"`
	ChipCount    int           `json:"chip_count,omitempty"`
	DamageReason string        `json:"damage_reason,omitempty"`
}

// ContactInfo — шаг 3. Телефон хранится уже нормализованным в E.164.
type ContactInfo struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	SMSConsent bool   `json:"sms_consent"`
}

// VehicleIDMethod — способ идентификации автомобиля на шаге 4.
type VehicleIDMethod string

const (
	MethodVIN    VehicleIDMethod = "vin"
	MethodPlate  VehicleIDMethod = "plate"
	MethodManual VehicleIDMethod = "manual"
)

// VehicleIdentification — шаг 4. Заполнены только поля своего метода.
type VehicleIdentification struct {
	Method VehicleIDMethod `json:"method"`

	VIN string `json:"vin,omitempty"`

	Plate      string `json:"license_plate,omitempty"`
	PlateState string `json:"plate_state,omitempty"`

	Year  int    `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Trim  string `json:"trim,omitempty"`
}

// PartConfirmation — шаг 5, явный выбор детали при нескольких кандидатах.
type PartConfirmation struct {
	PartNumber       string   `json:"part_number"`
	FeatureFilters   []string `json:"feature_filters,omitempty"`
	NotSure          bool     `json:"not_sure"`
	VehicleConfirmed bool     `json:"vehicle_confirmed"`
}

// ServiceType — мобильный выезд или работа в мастерской.
type ServiceType string

const (
	ServiceMobile  ServiceType = "mobile"
	ServiceInStore ServiceType = "in_store"
)

// ServiceLocation — шаг 6. Полный адрес обязателен только для mobile,
// индекс и shop_id — всегда.
type ServiceLocation struct {
	Type   ServiceType `json:"service_type"`
	ShopID int64       `json:"shop_id"`

	PostalCode string `json:"postal_code"`

	Street        string   `json:"street_address,omitempty"`
	City          string   `json:"city,omitempty"`
	State         string   `json:"state,omitempty"`
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

// NormalizePhone приводит номер к E.164. Валидация формата — забота внешнего
// слоя, здесь только канонизация: 10 цифр считаем US-номером.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case strings.HasPrefix(strings.TrimSpace(raw), "+") && d != "":
		return "+" + d
	}
	return raw
}
