package wizard

// Step — порядковый номер шага мастера. Шаг 7 (страница квоты) живёт
// отдельным экраном и никогда не входит в активный список.
type Step int

const (
	StepGlassSelection   Step = 1
	StepDamageAssessment Step = 2
	StepContactInfo      Step = 3
	StepVehicleInfo      Step = 4
	StepPartConfirmation Step = 5
	StepServiceLocation  Step = 6
	StepQuote            Step = 7
)

func (s Step) Name() string {
	switch s {
	case StepGlassSelection:
		return "Glass Selection"
	case StepDamageAssessment:
		return "Damage Assessment"
	case StepContactInfo:
		return "Contact Info"
	case StepVehicleInfo:
		return "Vehicle Info"
	case StepPartConfirmation:
		return "Part Confirmation"
	case StepServiceLocation:
		return "Service Location"
	case StepQuote:
		return "Quote"
	}
	return "Unknown"
}

// FlowType — производная классификация ремонт/замена. Не хранится отдельно,
// всегда пересчитывается из glass selection + damage assessment.
type FlowType string

const (
	FlowRepair      FlowType = "repair"
	FlowReplacement FlowType = "replacement"
)
