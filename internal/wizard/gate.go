package wizard

import "errors"

var (
	// ErrStepNotActive — целевой шаг не входит в активный список.
	ErrStepNotActive = errors.New("step is not in the active list")
	// ErrStepsIncomplete — перед целевым шагом есть незаполненный шаг.
	ErrStepsIncomplete = errors.New("preceding steps are incomplete")
)

// IsStepComplete — заполнен ли собственный слот шага. Исключение — шаг 5:
// он считается готовым и без явного PartConfirmation, если деталь выбрана
// автоселектом (единственный кандидат) или сужением по фильтрам.
func IsStepComplete(s *Session, step Step) bool {
	switch step {
	case StepGlassSelection:
		return s.Glass != nil
	case StepDamageAssessment:
		return s.Damage != nil
	case StepContactInfo:
		return s.Contact != nil
	case StepVehicleInfo:
		return s.Vehicle != nil
	case StepPartConfirmation:
		return s.PartChoice != nil || s.SelectedPart != nil
	case StepServiceLocation:
		return s.Location != nil
	}
	return false
}

// CanProceedToStep — можно ли перейти на target: он должен быть в активном
// списке, и каждый шаг перед ним (в порядке списка) должен быть заполнен.
func CanProceedToStep(s *Session, target Step) error {
	active := ActiveSteps(s)
	idx := -1
	for i, st := range active {
		if st == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrStepNotActive
	}
	for _, st := range active[:idx] {
		if !IsStepComplete(s, st) {
			return ErrStepsIncomplete
		}
	}
	return nil
}

// NextStep — шаг на одну позицию вперёд в активном списке; на границе
// возвращает текущий. Если текущего шага в списке нет (пользователь сменил
// ветку, стоя на выпавшем шаге), возвращает ближайший активный перед ним.
func NextStep(s *Session) Step {
	active := ActiveSteps(s)
	for i, st := range active {
		if st == s.CurrentStep {
			if i+1 < len(active) {
				return active[i+1]
			}
			return st
		}
	}
	return nearestActive(active, s.CurrentStep)
}

// PrevStep — шаг на одну позицию назад; на границе возвращает текущий.
func PrevStep(s *Session) Step {
	active := ActiveSteps(s)
	for i, st := range active {
		if st == s.CurrentStep {
			if i > 0 {
				return active[i-1]
			}
			return st
		}
	}
	return nearestActive(active, s.CurrentStep)
}

func nearestActive(active []Step, cur Step) Step {
	prev := active[0]
	for _, st := range active {
		if st > cur {
			break
		}
		prev = st
	}
	return prev
}

// GoToNextStep / GoToPrevStep двигают позицию ровно на один шаг,
// no-op на границах списка.
func (s *Session) GoToNextStep() {
	s.CurrentStep = NextStep(s)
}

func (s *Session) GoToPrevStep() {
	s.CurrentStep = PrevStep(s)
}

// GoToStep — прямой переход с проверкой гейта.
func (s *Session) GoToStep(target Step) error {
	if err := CanProceedToStep(s, target); err != nil {
		return err
	}
	s.CurrentStep = target
	return nil
}

// HasPriorProgress — сигнал «есть незаконченный проход» при монтировании
// мастера: вызывающая сторона предлагает продолжить или начать заново.
// «Продолжить» — no-op, «заново» — Reset.
func HasPriorProgress(s *Session) bool {
	return s.Glass != nil || s.CurrentStep > StepGlassSelection
}
