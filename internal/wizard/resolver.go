package wizard

// ActiveSteps — чистая функция: снимок сессии → упорядоченный список
// применимых шагов. Правила фиксированы и независимы:
//   - 1, 3, 4 и 6 входят всегда, 6 последним;
//   - 2 только для лобового стекла (repair/replace различим только там);
//   - 5 только когда flow = replacement и lookup вернул несколько кандидатов;
//   - 7 не входит никогда (отдельная страница).
func ActiveSteps(s *Session) []Step {
	steps := make([]Step, 0, 6)
	steps = append(steps, StepGlassSelection)
	if s.Glass != nil && s.Glass.Category == GlassWindshield {
		steps = append(steps, StepDamageAssessment)
	}
	steps = append(steps, StepContactInfo, StepVehicleInfo)
	if s.FlowType() == FlowReplacement && s.Lookup != nil && s.Lookup.NeedsPartSelection {
		steps = append(steps, StepPartConfirmation)
	}
	steps = append(steps, StepServiceLocation)
	return steps
}

// IsStepActive — входит ли шаг в текущий активный список.
func IsStepActive(s *Session, step Step) bool {
	for _, st := range ActiveSteps(s) {
		if st == step {
			return true
		}
	}
	return false
}
