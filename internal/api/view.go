package api

import "github.com/clearglass/quote-wizard/internal/wizard"

// stepView — шаг активного списка глазами фронтенда.
type stepView struct {
	Step     wizard.Step `json:"step"`
	Name     string      `json:"name"`
	Complete bool        `json:"complete"`
}

// sessionView — снимок сессии плюс производные: активный список,
// готовность шагов, сигнал resume.
type sessionView struct {
	Session          *wizard.Session `json:"session"`
	FlowType         wizard.FlowType `json:"flow_type"`
	ActiveSteps      []stepView      `json:"active_steps"`
	HasPriorProgress bool            `json:"has_prior_progress"`
}

func viewOf(s *wizard.Session) sessionView {
	active := wizard.ActiveSteps(s)
	steps := make([]stepView, 0, len(active))
	for _, st := range active {
		steps = append(steps, stepView{
			Step:     st,
			Name:     st.Name(),
			Complete: wizard.IsStepComplete(s, st),
		})
	}
	return sessionView{
		Session:          s,
		FlowType:         s.FlowType(),
		ActiveSteps:      steps,
		HasPriorProgress: wizard.HasPriorProgress(s),
	}
}
