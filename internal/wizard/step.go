package wizard

type Step int

const (
	StepLogin Step = iota
	StepTenant
	StepRole
	StepUser
	StepSLA
	StepTicket
	StepComplete
)

var stepNames = [...]string{"login", "tenant", "role", "user", "sla", "ticket", "complete"}

var stepTitles = [...]string{
	"Login",
	"Create Tenant",
	"Create Role",
	"Create User",
	"Create SLA Policy",
	"Create Ticket",
	"Complete",
}

func (s Step) String() string {
	if s < StepLogin || s > StepComplete {
		return "unknown"
	}
	return stepNames[s]
}

// Title is the human-readable name shown in progress views.
func (s Step) Title() string {
	if s < StepLogin || s > StepComplete {
		return "Unknown"
	}
	return stepTitles[s]
}

// Next returns the single forward transition. Complete is terminal.
func (s Step) Next() Step {
	if s >= StepComplete {
		return StepComplete
	}
	return s + 1
}

// Steps lists every step in wizard order.
func Steps() []Step {
	return []Step{StepLogin, StepTenant, StepRole, StepUser, StepSLA, StepTicket, StepComplete}
}
