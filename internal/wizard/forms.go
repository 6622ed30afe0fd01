package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DueDateLayout is the editable form of the ticket due date (UTC, minute precision).
const DueDateLayout = "2006-01-02T15:04"

// wireTimeLayout is ISO-8601 UTC with milliseconds.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

var TicketTypes = []string{"INCIDENT", "REQUEST", "PROBLEM"}

func ValidTicketType(t string) bool {
	for _, v := range TicketTypes {
		if v == t {
			return true
		}
	}
	return false
}

type LoginForm struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type TenantForm struct {
	TradingName string `yaml:"trading_name"`
	LegalName   string `yaml:"legal_name"`
	TaxID       string `yaml:"tax_id"`
	Settings    string `yaml:"settings"`
}

type RoleForm struct {
	Name string `yaml:"name"`
}

type UserForm struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Position string `yaml:"position"`
}

type SLAForm struct {
	Name                  string `yaml:"name"`
	ResponseTimeMinutes   int    `yaml:"response_time_minutes"`
	ResolutionTimeMinutes int    `yaml:"resolution_time_minutes"`
	OperationalHoursOnly  bool   `yaml:"operational_hours_only"`
	IsActive              bool   `yaml:"is_active"`
	CategoryName          string `yaml:"category_name"`
	CategoryDescription   string `yaml:"category_description"`
	PriorityName          string `yaml:"priority_name"`
}

type TicketForm struct {
	Title             string `yaml:"title"`
	Description       string `yaml:"description"`
	TicketType        string `yaml:"ticket_type"`
	ResolutionDueDate string `yaml:"resolution_due_date"`
}

// Forms holds the input values of every step.
type Forms struct {
	Login  LoginForm  `yaml:"login"`
	Tenant TenantForm `yaml:"tenant"`
	Role   RoleForm   `yaml:"role"`
	User   UserForm   `yaml:"user"`
	SLA    SLAForm    `yaml:"sla"`
	Ticket TicketForm `yaml:"ticket"`
}

// DefaultForms returns the sample values; the ticket is due 24h after now.
func DefaultForms(now time.Time) Forms {
	return Forms{
		Login: LoginForm{Login: "tecnico@example.com", Password: "password123"},
		Tenant: TenantForm{
			TradingName: "Empresa Exemplo SA",
			LegalName:   "Empresa Exemplo LTDA",
			TaxID:       "12.345.678/0001-99",
			Settings:    `{"theme":"dark"}`,
		},
		Role: RoleForm{Name: "ROLE_TECHNICIAN"},
		User: UserForm{
			Name:     "Usuário Final",
			Email:    "usuario@exemplo.com",
			Password: "password123",
			Position: "Analista de Marketing",
		},
		SLA: SLAForm{
			Name:                  "SLA Padrão - TI",
			ResponseTimeMinutes:   120,
			ResolutionTimeMinutes: 480,
			OperationalHoursOnly:  true,
			IsActive:              true,
			CategoryName:          "Infraestrutura",
			CategoryDescription:   "Problemas de infraestrutura",
			PriorityName:          "Média",
		},
		Ticket: TicketForm{
			Title:             "Impressora não funciona",
			Description:       "A impressora do 2º andar parou de funcionar.",
			TicketType:        "INCIDENT",
			ResolutionDueDate: now.Add(24 * time.Hour).UTC().Format(DueDateLayout),
		},
	}
}

// FormatDueDate converts an edited due date to the wire format.
func FormatDueDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{DueDateLayout, "2006-01-02T15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(wireTimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid resolution due date %q (want %s)", v, DueDateLayout)
}

type Field struct {
	Key   string
	Label string
	Value string
}

type fieldSpec struct {
	key   string
	label string
	get   func(*Forms) string
	set   func(*Forms, string) error
}

func text(key, label string, p func(*Forms) *string) fieldSpec {
	return fieldSpec{
		key:   key,
		label: label,
		get:   func(f *Forms) string { return *p(f) },
		set:   func(f *Forms, v string) error { *p(f) = v; return nil },
	}
}

func number(key, label string, p func(*Forms) *int) fieldSpec {
	return fieldSpec{
		key:   key,
		label: label,
		get:   func(f *Forms) string { return strconv.Itoa(*p(f)) },
		set: func(f *Forms, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s must be a whole number", label)
			}
			*p(f) = n
			return nil
		},
	}
}

func flag(key, label string, p func(*Forms) *bool) fieldSpec {
	return fieldSpec{
		key:   key,
		label: label,
		get:   func(f *Forms) string { return strconv.FormatBool(*p(f)) },
		set: func(f *Forms, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s must be true or false", label)
			}
			*p(f) = b
			return nil
		},
	}
}

var formFields = map[Step][]fieldSpec{
	StepLogin: {
		text("login", "Login", func(f *Forms) *string { return &f.Login.Login }),
		text("password", "Password", func(f *Forms) *string { return &f.Login.Password }),
	},
	StepTenant: {
		text("tradingName", "Trading name", func(f *Forms) *string { return &f.Tenant.TradingName }),
		text("legalName", "Legal name", func(f *Forms) *string { return &f.Tenant.LegalName }),
		text("taxID", "Tax ID", func(f *Forms) *string { return &f.Tenant.TaxID }),
		text("settings", "Settings", func(f *Forms) *string { return &f.Tenant.Settings }),
	},
	StepRole: {
		text("name", "Role name", func(f *Forms) *string { return &f.Role.Name }),
	},
	StepUser: {
		text("name", "Name", func(f *Forms) *string { return &f.User.Name }),
		text("email", "Email", func(f *Forms) *string { return &f.User.Email }),
		text("password", "Password", func(f *Forms) *string { return &f.User.Password }),
		text("position", "Position", func(f *Forms) *string { return &f.User.Position }),
	},
	StepSLA: {
		text("name", "Policy name", func(f *Forms) *string { return &f.SLA.Name }),
		number("responseTimeMinutes", "Response time (min)", func(f *Forms) *int { return &f.SLA.ResponseTimeMinutes }),
		number("resolutionTimeMinutes", "Resolution time (min)", func(f *Forms) *int { return &f.SLA.ResolutionTimeMinutes }),
		flag("operationalHoursOnly", "Operational hours only", func(f *Forms) *bool { return &f.SLA.OperationalHoursOnly }),
		flag("isActive", "Active", func(f *Forms) *bool { return &f.SLA.IsActive }),
		text("categoryName", "Category", func(f *Forms) *string { return &f.SLA.CategoryName }),
		text("categoryDescription", "Category description", func(f *Forms) *string { return &f.SLA.CategoryDescription }),
		text("priorityName", "Priority", func(f *Forms) *string { return &f.SLA.PriorityName }),
	},
	StepTicket: {
		text("title", "Title", func(f *Forms) *string { return &f.Ticket.Title }),
		text("description", "Description", func(f *Forms) *string { return &f.Ticket.Description }),
		{
			key:   "ticketType",
			label: "Type",
			get:   func(f *Forms) string { return f.Ticket.TicketType },
			set: func(f *Forms, v string) error {
				v = strings.ToUpper(strings.TrimSpace(v))
				if !ValidTicketType(v) {
					return fmt.Errorf("type must be one of %s", strings.Join(TicketTypes, ", "))
				}
				f.Ticket.TicketType = v
				return nil
			},
		},
		text("resolutionDueDate", "Due date (UTC)", func(f *Forms) *string { return &f.Ticket.ResolutionDueDate }),
	},
}

// Fields lists the editable inputs of a step in display order.
func (f *Forms) Fields(step Step) []Field {
	specs := formFields[step]
	out := make([]Field, 0, len(specs))
	for _, s := range specs {
		out = append(out, Field{Key: s.key, Label: s.label, Value: s.get(f)})
	}
	return out
}

// Set parses and stores one input value.
func (f *Forms) Set(step Step, key, value string) error {
	for _, s := range formFields[step] {
		if s.key == key {
			return s.set(f, value)
		}
	}
	return fmt.Errorf("unknown field %q for step %s", key, step)
}
