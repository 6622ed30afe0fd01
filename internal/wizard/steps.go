package wizard

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"thinkdesk/internal/lookup"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tenantRequest struct {
	TradingName string `json:"tradingName"`
	LegalName   string `json:"legalName"`
	TaxID       string `json:"taxID"`
	Settings    string `json:"settings"`
}

type roleRequest struct {
	Name string `json:"name"`
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Position string `json:"position"`
	TenantID *int64 `json:"tenantId"`
	RoleID   *int64 `json:"roleId"`
}

type categoryDto struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type priorityDto struct {
	Name string `json:"name"`
}

type slaRequest struct {
	Name                  string      `json:"name"`
	ResponseTimeMinutes   int         `json:"responseTimeMinutes"`
	ResolutionTimeMinutes int         `json:"resolutionTimeMinutes"`
	OperationalHoursOnly  bool        `json:"operationalHoursOnly"`
	IsActive              bool        `json:"isActive"`
	CategoryDto           categoryDto `json:"categoryDto"`
	TenantID              *int64      `json:"tenantId"`
	PriorityDto           priorityDto `json:"priorityDto"`
}

type ticketRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	ResolutionDueDate string `json:"resolutionDueDate"`
	TicketType        string `json:"ticketType"`
	Category          *int64 `json:"category"`
	Tenant            *int64 `json:"tenant"`
	Requester         *int64 `json:"requester"`
	Priority          *int64 `json:"priority"`
}

// Submit runs the action of the current step.
func (w *Wizard) Submit(ctx context.Context) error {
	switch step := w.Step(); step {
	case StepLogin:
		return w.Login(ctx)
	case StepTenant:
		return w.CreateTenant(ctx)
	case StepRole:
		return w.CreateRole(ctx)
	case StepUser:
		return w.CreateUser(ctx)
	case StepSLA:
		return w.CreateSLA(ctx)
	case StepTicket:
		return w.CreateTicket(ctx)
	default:
		return validationf("The wizard is complete. Start over to run it again.")
	}
}

func (w *Wizard) Login(ctx context.Context) error {
	gen, err := w.begin(StepLogin)
	if err != nil {
		return err
	}
	defer w.end(gen)

	f := w.Forms().Login
	resp, err := w.post(ctx, gen, "/login", encode(loginRequest{Login: f.Login, Password: f.Password}), false)
	if err != nil {
		return err
	}

	token, _ := field(resp, "token").(string)
	if token == "" {
		return w.fail(gen, validationf("The login response did not contain a token."))
	}

	session := NewSession(token)
	return w.commit(gen, func() {
		w.session = &session
		w.advance()
	})
}

func (w *Wizard) CreateTenant(ctx context.Context) error {
	gen, err := w.begin(StepTenant)
	if err != nil {
		return err
	}
	defer w.end(gen)

	f := w.Forms().Tenant
	resp, err := w.post(ctx, gen, "/tenants", encode(tenantRequest{
		TradingName: f.TradingName,
		LegalName:   f.LegalName,
		TaxID:       f.TaxID,
		Settings:    f.Settings,
	}), true)
	if err != nil {
		return w.recoverFrom(gen, StepTenant, err)
	}

	id := idOf(resp)
	return w.commit(gen, func() {
		w.ids.TenantID = id
		w.advance()
	})
}

func (w *Wizard) CreateRole(ctx context.Context) error {
	gen, err := w.begin(StepRole)
	if err != nil {
		return err
	}
	defer w.end(gen)

	resp, err := w.post(ctx, gen, "/roles", encode(roleRequest{Name: w.Forms().Role.Name}), true)
	if err != nil {
		if rerr := w.recoverFrom(gen, StepRole, err); rerr != nil {
			return rerr
		}
		return w.refreshAfterRole(ctx, gen)
	}

	id := idOf(resp)
	if err := w.commit(gen, func() {
		w.ids.RoleID = id
		w.advance()
	}); err != nil {
		return err
	}
	return w.refreshAfterRole(ctx, gen)
}

func (w *Wizard) CreateUser(ctx context.Context) error {
	gen, err := w.begin(StepUser)
	if err != nil {
		return err
	}
	defer w.end(gen)

	tenant := w.selected.userTenant.Selected()
	role := w.selected.userRole.Selected()
	if tenant == nil || role == nil {
		return w.fail(gen, validationf("Please select a tenant and a role before creating the user."))
	}

	f := w.Forms().User
	resp, err := w.post(ctx, gen, "/users", encode(userRequest{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Position: f.Position,
		TenantID: tenant,
		RoleID:   role,
	}), true)
	if err != nil {
		return err
	}

	id := idOf(resp)
	return w.commit(gen, func() {
		w.ids.UserID = id
		w.advance()
	})
}

func (w *Wizard) CreateSLA(ctx context.Context) error {
	gen, err := w.begin(StepSLA)
	if err != nil {
		return err
	}
	defer w.end(gen)

	tenant := w.selected.slaTenant.Selected()
	if tenant == nil {
		return w.fail(gen, validationf("Please select a tenant before creating the SLA policy."))
	}

	f := w.Forms().SLA
	resp, err := w.post(ctx, gen, "/slapolicies", encode(slaRequest{
		Name:                  f.Name,
		ResponseTimeMinutes:   f.ResponseTimeMinutes,
		ResolutionTimeMinutes: f.ResolutionTimeMinutes,
		OperationalHoursOnly:  f.OperationalHoursOnly,
		IsActive:              f.IsActive,
		CategoryDto:           categoryDto{Name: f.CategoryName, Description: f.CategoryDescription},
		TenantID:              tenant,
		PriorityDto:           priorityDto{Name: f.PriorityName},
	}), true)
	if err != nil {
		return err
	}

	slaID := idOf(resp)
	categoryID := idOf(firstObject(resp, "categoryDto", "category"))
	priorityID := idOf(firstObject(resp, "priorityDto", "priority"))
	if err := w.commit(gen, func() {
		w.ids.SLAPolicyID = slaID
		w.ids.CategoryID = categoryID
		w.ids.PriorityID = priorityID
		w.advance()
	}); err != nil {
		return err
	}
	return w.refreshAfterSLA(ctx, gen)
}

func (w *Wizard) CreateTicket(ctx context.Context) error {
	gen, err := w.begin(StepTicket)
	if err != nil {
		return err
	}
	defer w.end(gen)

	f := w.Forms().Ticket
	ticketType := strings.ToUpper(strings.TrimSpace(f.TicketType))
	if !ValidTicketType(ticketType) {
		return w.fail(gen, validationf("Ticket type must be one of %s.", strings.Join(TicketTypes, ", ")))
	}
	due, err := FormatDueDate(f.ResolutionDueDate)
	if err != nil {
		return w.fail(gen, validationf("Invalid resolution due date %q (expected %s).", f.ResolutionDueDate, DueDateLayout))
	}

	resp, err := w.post(ctx, gen, "/tickets", encode(ticketRequest{
		Title:             f.Title,
		Description:       f.Description,
		ResolutionDueDate: due,
		TicketType:        ticketType,
		Category:          w.selected.ticketCategory.Selected(),
		Tenant:            w.selected.ticketTenant.Selected(),
		Requester:         w.selected.ticketRequester.Selected(),
		Priority:          w.selected.ticketPriority.Selected(),
	}), true)
	if err != nil {
		return err
	}

	id := idOf(resp)
	return w.commit(gen, func() {
		w.ids.TicketID = id
		w.advance()
	})
}

// recoverFrom swallows a recognized duplicate-entity failure: the error slot is
// cleared, the error response stays visible and the wizard advances without an ID.
func (w *Wizard) recoverFrom(gen int, step Step, err error) error {
	cond := ClassifyFailure(step, err)
	if cond == ConditionNone {
		return err
	}
	w.log.WithFields(logrus.Fields{"step": step.String(), "condition": cond.String()}).
		Info("Entity already exists, continuing")
	return w.commit(gen, func() {
		w.errMsg = ""
		w.advance()
	})
}

func (w *Wizard) commit(gen int, fn func()) error {
	if !w.apply(gen, fn) {
		return ErrStale
	}
	return nil
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func field(body any, key string) any {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

func firstObject(body any, keys ...string) any {
	for _, k := range keys {
		if m, ok := field(body, k).(map[string]any); ok {
			return m
		}
	}
	return nil
}

func idOf(body any) *int64 {
	id, ok := lookup.ID(field(body, "id"))
	if !ok {
		return nil
	}
	return &id
}
