package wizard

import (
	"context"

	"thinkdesk/internal/lookup"
)

type fetch struct {
	path  string
	apply func(body any)
}

// RefreshReferences re-fetches the lists the current step selects from.
func (w *Wizard) RefreshReferences(ctx context.Context) error {
	step := w.Step()

	var run func(context.Context, int) error
	switch step {
	case StepUser, StepSLA:
		run = w.refreshAfterRole
	case StepTicket, StepComplete:
		run = w.refreshAfterSLA
	default:
		return validationf("Nothing to refresh before the role is created.")
	}

	gen, err := w.begin(step)
	if err != nil {
		return err
	}
	defer w.end(gen)
	return run(ctx, gen)
}

func (w *Wizard) refreshAfterRole(ctx context.Context, gen int) error {
	s := w.selected
	return w.refresh(ctx, gen, []fetch{
		{"/tenants", func(body any) {
			w.refs.Tenants = lookup.Options(body, "tradingName")
			for _, sel := range []*lookup.Selector{s.userTenant, s.slaTenant, s.ticketTenant} {
				sel.SetOptions(w.refs.Tenants)
				sel.Seed(w.ids.TenantID)
			}
		}},
		{"/roles", func(body any) {
			w.refs.Roles = lookup.Options(body, "name")
			s.userRole.SetOptions(w.refs.Roles)
			s.userRole.Seed(w.ids.RoleID)
		}},
	})
}

func (w *Wizard) refreshAfterSLA(ctx context.Context, gen int) error {
	s := w.selected
	return w.refresh(ctx, gen, []fetch{
		{"/tenants", func(body any) {
			w.refs.Tenants = lookup.Options(body, "tradingName")
			s.ticketTenant.SetOptions(w.refs.Tenants)
			s.ticketTenant.Seed(w.ids.TenantID)
		}},
		{"/users", func(body any) {
			w.refs.Users = lookup.Options(body, "name")
			s.ticketRequester.SetOptions(w.refs.Users)
			s.ticketRequester.Seed(w.ids.UserID)
		}},
		{"/slapolicies", func(body any) {
			w.refs.Categories = lookup.Nested(body, "name", "categoryDto", "category")
			w.refs.Priorities = lookup.Nested(body, "name", "priorityDto", "priority")
			s.ticketCategory.SetOptions(w.refs.Categories)
			s.ticketCategory.Seed(w.ids.CategoryID)
			s.ticketPriority.SetOptions(w.refs.Priorities)
			s.ticketPriority.Seed(w.ids.PriorityID)
		}},
	})
}

// refresh runs the fetches in order and stops at the first failure.
func (w *Wizard) refresh(ctx context.Context, gen int, batch []fetch) error {
	for _, f := range batch {
		body, err := w.get(ctx, gen, f.path)
		if err != nil {
			return err
		}
		if !w.apply(gen, func() { f.apply(body) }) {
			return ErrStale
		}
	}
	w.log.WithField("lists", len(batch)).Debug("References refreshed")
	return nil
}
