package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"thinkdesk/internal/config"
	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/lookup"
	"thinkdesk/internal/wizard"
)

func newRunCmd(e *env) *cobra.Command {
	var showBodies bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole workflow wizard without the terminal UI",
		Long: `Run logs in and creates a tenant, role, user, SLA policy and ticket using the
form values from the configuration file. Selections that cannot be taken from
the entities created along the way are read from wizard.selections.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := httpclient.New(e.log, e.cfg.API.BaseURL, e.cfg.API.Timeout)
			forms := e.cfg.Wizard.Forms
			w := wizard.New(e.log, client, wizard.Options{
				Forms:     &forms,
				BlurDelay: e.cfg.UI.BlurDelay,
			})
			return runWizard(cmd.Context(), cmd.OutOrStdout(), w, e.cfg.Wizard.Selections, showBodies)
		},
	}

	cmd.Flags().BoolVar(&showBodies, "show-responses", false, "Print every response body")

	return cmd
}

// runWizard submits every step in order and stops at the first step that does not advance.
func runWizard(ctx context.Context, out io.Writer, w *wizard.Wizard, sel config.Selections, showBodies bool) error {
	total := len(wizard.Steps()) - 1

	for step := w.Step(); step != wizard.StepComplete; step = w.Step() {
		applySelections(w, step, sel)

		fmt.Fprintf(out, "[%d/%d] %s ... ", int(step)+1, total, step.Title())
		err := w.Submit(ctx)
		advanced := w.Step() != step

		switch {
		case err == nil:
			fmt.Fprintln(out, "ok")
		case advanced:
			// The POST went through; only the follow-up list refresh failed.
			fmt.Fprintf(out, "ok (warning: %s)\n", firstNonEmpty(w.Error(), err.Error()))
		default:
			fmt.Fprintln(out, "failed")
			if showBodies {
				printResponse(out, w.LastResponse())
			}
			return fmt.Errorf("%s: %s", step.Title(), firstNonEmpty(w.Error(), err.Error()))
		}

		if showBodies {
			printResponse(out, w.LastResponse())
		}
	}

	ids := w.IDs()
	fmt.Fprintln(out, "Workflow complete.")
	printID(out, "tenant", ids.TenantID)
	printID(out, "role", ids.RoleID)
	printID(out, "user", ids.UserID)
	printID(out, "sla policy", ids.SLAPolicyID)
	printID(out, "category", ids.CategoryID)
	printID(out, "priority", ids.PriorityID)
	printID(out, "ticket", ids.TicketID)
	return nil
}

// applySelections fills selectors the step left empty from configuration.
func applySelections(w *wizard.Wizard, step wizard.Step, sel config.Selections) {
	byName := map[string]*int64{
		"tenant":    sel.TenantID,
		"role":      sel.RoleID,
		"requester": sel.RequesterID,
		"category":  sel.CategoryID,
		"priority":  sel.PriorityID,
	}
	for _, s := range w.Selectors(step) {
		id := byName[s.Name()]
		if id == nil || s.Selected() != nil {
			continue
		}
		s.Select(lookup.Option{ID: *id})
	}
}

func printResponse(out io.Writer, r *wizard.Response) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "    HTTP %d\n", r.Status)
	if body := wizard.FormatBody(r.Body); body != "" {
		fmt.Fprintln(out, indent(body, "    "))
	}
}

func printID(out io.Writer, name string, id *int64) {
	if id == nil {
		fmt.Fprintf(out, "  %-11s -\n", name)
		return
	}
	fmt.Fprintf(out, "  %-11s #%d\n", name, *id)
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
