package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/sirupsen/logrus"

	"thinkdesk/internal/lookup"
	"thinkdesk/internal/wizard"
)

// formRow is one line of the wizard form: an input field or a selector.
type formRow struct {
	field *wizard.Field
	sel   *lookup.Selector
}

func (a *App) wizardRows(step wizard.Step) []formRow {
	var rows []formRow
	for _, f := range a.wiz.Fields(step) {
		f := f
		rows = append(rows, formRow{field: &f})
	}
	for _, s := range a.wiz.Selectors(step) {
		rows = append(rows, formRow{sel: s})
	}
	return rows
}

func (a *App) layoutWizard(maxX, maxY int) error {
	keep := []string{"steps", "form", "output"}
	if a.editing {
		keep = append(keep, "edit")
	}
	if a.searching {
		keep = append(keep, "search")
	}
	if a.picker != nil && a.picker.Visible() {
		keep = append(keep, "results")
	} else if !a.searching {
		a.picker = nil
	}
	a.clearMainViews(keep)

	st := a.wiz.State()
	if st.Step != a.wizStep {
		a.wizStep = st.Step
		a.wizRow = 0
	}
	rows := a.wizardRows(st.Step)

	left := 26
	if left > maxX/3 {
		left = maxX / 3
	}
	mid := 2 + len(rows) + 3
	if mid < 8 {
		mid = 8
	}
	if limit := 2 + (maxY-5)/2; mid > limit {
		mid = limit
	}

	if v, err := a.g.SetView("steps", 0, 2, left, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Progress"
	}
	if v, err := a.g.SetView("form", left+1, 2, maxX-1, mid); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
	}
	if v, err := a.g.SetView("output", left+1, mid+1, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Last response"
		v.Wrap = true
	}

	a.renderSteps(st)
	a.renderForm(st, rows)
	a.renderOutput(st)

	if err := a.layoutPicker(left+1, maxX); err != nil {
		return err
	}

	switch {
	case a.editing:
		a.g.SetViewOnTop("edit")
		a.g.SetCurrentView("edit")
	case a.searching:
		a.g.SetViewOnTop("search")
		a.g.SetCurrentView("search")
	default:
		a.g.SetCurrentView("form")
	}
	return nil
}

// layoutPicker draws the search input and the results list of the open selector.
func (a *App) layoutPicker(x0, maxX int) error {
	if a.picker == nil {
		return nil
	}
	width := maxX - 1 - x0
	if width > 60 {
		width = 60
	}
	y0 := 4 + a.wizRow

	if a.searching {
		if v, err := a.g.SetView("search", x0+2, y0, x0+2+width-4, y0+2); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Title = fmt.Sprintf(" search %s ", a.picker.Name())
			v.Editable = true
			v.Editor = searchEditor{app: a}
			fmt.Fprint(v, a.picker.Search())
			v.SetCursor(len(a.picker.Search()), 0)
		}
	}

	if !a.picker.Visible() {
		return nil
	}
	opts := a.picker.Filtered()
	if a.pickerIdx >= len(opts) {
		a.pickerIdx = len(opts) - 1
	}
	if a.pickerIdx < 0 {
		a.pickerIdx = 0
	}
	height := len(opts) + 1
	if height < 2 {
		height = 2
	}
	if height > 10 {
		height = 10
	}
	v, err := a.g.SetView("results", x0+2, y0+3, x0+2+width-4, y0+3+height)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorCyan
	}
	v.Title = fmt.Sprintf(" %d match(es) ", len(opts))
	v.Clear()
	for _, o := range opts {
		fmt.Fprintf(v, "%s %s#%d%s\n", o.Label, colorDim, o.ID, colorReset)
	}
	if len(opts) == 0 {
		fmt.Fprintln(v, "(no matches)")
	}
	a.followCursor(v, a.pickerIdx)
	a.g.SetViewOnTop("results")
	return nil
}

func (a *App) moveWizardRow(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenWizard || a.editing || a.searching {
			return nil
		}
		n := len(a.wizardRows(a.wiz.Step()))
		if n == 0 {
			return nil
		}
		a.wizRow += delta
		if a.wizRow < 0 {
			a.wizRow = 0
		}
		if a.wizRow >= n {
			a.wizRow = n - 1
		}
		return nil
	}
}

func (a *App) wizardEnter(*gocui.Gui, *gocui.View) error {
	if a.scr != screenWizard || a.editing || a.searching {
		return nil
	}
	step := a.wiz.Step()
	rows := a.wizardRows(step)
	if a.wizRow < 0 || a.wizRow >= len(rows) {
		return nil
	}
	row := rows[a.wizRow]
	if row.sel != nil {
		a.openSearch(row.sel)
		return nil
	}
	a.editStep = step
	return a.openEdit("wizard:"+row.field.Key, row.field.Label, row.field.Value)
}

func (a *App) openSearch(sel *lookup.Selector) {
	if a.picker != nil && a.picker != sel {
		a.picker.Blur()
	}
	a.picker = sel
	a.pickerIdx = 0
	a.searching = true
	sel.Focus()
}

// closeSearch leaves the results up until the selector's blur delay elapses.
func (a *App) closeSearch() {
	if !a.searching {
		return
	}
	a.searching = false
	if v, err := a.g.View("search"); err == nil {
		v.Clear()
		a.g.DeleteView("search")
	}
	if a.picker == nil {
		return
	}
	a.picker.Blur()
	g := a.g
	time.AfterFunc(a.blurDelay+10*time.Millisecond, func() {
		g.Update(func(*gocui.Gui) error { return nil })
	})
}

func (a *App) movePicker(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if a.picker == nil {
			return nil
		}
		a.pickerIdx += delta
		if n := len(a.picker.Filtered()); a.pickerIdx >= n {
			a.pickerIdx = n - 1
		}
		if a.pickerIdx < 0 {
			a.pickerIdx = 0
		}
		return nil
	}
}

func (a *App) choosePicker(*gocui.Gui, *gocui.View) error {
	if a.picker == nil {
		return nil
	}
	opts := a.picker.Filtered()
	if a.pickerIdx >= 0 && a.pickerIdx < len(opts) {
		a.picker.Select(opts[a.pickerIdx])
		a.log.WithFields(logrus.Fields{"selector": a.picker.Name(), "id": opts[a.pickerIdx].ID}).Debug("Option selected")
	}
	a.closeSearch()
	return nil
}

// searchEditor edits the single search line and feeds it to the open selector.
type searchEditor struct {
	app *App
}

func (e searchEditor) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	singleLineEditor{}.Edit(v, key, ch, mod)
	if e.app.picker == nil {
		return
	}
	if q := strings.TrimSpace(viewText(v)); q != e.app.picker.Search() {
		e.app.picker.SetSearch(q)
		e.app.pickerIdx = 0
	}
}

func (a *App) submitStep(*gocui.Gui, *gocui.View) error {
	if a.wiz.Loading() {
		return nil
	}
	a.background("submit", a.wiz.Submit)
	return nil
}

func (a *App) refreshReferences(*gocui.Gui, *gocui.View) error {
	if a.scr != screenWizard || a.editing || a.searching || a.wiz.Loading() {
		return nil
	}
	a.background("refresh", a.wiz.RefreshReferences)
	return nil
}

// background runs a wizard action off the UI loop and redraws when it ends.
// The wizard records its own outcome, so only unexpected errors are logged here.
func (a *App) background(action string, fn func(context.Context) error) {
	g := a.g
	a.errorMsg = ""
	go func() {
		err := fn(context.Background())
		if err != nil && !errors.Is(err, wizard.ErrStale) {
			a.log.WithError(err).WithField("action", action).Debug("Wizard action ended with error")
		}
		g.Update(func(*gocui.Gui) error { return nil })
	}()
}

func (a *App) startOver(*gocui.Gui, *gocui.View) error {
	if a.editing && strings.HasPrefix(a.editTarget, "wizard:") {
		a.closeEdit()
	}
	a.closeSearch()
	a.picker = nil
	a.wiz.StartOver()
	a.wizRow = 0
	a.errorMsg = ""
	if v, err := a.g.View("output"); err == nil {
		v.SetOrigin(0, 0)
	}
	return nil
}

func (a *App) scrollOutput(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, _ *gocui.View) error {
		if v, err := g.View("output"); err == nil {
			scroll(v, delta)
		}
		return nil
	}
}

func (a *App) renderSteps(st wizard.State) {
	v, err := a.g.View("steps")
	if err != nil {
		return
	}
	v.Clear()

	for _, s := range wizard.Steps() {
		switch {
		case s < st.Step || st.Step == wizard.StepComplete:
			fmt.Fprintf(v, "%s+ %s%s\n", colorGreen, s.Title(), colorReset)
		case s == st.Step:
			fmt.Fprintf(v, "%s> %s%s\n", colorYellow, s.Title(), colorReset)
		default:
			fmt.Fprintf(v, "%s  %s%s\n", colorDim, s.Title(), colorReset)
		}
	}

	fmt.Fprintln(v)
	if s := st.Session; s != nil {
		fmt.Fprintf(v, "session: %s\n", firstNonEmpty(s.Subject, "opaque token"))
		if !s.ExpiresAt.IsZero() {
			exp := s.ExpiresAt.Local().Format("15:04")
			if s.Expired(time.Now()) {
				fmt.Fprintf(v, "%sexpired %s%s\n", colorRed, exp, colorReset)
			} else {
				fmt.Fprintf(v, "expires %s\n", exp)
			}
		}
	} else {
		fmt.Fprintf(v, "%snot logged in%s\n", colorDim, colorReset)
	}

	fmt.Fprintln(v)
	for _, id := range idLines(st.IDs) {
		fmt.Fprintln(v, id)
	}
}

func idLines(ids wizard.IDs) []string {
	var out []string
	add := func(name string, id *int64) {
		if id != nil {
			out = append(out, fmt.Sprintf("%-9s #%d", name, *id))
		}
	}
	add("tenant", ids.TenantID)
	add("role", ids.RoleID)
	add("user", ids.UserID)
	add("sla", ids.SLAPolicyID)
	add("category", ids.CategoryID)
	add("priority", ids.PriorityID)
	add("ticket", ids.TicketID)
	return out
}

func (a *App) renderForm(st wizard.State, rows []formRow) {
	v, err := a.g.View("form")
	if err != nil {
		return
	}
	v.Clear()

	steps := len(wizard.Steps()) - 1
	if st.Step == wizard.StepComplete {
		v.Title = " Complete "
		fmt.Fprintf(v, "%sWorkflow finished.%s", colorGreen, colorReset)
		if st.IDs.TicketID != nil {
			fmt.Fprintf(v, " Ticket #%d was created.", *st.IDs.TicketID)
		}
		fmt.Fprintln(v)
		fmt.Fprintln(v, "Press ctrl+x to start over.")
		v.Highlight = false
		return
	}
	v.Title = fmt.Sprintf(" Step %d/%d: %s ", int(st.Step)+1, steps, st.Step.Title())
	v.Highlight = !a.editing && !a.searching

	width := 0
	for _, r := range rows {
		if l := len(rowLabel(r)); l > width {
			width = l
		}
	}
	for _, r := range rows {
		fmt.Fprintf(v, "%s  %s\n", padRight(rowLabel(r), width), rowValue(r))
	}
	if len(rows) == 0 {
		fmt.Fprintln(v, "(nothing to fill in)")
	}
	a.followCursor(v, a.wizRow)
}

func rowLabel(r formRow) string {
	if r.sel != nil {
		name := r.sel.Name()
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return r.field.Label
}

func rowValue(r formRow) string {
	if r.sel != nil {
		if id := r.sel.Selected(); id != nil {
			return fmt.Sprintf("%s%s %s#%d%s", colorCyan, r.sel.Label(), colorDim, *id, colorReset)
		}
		if len(r.sel.Options()) == 0 {
			return colorDim + "(no options loaded)" + colorReset
		}
		return colorYellow + "(none selected)" + colorReset
	}
	if r.field.Key == "password" {
		return mask(r.field.Value)
	}
	return r.field.Value
}

func (a *App) renderOutput(st wizard.State) {
	v, err := a.g.View("output")
	if err != nil {
		return
	}
	v.Clear()

	if st.Loading {
		fmt.Fprintf(v, "%sLoading...%s\n", colorYellow, colorReset)
	}
	if st.Error != "" {
		fmt.Fprintf(v, "%s%s%s\n", colorRed, st.Error, colorReset)
	}
	if r := st.LastResponse; r != nil {
		status := strconv.Itoa(r.Status)
		if text := http.StatusText(r.Status); text != "" {
			status += " " + text
		}
		fmt.Fprintln(v, colorizeStatus(status))
		fmt.Fprintln(v, wizard.FormatBody(r.Body))
	}
}
