package ui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/sirupsen/logrus"

	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/lookup"
	"thinkdesk/internal/model"
	"thinkdesk/internal/wizard"
)

type screen int

const (
	screenDocs screen = iota
	screenEndpoint
	screenResponse
	screenWizard
)

type focusPane int

const (
	panePath focusPane = iota
	paneQuery
	paneBody
)

// Options wires the application to its data and collaborators.
type Options struct {
	Title     string
	Endpoints []model.Endpoint
	Client    *httpclient.Client
	Wizard    *wizard.Wizard
	// Token is sent by the docs request runner when the wizard has no session.
	Token     string
	BlurDelay time.Duration
}

// App owns the terminal UI. Its fields are only touched from the gocui loop;
// background work reports back through g.Update.
type App struct {
	log logrus.FieldLogger

	g *gocui.Gui

	scr screen

	title     string
	client    *httpclient.Client
	wiz       *wizard.Wizard
	token     string
	blurDelay time.Duration

	endpoints []model.Endpoint

	filter   string
	filtered []int
	selected int

	activeEndpoint model.Endpoint
	pathVals       map[string]string
	queryVals      map[string]string
	bodyRaw        string

	pane focusPane

	editing    bool
	editTarget string
	editStep   wizard.Step

	// wizard screen
	wizStep   wizard.Step
	wizRow    int
	picker    *lookup.Selector
	pickerIdx int
	searching bool

	suspendEditorFile string

	requesting bool
	lastReq    httpclient.RequestSpec
	lastRes    httpclient.Result
	errorMsg   string
}

func NewApp(log logrus.FieldLogger, opts Options) *App {
	a := &App{
		log:       log.WithField("component", "ui"),
		scr:       screenDocs,
		title:     firstNonEmpty(opts.Title, "ThinkDesk API"),
		client:    opts.Client,
		wiz:       opts.Wizard,
		token:     strings.TrimSpace(opts.Token),
		blurDelay: opts.BlurDelay,
		endpoints: opts.Endpoints,
		pathVals:  map[string]string{},
		queryVals: map[string]string{},
	}
	a.recomputeFilter()
	return a
}

func (a *App) Run() error {
	// gocui has no suspend/resume, so handing the terminal to $EDITOR means
	// leaving the main loop and building a new Gui afterwards.
	for {
		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		a.g = g

		g.BgColor = gocui.ColorBlack
		g.FgColor = gocui.ColorWhite

		g.Cursor = true
		g.InputEsc = true
		g.SetManagerFunc(a.layout)

		if err := a.bindKeys(); err != nil {
			g.Close()
			return err
		}

		err = g.MainLoop()
		g.Close()

		if a.suspendEditorFile != "" {
			file := a.suspendEditorFile
			a.suspendEditorFile = ""
			if err := a.runExternalEditor(file); err != nil {
				a.log.WithError(err).Warn("Editing request body failed")
				a.errorMsg = err.Error()
			}
			continue
		}

		if err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	}
}

func (a *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("header", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}
	a.renderHeader()

	if v, err := g.SetView("footer", 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}
	a.renderFooter()

	switch a.scr {
	case screenDocs:
		return a.layoutDocs(maxX, maxY)
	case screenEndpoint:
		return a.layoutEndpoint(maxX, maxY)
	case screenResponse:
		return a.layoutResponse(maxX, maxY)
	case screenWizard:
		return a.layoutWizard(maxX, maxY)
	default:
		return nil
	}
}

var mainViews = []string{
	"filter", "endpoints",
	"selected", "path", "query", "body", "example",
	"response",
	"steps", "form", "output", "search", "results",
	"edit",
}

func (a *App) clearMainViews(keep []string) {
	keepSet := map[string]bool{"header": true, "footer": true}
	for _, k := range keep {
		keepSet[k] = true
	}

	for _, n := range mainViews {
		if keepSet[n] {
			continue
		}
		if v, err := a.g.View(n); err == nil {
			v.Clear()
			a.g.DeleteView(n)
		}
	}
}

func (a *App) bindKeys() error {
	g := a.g
	if err := g.SetKeybinding("", 'q', gocui.ModNone, a.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, a.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyEsc, gocui.ModNone, a.back); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyF1, gocui.ModNone, a.showScreen(screenDocs)); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyF2, gocui.ModNone, a.showScreen(screenWizard)); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlX, gocui.ModNone, a.startOver); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlR, gocui.ModNone, a.run); err != nil {
		return err
	}

	// docs list
	if err := g.SetKeybinding("endpoints", gocui.KeyArrowDown, gocui.ModNone, a.moveSel(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyArrowUp, gocui.ModNone, a.moveSel(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyEnter, gocui.ModNone, a.openEndpoint); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyBackspace, gocui.ModNone, a.filterBackspace); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyBackspace2, gocui.ModNone, a.filterBackspace); err != nil {
		return err
	}
	for i := 1; i <= 5; i++ {
		if err := g.SetKeybinding("endpoints", rune('0'+i), gocui.ModNone, a.selectEndpointByNumber(i)); err != nil {
			return err
		}
	}
	for r := rune(32); r <= rune(126); r++ {
		if r >= '1' && r <= '5' {
			continue
		}
		if err := g.SetKeybinding("endpoints", r, gocui.ModNone, a.appendFilterRune(r)); err != nil {
			return err
		}
	}

	// endpoint detail
	if err := g.SetKeybinding("", gocui.KeyTab, gocui.ModNone, a.tabPane); err != nil {
		return err
	}
	for _, name := range []string{"path", "query"} {
		if err := g.SetKeybinding(name, gocui.KeyArrowDown, gocui.ModNone, a.moveRow(1)); err != nil {
			return err
		}
		if err := g.SetKeybinding(name, gocui.KeyArrowUp, gocui.ModNone, a.moveRow(-1)); err != nil {
			return err
		}
		if err := g.SetKeybinding(name, gocui.KeyEnter, gocui.ModNone, a.beginParamEdit(name)); err != nil {
			return err
		}
		if err := g.SetKeybinding(name, 'd', gocui.ModNone, a.resetParam); err != nil {
			return err
		}
	}
	if err := g.SetKeybinding("body", gocui.KeyEnter, gocui.ModNone, a.editBodyInEditor); err != nil {
		return err
	}
	if err := g.SetKeybinding("body", 'd', gocui.ModNone, a.resetParam); err != nil {
		return err
	}

	// edit modal
	if err := g.SetKeybinding("edit", gocui.KeyEnter, gocui.ModNone, a.confirmEdit); err != nil {
		return err
	}

	// response
	if err := g.SetKeybinding("response", gocui.KeyArrowDown, gocui.ModNone, a.scrollView(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", gocui.KeyArrowUp, gocui.ModNone, a.scrollView(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", 'r', gocui.ModNone, a.rerun); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", gocui.KeyEnter, gocui.ModNone, a.responseToDocs); err != nil {
		return err
	}

	// wizard
	if err := g.SetKeybinding("form", gocui.KeyArrowDown, gocui.ModNone, a.moveWizardRow(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", gocui.KeyArrowUp, gocui.ModNone, a.moveWizardRow(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", gocui.KeyEnter, gocui.ModNone, a.wizardEnter); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'R', gocui.ModNone, a.refreshReferences); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'J', gocui.ModNone, a.scrollOutput(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'K', gocui.ModNone, a.scrollOutput(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("search", gocui.KeyArrowDown, gocui.ModNone, a.movePicker(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("search", gocui.KeyArrowUp, gocui.ModNone, a.movePicker(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("search", gocui.KeyEnter, gocui.ModNone, a.choosePicker); err != nil {
		return err
	}

	return nil
}

func (a *App) quit(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

func (a *App) back(*gocui.Gui, *gocui.View) error {
	if a.editing {
		return a.closeEdit()
	}
	if a.searching {
		a.closeSearch()
		return nil
	}
	switch a.scr {
	case screenResponse:
		a.scr = screenEndpoint
	case screenEndpoint:
		a.scr = screenDocs
	case screenWizard:
		a.scr = screenDocs
	case screenDocs:
		// no previous screen
	}
	a.errorMsg = ""
	return nil
}

func (a *App) showScreen(s screen) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if a.editing || a.searching {
			return nil
		}
		a.scr = s
		a.errorMsg = ""
		return nil
	}
}

// run is ctrl+r: send the docs request, or submit the current wizard step.
func (a *App) run(g *gocui.Gui, v *gocui.View) error {
	if a.editing || a.searching {
		return nil
	}
	switch a.scr {
	case screenEndpoint:
		return a.executeRequest(g, v)
	case screenResponse:
		return a.rerun(g, v)
	case screenWizard:
		return a.submitStep(g, v)
	default:
		return nil
	}
}

func (a *App) scrollView(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if v == nil {
			return nil
		}
		scroll(v, delta)
		return nil
	}
}

func scroll(v *gocui.View, delta int) {
	ox, oy := v.Origin()
	if delta > 0 {
		v.SetOrigin(ox, oy+delta)
	} else if oy+delta >= 0 {
		v.SetOrigin(ox, oy+delta)
	} else {
		v.SetOrigin(ox, 0)
	}
}

func (a *App) renderHeader() {
	v, err := a.g.View("header")
	if err != nil {
		return
	}
	v.Clear()

	tab := func(key, label string, active bool) string {
		if active {
			return colorGreen + "[" + key + "] " + label + colorReset
		}
		return colorDim + "[" + key + "] " + label + colorReset
	}
	docs := a.scr != screenWizard
	fmt.Fprintf(v, "%sthinkdesk%s  -  %s   %s  %s", colorGreen, colorReset, a.title,
		tab("F1", "Docs", docs), tab("F2", "Wizard", !docs))
	if a.client != nil {
		fmt.Fprintf(v, "   %s%s%s", colorDim, a.client.BaseURL(), colorReset)
	}
	if s := a.wiz.Session(); s != nil {
		fmt.Fprintf(v, "   %ssession: %s%s", colorCyan, firstNonEmpty(s.Subject, "active"), colorReset)
	}
	fmt.Fprintln(v)
}

func (a *App) renderFooter() {
	v, err := a.g.View("footer")
	if err != nil {
		return
	}
	v.Clear()
	if a.errorMsg != "" {
		fmt.Fprint(v, colorRed+a.errorMsg+colorReset)
		return
	}

	var msg string
	switch {
	case a.editing:
		msg = "enter: ok   esc: cancel"
	case a.searching:
		msg = "type: search   up/down: choose   enter: select   esc: close"
	default:
		switch a.scr {
		case screenDocs:
			msg = "type: filter   1-5: quick select   enter: open   F2: wizard   q: quit"
		case screenEndpoint:
			msg = "tab: switch pane   enter: edit   d: reset   ctrl+r: run   esc: back"
			if a.pane == paneBody && a.activeEndpoint.Body != nil {
				msg = "tab: switch pane   enter: edit json ($EDITOR)   d: reset   ctrl+r: run   esc: back"
			}
			if a.requesting {
				msg = "sending request..."
			}
		case screenResponse:
			msg = "up/down: scroll   r: rerun   enter: back to docs   esc: back"
		case screenWizard:
			msg = "up/down: move   enter: edit/select   ctrl+r: submit   R: refresh lists   J/K: scroll   ctrl+x: start over   F1: docs"
		}
	}
	fmt.Fprint(v, msg)
}

// ansi colors
const (
	colorDim     = "\033[90m"
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

func viewText(v *gocui.View) string {
	b := v.Buffer()
	// gocui includes a trailing newline
	return strings.TrimSuffix(b, "\n")
}

func viewLines(v *gocui.View) []string {
	buf := strings.TrimSuffix(v.Buffer(), "\n")
	if buf == "" {
		return nil
	}
	return strings.Split(buf, "\n")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", len([]rune(s)))
}

func colorizeMethod(method string) string {
	var color string
	switch strings.ToUpper(method) {
	case "GET":
		color = colorBlue
	case "POST":
		color = colorGreen
	case "PUT":
		color = colorYellow
	case "DELETE":
		color = colorRed
	case "PATCH":
		color = colorCyan
	case "HEAD":
		color = colorMagenta
	default:
		color = colorReset
	}
	return color + padRight(method, 6) + colorReset
}

func colorizeStatus(status string) string {
	parts := strings.Fields(status)
	if len(parts) == 0 {
		return status
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return status
	}
	var color string
	switch {
	case code >= 200 && code < 300:
		color = colorGreen
	case code >= 400 && code < 500:
		color = colorYellow
	case code >= 500:
		color = colorRed
	default:
		color = colorReset
	}
	return color + status + colorReset
}

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

func highlightPathParams(path string) string {
	return pathParamRe.ReplaceAllString(path, colorCyan+"{$1}"+colorReset)
}
