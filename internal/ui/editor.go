package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jroimartin/gocui"

	"thinkdesk/internal/httpclient"
)

// EnvEditor overrides $EDITOR for request bodies.
const EnvEditor = "THINKDESK_EDITOR"

// singleLineEditor is an editor that doesn't consume Enter (lets keybinding handle it)
type singleLineEditor struct{}

func (e singleLineEditor) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyDelete:
		v.EditDelete(false)
	case key == gocui.KeyArrowLeft:
		v.MoveCursor(-1, 0, false)
	case key == gocui.KeyArrowRight:
		v.MoveCursor(1, 0, false)
	case key == gocui.KeyHome || key == gocui.KeyCtrlA:
		v.SetCursor(0, 0)
	case key == gocui.KeyEnd || key == gocui.KeyCtrlE:
		v.SetCursor(len(viewText(v)), 0)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyEnter:
		// don't handle - let keybinding process it
	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	}
}

// openEdit shows the centered single-line modal. target is "<kind>:<key>".
func (a *App) openEdit(target, label, value string) error {
	g := a.g
	a.editing = true
	a.editTarget = target

	maxX, maxY := g.Size()
	width := 60
	if width > maxX-4 {
		width = maxX - 4
	}
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	ev, err := g.SetView("edit", x0, y0, x0+width, y0+height)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		ev.Editable = true
		ev.Editor = singleLineEditor{}
		ev.BgColor = gocui.ColorBlack
		ev.FgColor = gocui.ColorWhite
	}
	ev.Title = fmt.Sprintf(" %s (enter=ok, esc=cancel) ", label)
	ev.Clear()
	fmt.Fprint(ev, value)
	ev.SetCursor(len(value), 0)
	g.SetViewOnTop("edit")
	g.SetCurrentView("edit")
	return nil
}

func (a *App) closeEdit() error {
	if !a.editing {
		return nil
	}
	if v, err := a.g.View("edit"); err == nil {
		v.Clear()
		a.g.DeleteView("edit")
	}
	a.editing = false
	a.editTarget = ""
	a.setEndpointFocus()
	return nil
}

func (a *App) confirmEdit(g *gocui.Gui, v *gocui.View) error {
	if !a.editing {
		return nil
	}
	val := strings.TrimSpace(viewText(v))
	kind, key, ok := strings.Cut(a.editTarget, ":")
	if !ok {
		return a.closeEdit()
	}

	a.errorMsg = ""
	switch kind {
	case "path":
		a.pathVals[key] = val
	case "query":
		a.queryVals[key] = val
	case "wizard":
		if a.wiz.Step() != a.editStep {
			a.errorMsg = "The step changed while editing; value discarded."
			break
		}
		if err := a.wiz.SetField(a.editStep, key, val); err != nil {
			a.errorMsg = err.Error()
		}
	}
	return a.closeEdit()
}

func (a *App) editBodyInEditor(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoint || a.editing || a.requesting {
		return nil
	}
	if a.activeEndpoint.Body == nil {
		return nil
	}

	seed := strings.TrimSpace(a.bodyRaw)
	if seed == "" {
		seed = httpclient.PrettyJSON(a.activeEndpoint.Body.Example)
	}
	if strings.TrimSpace(seed) == "" {
		seed = "{}"
	}
	if !strings.HasSuffix(seed, "\n") {
		seed += "\n"
	}

	f, err := os.CreateTemp("", "thinkdesk-body-*.json")
	if err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	defer f.Close()
	if _, err := f.WriteString(seed); err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	a.suspendEditorFile = f.Name()
	return gocui.ErrQuit
}

func (a *App) runExternalEditor(file string) error {
	defer os.Remove(file)

	editor := editorCommand(os.Getenv(EnvEditor), os.Getenv("EDITOR"))
	cmd := exec.Command(editor[0], append(editor[1:], file)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	body, err := normalizeBody(string(b))
	if err != nil {
		return err
	}
	a.bodyRaw = body
	return nil
}

// normalizeBody checks that raw holds exactly one JSON value and indents it.
// Blank input clears the body.
func normalizeBody(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("invalid json body: %w", err)
	}
	if dec.More() {
		return "", fmt.Errorf("invalid json body: multiple json values")
	}
	norm, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(norm), nil
}

// editorCommand picks the first configured editor and splits it on whitespace.
func editorCommand(candidates ...string) []string {
	for _, c := range candidates {
		if fields := strings.Fields(c); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}
