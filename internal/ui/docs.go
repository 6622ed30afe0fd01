package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"

	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/wizard"
)

func (a *App) layoutDocs(maxX, maxY int) error {
	a.clearMainViews([]string{"filter", "endpoints"})

	if v, err := a.g.SetView("filter", 0, 2, maxX-1, 4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Filter"
		v.Editable = false
	}
	if v, err := a.g.SetView("endpoints", 0, 4, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Endpoints"
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
		v.Autoscroll = false
	}
	a.renderFilter()
	a.renderEndpoints()
	if _, err := a.g.SetCurrentView("endpoints"); err != nil {
		return err
	}
	return nil
}

func (a *App) layoutEndpoint(maxX, maxY int) error {
	ep := a.activeEndpoint
	hasPath := len(ep.PathParams) > 0
	hasQuery := len(ep.QueryParams) > 0
	hasBody := ep.Body != nil

	var panels []string
	if hasPath {
		panels = append(panels, "path")
	}
	if hasQuery {
		panels = append(panels, "query")
	}
	if hasBody {
		panels = append(panels, "body")
	}
	if ep.ResponseExample != "" {
		panels = append(panels, "example")
	}
	if !hasPath && !hasQuery && !hasBody {
		panels = append([]string{"path"}, panels...)
	}

	keep := append([]string{"selected"}, panels...)
	if a.editing {
		keep = append(keep, "edit")
	}
	a.clearMainViews(keep)

	a.ensureValidPane(hasPath, hasQuery, hasBody)

	if v, err := a.g.SetView("selected", 0, 2, maxX-1, 6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Endpoint"
		v.Wrap = true
	}

	top := 6
	bottom := maxY - 3
	height := (bottom - top) / len(panels)

	for i, panel := range panels {
		y0 := top + i*height
		y1 := top + (i+1)*height
		if i == len(panels)-1 {
			y1 = bottom
		}
		if v, err := a.g.SetView(panel, 0, y0, maxX-1, y1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Highlight = panel == "path" || panel == "query"
		}
	}

	a.renderEndpoint()
	a.updatePanelColors()

	if a.editing {
		a.g.SetViewOnTop("edit")
		a.g.SetCurrentView("edit")
	} else {
		a.setEndpointFocus()
	}
	return nil
}

func (a *App) ensureValidPane(hasPath, hasQuery, hasBody bool) {
	avail := map[focusPane]bool{panePath: hasPath, paneQuery: hasQuery, paneBody: hasBody}
	if avail[a.pane] {
		return
	}
	for _, p := range []focusPane{panePath, paneQuery, paneBody} {
		if avail[p] {
			a.pane = p
			return
		}
	}
}

func paneName(p focusPane) string {
	switch p {
	case paneQuery:
		return "query"
	case paneBody:
		return "body"
	default:
		return "path"
	}
}

func (a *App) updatePanelColors() {
	for _, p := range []focusPane{panePath, paneQuery, paneBody} {
		v, err := a.g.View(paneName(p))
		if err != nil {
			continue
		}
		if a.pane == p && !a.editing {
			v.SelBgColor = gocui.ColorGreen
			v.SelFgColor = gocui.ColorBlack
			v.FgColor = gocui.ColorWhite
		} else {
			v.SelBgColor = gocui.ColorDefault
			v.SelFgColor = gocui.ColorDefault
			v.FgColor = gocui.ColorDefault
		}
	}
}

func (a *App) setEndpointFocus() {
	if a.scr != screenEndpoint || a.editing {
		return
	}
	a.g.SetCurrentView(paneName(a.pane))
}

func (a *App) layoutResponse(maxX, maxY int) error {
	a.clearMainViews([]string{"response"})

	if v, err := a.g.SetView("response", 0, 2, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Response"
		v.Wrap = false
		v.Autoscroll = false
	}
	a.renderResponse()
	if _, err := a.g.SetCurrentView("response"); err != nil {
		return err
	}
	return nil
}

func (a *App) appendFilterRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenDocs || a.editing {
			return nil
		}
		a.filter += string(r)
		a.recomputeFilter()
		return nil
	}
}

func (a *App) filterBackspace(*gocui.Gui, *gocui.View) error {
	if a.scr != screenDocs || a.editing {
		return nil
	}
	if len(a.filter) == 0 {
		return nil
	}
	a.filter = a.filter[:len(a.filter)-1]
	a.recomputeFilter()
	return nil
}

func (a *App) recomputeFilter() {
	a.filtered = filterEndpoints(a.endpoints, a.filter)
	if a.selected >= len(a.filtered) {
		a.selected = 0
	}
}

func (a *App) moveSel(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenDocs || len(a.filtered) == 0 {
			return nil
		}
		a.selected += delta
		if a.selected < 0 {
			a.selected = 0
		}
		if a.selected >= len(a.filtered) {
			a.selected = len(a.filtered) - 1
		}
		if v != nil {
			a.followCursor(v, a.selected)
		}
		return nil
	}
}

// followCursor places the cursor on line, scrolling the origin when the line is off screen.
func (a *App) followCursor(v *gocui.View, line int) {
	_, h := v.Size()
	ox, oy := v.Origin()
	switch {
	case h <= 0:
		return
	case line < oy:
		oy = line
	case line >= oy+h:
		oy = line - h + 1
	}
	v.SetOrigin(ox, oy)
	v.SetCursor(0, line-oy)
}

func (a *App) openEndpoint(*gocui.Gui, *gocui.View) error {
	if a.scr != screenDocs || len(a.filtered) == 0 {
		return nil
	}
	a.activeEndpoint = a.endpoints[a.filtered[a.selected]]
	a.pathVals = map[string]string{}
	a.queryVals = map[string]string{}
	a.bodyRaw = ""
	a.pane = panePath
	a.scr = screenEndpoint
	a.errorMsg = ""
	a.log.WithField("endpoint", a.activeEndpoint.Key()).Debug("Endpoint opened")
	return nil
}

func (a *App) selectEndpointByNumber(num int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenDocs {
			return nil
		}
		idx := num - 1
		if idx < 0 || idx >= len(a.filtered) {
			return nil
		}
		a.selected = idx
		return a.openEndpoint(g, v)
	}
}

func (a *App) responseToDocs(*gocui.Gui, *gocui.View) error {
	if a.scr != screenResponse {
		return nil
	}
	a.scr = screenDocs
	a.errorMsg = ""
	return nil
}

func (a *App) tabPane(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoint || a.editing {
		return nil
	}
	ep := a.activeEndpoint
	var panes []focusPane
	if len(ep.PathParams) > 0 {
		panes = append(panes, panePath)
	}
	if len(ep.QueryParams) > 0 {
		panes = append(panes, paneQuery)
	}
	if ep.Body != nil {
		panes = append(panes, paneBody)
	}
	if len(panes) < 2 {
		return nil
	}
	next := 0
	for i, p := range panes {
		if p == a.pane {
			next = (i + 1) % len(panes)
			break
		}
	}
	a.pane = panes[next]
	a.setEndpointFocus()
	return nil
}

func (a *App) moveRow(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenEndpoint || a.editing || v == nil {
			return nil
		}
		ox, oy := v.Origin()
		cx, cy := v.Cursor()
		newY := cy + delta
		if newY < 0 {
			if oy > 0 {
				v.SetOrigin(ox, oy-1)
			}
			return nil
		}
		if oy+newY >= len(viewLines(v)) {
			return nil
		}
		v.SetCursor(cx, newY)
		return nil
	}
}

func (a *App) resetParam(g *gocui.Gui, v *gocui.View) error {
	if a.scr != screenEndpoint || a.editing || v == nil {
		return nil
	}
	switch a.pane {
	case paneBody:
		a.bodyRaw = ""
	case panePath:
		delete(a.pathVals, selectedKey(v))
	case paneQuery:
		delete(a.queryVals, selectedKey(v))
	}
	return nil
}

func (a *App) beginParamEdit(pane string) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenEndpoint || a.editing || v == nil {
			return nil
		}
		key := selectedKey(v)
		if key == "" {
			return nil
		}
		val := a.pathVals[key]
		if pane == "query" {
			val = a.queryVals[key]
		}
		return a.openEdit(pane+":"+key, key, val)
	}
}

// docsToken is the bearer token the request runner attaches to protected endpoints.
func (a *App) docsToken() string {
	return firstNonEmpty(a.wiz.Token(), a.token)
}

func (a *App) requestBody() string {
	if strings.TrimSpace(a.bodyRaw) != "" || a.activeEndpoint.Body == nil {
		return a.bodyRaw
	}
	return a.activeEndpoint.Body.Example
}

func (a *App) executeRequest(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoint || a.editing || a.requesting {
		return nil
	}
	ep := a.activeEndpoint
	token := a.docsToken()
	if ep.NeedsAuth && token == "" {
		a.errorMsg = "This endpoint needs a token: log in with the wizard (F2) or set THINKDESK_TOKEN."
		return nil
	}

	req, err := httpclient.BuildRequest(a.client.BaseURL(), ep, a.pathVals, a.queryVals, a.requestBody(), token)
	if err != nil {
		if errors.Is(err, httpclient.ErrMalformedBody) {
			a.errorMsg = wizard.Message(err)
		} else {
			a.errorMsg = err.Error()
		}
		return nil
	}
	a.send(req)
	return nil
}

func (a *App) rerun(*gocui.Gui, *gocui.View) error {
	if a.scr != screenResponse || a.requesting || a.lastReq.URL == "" {
		return nil
	}
	req, ok := reauthorize(a.lastReq, a.docsToken())
	if !ok {
		a.errorMsg = "The session ended: log in with the wizard (F2) or set THINKDESK_TOKEN."
		return nil
	}
	a.send(req)
	return nil
}

// reauthorize swaps the bearer token of a protected request for token. It
// reports false when the request needs a token and none is available.
func reauthorize(req httpclient.RequestSpec, token string) (httpclient.RequestSpec, bool) {
	if _, ok := req.Headers["Authorization"]; !ok {
		return req, true
	}
	if token == "" {
		return req, false
	}
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + token
	req.Headers = headers
	return req, true
}

func (a *App) send(req httpclient.RequestSpec) {
	a.requesting = true
	a.errorMsg = ""
	g := a.g
	go func() {
		res, err := a.client.Execute(context.Background(), req)
		g.Update(func(*gocui.Gui) error {
			a.requesting = false
			if err != nil {
				a.errorMsg = err.Error()
				return nil
			}
			a.lastReq = req
			a.lastRes = res
			a.scr = screenResponse
			if v, err := g.View("response"); err == nil {
				v.SetOrigin(0, 0)
			}
			return nil
		})
	}()
}

func (a *App) renderFilter() {
	v, err := a.g.View("filter")
	if err != nil {
		return
	}
	v.Clear()
	fmt.Fprintf(v, "%s", a.filter)
}

func (a *App) renderEndpoints() {
	v, err := a.g.View("endpoints")
	if err != nil {
		return
	}
	v.Clear()

	width := 0
	for _, ep := range a.endpoints {
		if len(ep.Group) > width {
			width = len(ep.Group)
		}
	}

	for i, idx := range a.filtered {
		ep := a.endpoints[idx]
		label := ep.Label()
		if label != "" {
			label = " - " + label
		}
		prefix := "  "
		if i < 5 {
			prefix = fmt.Sprintf("%d ", i+1)
		}
		lock := " "
		if ep.NeedsAuth {
			lock = colorYellow + "*" + colorReset
		}
		fmt.Fprintf(v, "%s%s%s%s %s %s%s\n", prefix, colorDim, padRight(ep.Group, width), colorReset,
			colorizeMethod(ep.Method), lock+highlightPathParams(ep.Path), label)
	}
	if len(a.filtered) == 0 {
		fmt.Fprintln(v, "(no endpoints match)")
	}
	a.followCursor(v, a.selected)
}

func (a *App) renderEndpoint() {
	ep := a.activeEndpoint

	if v, err := a.g.View("selected"); err == nil {
		v.Clear()
		fmt.Fprintf(v, "%s  %s   %s%s%s\n", colorizeMethod(ep.Method), highlightPathParams(ep.Path), colorDim, ep.Group, colorReset)
		if ep.Summary != "" {
			fmt.Fprintln(v, ep.Summary)
		}
		switch {
		case !ep.NeedsAuth:
			fmt.Fprintf(v, "%sauth: none%s\n", colorDim, colorReset)
		case a.wiz.Token() != "":
			fmt.Fprintf(v, "%sauth: bearer (wizard session)%s\n", colorCyan, colorReset)
		case a.token != "":
			fmt.Fprintf(v, "%sauth: bearer (configured token)%s\n", colorCyan, colorReset)
		default:
			fmt.Fprintf(v, "%sauth: bearer required (log in via F2)%s\n", colorYellow, colorReset)
		}
	}

	if v, err := a.g.View("path"); err == nil {
		v.Title = "Path Params"
		v.Clear()
		for _, p := range ep.PathParams {
			val := a.pathVals[p.Name]
			if val == "" && p.Description != "" {
				fmt.Fprintf(v, "*%s = %s%s%s\n", p.Name, colorDim, p.Description, colorReset)
			} else {
				fmt.Fprintf(v, "*%s = %s\n", p.Name, val)
			}
		}
		if len(ep.PathParams) == 0 {
			fmt.Fprintln(v, "(none)")
		}
	}

	if v, err := a.g.View("query"); err == nil {
		v.Title = "Query Params"
		v.Clear()
		for _, p := range ep.QueryParams {
			req := ""
			if p.Required {
				req = "*"
			}
			if val := a.queryVals[p.Name]; val != "" {
				fmt.Fprintf(v, "%s%s = %s%s%s\n", req, p.Name, colorGreen, val, colorReset)
			} else {
				fmt.Fprintf(v, "%s%s = %s%s%s\n", req, p.Name, colorCyan, firstNonEmpty(p.Description, string(p.Type)), colorReset)
			}
		}
	}

	if v, err := a.g.View("body"); err == nil {
		v.Title = "Request Body"
		v.Clear()
		switch {
		case ep.Body == nil:
		case strings.TrimSpace(a.bodyRaw) != "":
			fmt.Fprintln(v, httpclient.FormatBody("", a.bodyRaw))
		case ep.Body.Example != "":
			fmt.Fprintf(v, "%s%s%s\n", colorDim, httpclient.PrettyJSON(ep.Body.Example), colorReset)
		default:
			for _, f := range ep.Body.Fields {
				req := ""
				if f.Required {
					req = "*"
				}
				fmt.Fprintf(v, "%s%s: %s\n", req, f.Name, f.Type)
			}
		}
	}

	if v, err := a.g.View("example"); err == nil {
		v.Title = "Example Response"
		v.Clear()
		fmt.Fprintln(v, httpclient.FormatBody("", ep.ResponseExample))
	}
}

func (a *App) renderResponse() {
	v, err := a.g.View("response")
	if err != nil {
		return
	}
	v.Clear()

	r := a.lastRes
	fmt.Fprintf(v, "%s  %s%s %s%s\n", colorizeStatus(r.Status), colorDim, a.lastReq.Method, a.lastReq.URL, colorReset)
	fmt.Fprintf(v, "elapsed: %s\n", r.Elapsed)
	fmt.Fprintf(v, "request id: %s\n", r.RequestID)
	ct := r.Headers["content-type"]
	if ct != "" {
		fmt.Fprintf(v, "content-type: %s\n", ct)
	}
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, httpclient.FormatBody(ct, r.Body))
}

// selectedKey reads the parameter name under the cursor from a "*name = value" line.
func selectedKey(v *gocui.View) string {
	lines := viewLines(v)
	_, cy := v.Cursor()
	_, oy := v.Origin()
	i := oy + cy
	if i < 0 || i >= len(lines) {
		return ""
	}
	return paramKey(lines[i])
}

func paramKey(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "(") {
		return ""
	}
	line = strings.TrimPrefix(line, "*")
	name, _, _ := strings.Cut(line, "=")
	return strings.TrimSpace(name)
}
