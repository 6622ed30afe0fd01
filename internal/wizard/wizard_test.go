package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/lookup"
)

type recorded struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
	Body      map[string]any
}

// fakeAPI answers every ThinkDesk route the wizard uses; routes can be overridden.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recorded
	routes   map[string]http.HandlerFunc
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{routes: map[string]http.HandlerFunc{
		"POST /login":       jsonReply(200, `{"token":"abc"}`),
		"POST /tenants":     jsonReply(201, `{"id":11,"tradingName":"Empresa Exemplo SA"}`),
		"POST /roles":       jsonReply(201, `{"id":21,"name":"ROLE_TECHNICIAN"}`),
		"POST /users":       jsonReply(201, `{"id":31,"name":"Usuário Final"}`),
		"POST /slapolicies": jsonReply(201, `{"id":41,"categoryDto":{"id":51},"priorityDto":{"id":61}}`),
		"POST /tickets":     jsonReply(201, `{"id":71,"status":"OPEN"}`),
		"GET /tenants":      jsonReply(200, `[{"id":10,"tradingName":"Old Co"},{"id":11,"tradingName":"Empresa Exemplo SA"}]`),
		"GET /roles":        jsonReply(200, `[{"id":20,"name":"ROLE_ADMIN"},{"id":21,"name":"ROLE_TECHNICIAN"}]`),
		"GET /users":        jsonReply(200, `{"content":[{"id":31,"name":"Usuário Final"}]}`),
		"GET /slapolicies": jsonReply(200, `[
			{"id":40,"categoryDto":{"id":50,"name":"Rede"},"priorityDto":{"id":61,"name":"Média"}},
			{"id":41,"categoryDto":{"id":51,"name":"Infraestrutura"},"priorityDto":{"id":61,"name":"Média"}},
			{"id":42,"categoryDto":{"id":50,"name":"Rede"},"priorityDto":{"id":62,"name":"Alta"}}
		]`),
	}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		Method:    r.Method,
		Path:      r.URL.Path,
		Auth:      r.Header.Get("Authorization"),
		RequestID: r.Header.Get(httpclient.RequestIDHeader),
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeAPI) route(key string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = h
}

func (f *fakeAPI) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func (f *fakeAPI) paths() []string {
	var out []string
	for _, r := range f.calls() {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (f *fakeAPI) last(key string) recorded {
	calls := f.calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method+" "+calls[i].Path == key {
			return calls[i]
		}
	}
	return recorded{}
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var fixedNow = time.Date(2024, 10, 28, 17, 30, 0, 0, time.UTC)

func newTestWizard(t *testing.T, api *fakeAPI) *Wizard {
	t.Helper()
	client := httpclient.New(testLogger(), api.srv.URL, 5*time.Second)
	return New(testLogger(), client, Options{Now: func() time.Time { return fixedNow }})
}

func loggedIn(t *testing.T, api *fakeAPI) *Wizard {
	t.Helper()
	w := newTestWizard(t, api)
	require.NoError(t, w.Login(context.Background()))
	return w
}

func TestLoginStoresTokenAndAdvances(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	require.NoError(t, w.SetField(StepLogin, "login", "admin"))
	require.NoError(t, w.SetField(StepLogin, "password", "admin"))

	require.NoError(t, w.Login(context.Background()))

	assert.Equal(t, "abc", w.Token())
	assert.Equal(t, StepTenant, w.Step())
	assert.Empty(t, w.Error())
	assert.False(t, w.Loading())

	req := api.last("POST /login")
	assert.Equal(t, map[string]any{"login": "admin", "password": "admin"}, req.Body)
	assert.Empty(t, req.Auth, "login must not carry a bearer token")
	assert.NotEmpty(t, req.RequestID)

	last := w.LastResponse()
	require.NotNil(t, last)
	assert.Equal(t, 200, last.Status)
}

func TestFullRunFollowsFixedOrder(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()

	for w.Step() != StepComplete {
		require.NoError(t, w.Submit(ctx), "step %s", w.Step())
	}

	assert.Equal(t, Steps(), w.History())
	assert.Equal(t, []string{
		"POST /login",
		"POST /tenants",
		"POST /roles", "GET /tenants", "GET /roles",
		"POST /users",
		"POST /slapolicies", "GET /tenants", "GET /users", "GET /slapolicies",
		"POST /tickets",
	}, api.paths())

	for _, r := range api.calls() {
		assert.NotEmpty(t, r.RequestID, "%s %s", r.Method, r.Path)
		if r.Path == "/login" {
			assert.Empty(t, r.Auth)
			continue
		}
		assert.Equal(t, "Bearer abc", r.Auth, "%s %s", r.Method, r.Path)
	}

	ids := w.IDs()
	for name, tc := range map[string]struct {
		got  *int64
		want int64
	}{
		"tenant": {ids.TenantID, 11}, "role": {ids.RoleID, 21}, "user": {ids.UserID, 31},
		"sla": {ids.SLAPolicyID, 41}, "category": {ids.CategoryID, 51},
		"priority": {ids.PriorityID, 61}, "ticket": {ids.TicketID, 71},
	} {
		require.NotNil(t, tc.got, name)
		assert.Equal(t, tc.want, *tc.got, name)
	}

	user := api.last("POST /users").Body
	assert.Equal(t, float64(11), user["tenantId"])
	assert.Equal(t, float64(21), user["roleId"])

	sla := api.last("POST /slapolicies").Body
	assert.Equal(t, float64(11), sla["tenantId"])
	assert.Equal(t, map[string]any{"name": "Infraestrutura", "description": "Problemas de infraestrutura"}, sla["categoryDto"])
	assert.Equal(t, map[string]any{"name": "Média"}, sla["priorityDto"])

	ticket := api.last("POST /tickets").Body
	assert.Equal(t, "2024-10-29T17:30:00.000Z", ticket["resolutionDueDate"])
	assert.Equal(t, "INCIDENT", ticket["ticketType"])
	assert.Equal(t, float64(51), ticket["category"])
	assert.Equal(t, float64(11), ticket["tenant"])
	assert.Equal(t, float64(31), ticket["requester"])
	assert.Equal(t, float64(61), ticket["priority"])

	err := w.Submit(ctx)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestStepActionsCannotSkipOrRevisit(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()

	var ve *ValidationError
	require.ErrorAs(t, w.CreateTenant(ctx), &ve)
	assert.Equal(t, StepLogin, w.Step())
	assert.Contains(t, w.Error(), "not active")
	assert.Empty(t, api.calls())

	require.NoError(t, w.Login(ctx))
	require.ErrorAs(t, w.Login(ctx), &ve)
	assert.Equal(t, StepTenant, w.Step())
	assert.Equal(t, []Step{StepLogin, StepTenant}, w.History())
}

func TestUserStepRequiresTenantAndRole(t *testing.T) {
	api := newFakeAPI(t)
	api.route("GET /roles", jsonReply(200, `[]`))
	w := loggedIn(t, api)
	ctx := context.Background()
	require.NoError(t, w.CreateTenant(ctx))
	require.NoError(t, w.CreateRole(ctx))
	require.Equal(t, StepUser, w.Step())

	err := w.CreateUser(ctx)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Please select a tenant and a role before creating the user.", w.Error())
	assert.Equal(t, StepUser, w.Step())
	assert.NotContains(t, api.paths(), "POST /users")

	w.Selector(StepUser, "role").Select(lookup.Option{ID: 20, Label: "ROLE_ADMIN"})
	require.NoError(t, w.CreateUser(ctx))
	assert.Equal(t, float64(20), api.last("POST /users").Body["roleId"])
}

func TestSLAStepRequiresTenant(t *testing.T) {
	api := newFakeAPI(t)
	api.route("GET /tenants", jsonReply(200, `[]`))
	w := loggedIn(t, api)
	ctx := context.Background()
	require.NoError(t, w.CreateTenant(ctx))
	require.NoError(t, w.CreateRole(ctx))
	w.Selector(StepUser, "tenant").Select(lookup.Option{ID: 11})
	require.NoError(t, w.CreateUser(ctx))

	require.Error(t, w.CreateSLA(ctx))
	assert.Equal(t, "Please select a tenant before creating the SLA policy.", w.Error())
	assert.Equal(t, StepSLA, w.Step())
	assert.NotContains(t, api.paths(), "POST /slapolicies")
}

func TestForbiddenIgnoresBody(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /tenants", jsonReply(403, `{"message":"Tenant with tax ID already exists"}`))
	w := loggedIn(t, api)

	err := w.CreateTenant(context.Background())
	require.Error(t, err)
	assert.Equal(t, httpclient.KindForbidden, httpclient.Classify(err))
	assert.Equal(t, msgForbidden, w.Error())
	assert.Nil(t, w.LastResponse())
	assert.Equal(t, StepTenant, w.Step())
	assert.False(t, w.Loading())
}

func TestDuplicateTaxIDAdvances(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /tenants", jsonReply(409, `{"status":409,"message":"Tenant with taxID 12.345.678/0001-99 already exists"}`))
	w := loggedIn(t, api)

	require.NoError(t, w.CreateTenant(context.Background()))

	assert.Equal(t, StepRole, w.Step())
	assert.Empty(t, w.Error())
	assert.Nil(t, w.IDs().TenantID)
	last := w.LastResponse()
	require.NotNil(t, last)
	assert.Equal(t, 409, last.Status)
	assert.Equal(t, "Tenant with taxID 12.345.678/0001-99 already exists", field(last.Body, "message"))
}

func TestDuplicateRoleAdvancesAndRefreshes(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /roles", jsonReply(400, `{"error":"Role ROLE_TECHNICIAN already exists"}`))
	w := loggedIn(t, api)
	ctx := context.Background()
	require.NoError(t, w.CreateTenant(ctx))

	require.NoError(t, w.CreateRole(ctx))

	assert.Equal(t, StepUser, w.Step())
	assert.Empty(t, w.Error())
	assert.Nil(t, w.IDs().RoleID)
	assert.Len(t, w.References().Roles, 2)
	assert.Nil(t, w.Selector(StepUser, "role").Selected(), "the existing role must be picked by hand")
	require.NotNil(t, w.Selector(StepUser, "tenant").Selected())
	assert.Equal(t, int64(11), *w.Selector(StepUser, "tenant").Selected())
}

func TestOtherStatusKeepsErrorBody(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /tenants", jsonReply(500, `{"message":"boom"}`))
	w := loggedIn(t, api)

	err := w.CreateTenant(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error: 500 Internal Server Error. Check the log for more details.", w.Error())
	last := w.LastResponse()
	require.NotNil(t, last)
	assert.Equal(t, 500, last.Status)
	assert.Equal(t, "boom", field(last.Body, "message"))
	assert.Equal(t, StepTenant, w.Step())
	assert.False(t, w.Loading())
}

func TestExecutePostAuthHandling(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /echo", jsonReply(200, `{"ok":true}`))
	w := newTestWizard(t, api)
	ctx := context.Background()

	_, err := w.ExecutePost(ctx, "/echo", `{}`, true)
	assert.ErrorIs(t, err, httpclient.ErrAuthMissing)
	assert.Equal(t, msgAuthMissing, w.Error())
	assert.False(t, w.Loading())
	assert.Empty(t, api.calls())

	require.NoError(t, w.Login(ctx))

	_, err = w.ExecutePost(ctx, "/echo", `{}`, false)
	require.NoError(t, err)
	assert.Empty(t, api.last("POST /echo").Auth)

	body, err := w.ExecutePost(ctx, "/echo", `{"a":1}`, true)
	require.NoError(t, err)
	assert.Equal(t, true, field(body, "ok"))
	assert.Equal(t, "Bearer abc", api.last("POST /echo").Auth)
}

func TestExecutePostMalformedBody(t *testing.T) {
	api := newFakeAPI(t)
	w := loggedIn(t, api)
	before := len(api.calls())

	_, err := w.ExecutePost(context.Background(), "/tenants", `{"tradingName":`, true)
	assert.ErrorIs(t, err, httpclient.ErrMalformedBody)
	assert.Equal(t, msgMalformedBody, w.Error())
	assert.Nil(t, w.LastResponse())
	assert.False(t, w.Loading())
	assert.Len(t, api.calls(), before)
}

func TestExecuteGetLeavesLastResponse(t *testing.T) {
	api := newFakeAPI(t)
	api.route("GET /tenants", jsonReply(502, `bad gateway`))
	w := loggedIn(t, api)

	_, err := w.ExecuteGet(context.Background(), "/tenants")
	require.Error(t, err)
	assert.Contains(t, w.Error(), "Failed to load /tenants")
	require.NotNil(t, w.LastResponse())
	assert.Equal(t, 200, w.LastResponse().Status, "the login response stays on display")
}

func TestTransportFailure(t *testing.T) {
	api := newFakeAPI(t)
	w := loggedIn(t, api)
	api.srv.Close()

	err := w.CreateTenant(context.Background())
	require.Error(t, err)
	assert.Equal(t, httpclient.KindTransport, httpclient.Classify(err))
	assert.Equal(t, msgTransport, w.Error())
	assert.Nil(t, w.LastResponse())
}

func TestSLARefreshDedupesCategoriesAndPriorities(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()
	for w.Step() != StepTicket {
		require.NoError(t, w.Submit(ctx))
	}

	refs := w.References()
	assert.Equal(t, []lookup.Option{{ID: 50, Label: "Rede"}, {ID: 51, Label: "Infraestrutura"}}, refs.Categories)
	assert.Equal(t, []lookup.Option{{ID: 61, Label: "Média"}, {ID: 62, Label: "Alta"}}, refs.Priorities)
	assert.Equal(t, []lookup.Option{{ID: 31, Label: "Usuário Final"}}, refs.Users)

	assert.Equal(t, "Infraestrutura", w.Selector(StepTicket, "category").Label())
	assert.Equal(t, "Usuário Final", w.Selector(StepTicket, "requester").Label())
}

func TestRefreshStopsAtFirstFailure(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()
	for w.Step() != StepSLA {
		require.NoError(t, w.Submit(ctx))
	}
	api.route("GET /tenants", jsonReply(500, `{}`))

	err := w.CreateSLA(ctx)
	require.Error(t, err)
	assert.Equal(t, StepTicket, w.Step(), "the POST succeeded so the step advances")
	assert.Contains(t, w.Error(), "Failed to load /tenants")

	paths := api.paths()
	assert.Equal(t, "GET /tenants", paths[len(paths)-1])
	assert.Zero(t, count(paths, "GET /users"), "the batch stops at the failed fetch")
}

func count(items []string, want string) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

func TestRefreshReferences(t *testing.T) {
	api := newFakeAPI(t)
	w := loggedIn(t, api)
	ctx := context.Background()

	var ve *ValidationError
	assert.ErrorAs(t, w.RefreshReferences(ctx), &ve)

	require.NoError(t, w.CreateTenant(ctx))
	require.NoError(t, w.CreateRole(ctx))
	api.route("GET /roles", jsonReply(200, `[{"id":20,"name":"ROLE_ADMIN"},{"id":21,"name":"ROLE_TECHNICIAN"},{"id":22,"name":"ROLE_NEW"}]`))

	require.NoError(t, w.RefreshReferences(ctx))
	assert.Len(t, w.References().Roles, 3)
	assert.Equal(t, StepUser, w.Step())
}

func TestRefreshKeepsUserSelections(t *testing.T) {
	api := newFakeAPI(t)
	w := loggedIn(t, api)
	ctx := context.Background()
	require.NoError(t, w.CreateTenant(ctx))
	require.NoError(t, w.CreateRole(ctx))

	w.Selector(StepUser, "tenant").Select(lookup.Option{ID: 10})
	w.Selector(StepUser, "role").Select(lookup.Option{ID: 20})
	require.NoError(t, w.RefreshReferences(ctx))

	assert.Equal(t, int64(10), *w.Selector(StepUser, "tenant").Selected())
	assert.Equal(t, int64(20), *w.Selector(StepUser, "role").Selected())

	require.NoError(t, w.CreateUser(ctx))
	body := api.last("POST /users").Body
	assert.EqualValues(t, 10, body["tenantId"])
	assert.EqualValues(t, 20, body["roleId"])
}

func TestStartOverResetsEverything(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()
	require.NoError(t, w.SetField(StepRole, "name", "ROLE_CUSTOM"))
	for w.Step() != StepTicket {
		require.NoError(t, w.Submit(ctx))
	}

	w.StartOver()

	st := w.State()
	assert.Equal(t, StepLogin, st.Step)
	assert.Nil(t, st.Session)
	assert.Empty(t, w.Token())
	assert.Equal(t, IDs{}, st.IDs)
	assert.Equal(t, References{}, st.References)
	assert.Nil(t, st.LastResponse)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, []Step{StepLogin}, st.History)
	assert.Equal(t, DefaultForms(fixedNow), w.Forms())
	for _, step := range Steps() {
		for _, sel := range w.Selectors(step) {
			assert.Nil(t, sel.Selected(), sel.Name())
			assert.Empty(t, sel.Options(), sel.Name())
		}
	}
}

func TestSecondActionWhileLoadingIsRejected(t *testing.T) {
	api := newFakeAPI(t)
	release := make(chan struct{})
	api.route("POST /login", func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonReply(200, `{"token":"abc"}`)(w, r)
	})
	w := newTestWizard(t, api)

	done := make(chan error, 1)
	go func() { done <- w.Login(context.Background()) }()
	require.Eventually(t, w.Loading, time.Second, 5*time.Millisecond)

	err := w.Login(context.Background())
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, w.Loading())
	assert.Equal(t, 1, count(api.paths(), "POST /login"))
}

func TestStartOverDiscardsInFlightResult(t *testing.T) {
	api := newFakeAPI(t)
	release := make(chan struct{})
	api.route("POST /login", func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonReply(200, `{"token":"abc"}`)(w, r)
	})
	w := newTestWizard(t, api)

	done := make(chan error, 1)
	go func() { done <- w.Login(context.Background()) }()
	require.Eventually(t, w.Loading, time.Second, 5*time.Millisecond)

	w.StartOver()
	close(release)

	assert.True(t, errors.Is(<-done, ErrStale))
	assert.Equal(t, StepLogin, w.Step())
	assert.Empty(t, w.Token())
	assert.False(t, w.Loading())
}

func TestTicketValidation(t *testing.T) {
	api := newFakeAPI(t)
	w := newTestWizard(t, api)
	ctx := context.Background()
	for w.Step() != StepTicket {
		require.NoError(t, w.Submit(ctx))
	}

	assert.Error(t, w.SetField(StepTicket, "ticketType", "OUTAGE"))
	require.NoError(t, w.SetField(StepTicket, "resolutionDueDate", "tomorrow"))
	var ve *ValidationError
	require.ErrorAs(t, w.CreateTicket(ctx), &ve)
	assert.Contains(t, w.Error(), "Invalid resolution due date")
	assert.NotContains(t, api.paths(), "POST /tickets")

	require.NoError(t, w.SetField(StepTicket, "resolutionDueDate", "2025-01-02T08:15"))
	require.NoError(t, w.SetField(StepTicket, "ticketType", "problem"))
	require.NoError(t, w.CreateTicket(ctx))
	body := api.last("POST /tickets").Body
	assert.Equal(t, "2025-01-02T08:15:00.000Z", body["resolutionDueDate"])
	assert.Equal(t, "PROBLEM", body["ticketType"])
}

func TestLoginWithoutToken(t *testing.T) {
	api := newFakeAPI(t)
	api.route("POST /login", jsonReply(200, `{"message":"ok"}`))
	w := newTestWizard(t, api)

	require.Error(t, w.Login(context.Background()))
	assert.Equal(t, StepLogin, w.Step())
	assert.Contains(t, w.Error(), "did not contain a token")
}
