// Package wizard drives the guided login -> tenant -> role -> user -> SLA -> ticket
// sequence against the ThinkDesk API.
package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/lookup"
)

// IDs are the entities produced so far. Each stays nil until its step yields it.
type IDs struct {
	TenantID    *int64
	RoleID      *int64
	UserID      *int64
	CategoryID  *int64
	PriorityID  *int64
	SLAPolicyID *int64
	TicketID    *int64
}

// Response is the last HTTP answer shown to the user. Body is decoded JSON, or
// the raw text when the payload is not JSON.
type Response struct {
	Status int
	Body   any
}

// References are the id/name projections backing the selectors.
type References struct {
	Tenants    []lookup.Option
	Roles      []lookup.Option
	Users      []lookup.Option
	Categories []lookup.Option
	Priorities []lookup.Option
}

// State is a consistent copy of everything the views render.
type State struct {
	Step         Step
	Loading      bool
	Error        string
	LastResponse *Response
	Session      *Session
	IDs          IDs
	References   References
	History      []Step
}

type Options struct {
	// Forms overrides the sample inputs. When nil, DefaultForms is used.
	Forms     *Forms
	BlurDelay time.Duration
	Now       func() time.Time
}

// Wizard is safe for concurrent use. Step actions block on the network and
// are meant to run off the UI loop.
type Wizard struct {
	log    logrus.FieldLogger
	client *httpclient.Client
	now    func() time.Time

	initialForms Forms

	mu       sync.Mutex
	gen      int
	step     Step
	loading  int
	errMsg   string
	last     *Response
	session  *Session
	ids      IDs
	refs     References
	history  []Step
	forms    Forms
	selected selectors
}

type selectors struct {
	userTenant      *lookup.Selector
	userRole        *lookup.Selector
	slaTenant       *lookup.Selector
	ticketTenant    *lookup.Selector
	ticketRequester *lookup.Selector
	ticketCategory  *lookup.Selector
	ticketPriority  *lookup.Selector
}

func New(log logrus.FieldLogger, client *httpclient.Client, opts Options) *Wizard {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	forms := DefaultForms(now())
	if opts.Forms != nil {
		forms = *opts.Forms
	}

	w := &Wizard{
		log:          log.WithField("component", "wizard"),
		client:       client,
		now:          now,
		initialForms: forms,
		selected: selectors{
			userTenant:      lookup.NewSelector("tenant", opts.BlurDelay),
			userRole:        lookup.NewSelector("role", opts.BlurDelay),
			slaTenant:       lookup.NewSelector("tenant", opts.BlurDelay),
			ticketTenant:    lookup.NewSelector("tenant", opts.BlurDelay),
			ticketRequester: lookup.NewSelector("requester", opts.BlurDelay),
			ticketCategory:  lookup.NewSelector("category", opts.BlurDelay),
			ticketPriority:  lookup.NewSelector("priority", opts.BlurDelay),
		},
	}
	w.reset()
	return w
}

// reset must be called with mu held (or before w is shared).
func (w *Wizard) reset() {
	w.gen++
	w.step = StepLogin
	w.loading = 0
	w.errMsg = ""
	w.last = nil
	w.session = nil
	w.ids = IDs{}
	w.refs = References{}
	w.history = []Step{StepLogin}
	w.forms = w.initialForms
	for _, s := range w.allSelectors() {
		s.Reset()
	}
}

// StartOver discards the session, every produced ID, the reference lists and
// any pending result. It always succeeds, even while a request is in flight.
func (w *Wizard) StartOver() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
	w.log.Info("Wizard reset")
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading > 0
}

func (w *Wizard) Error() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

func (w *Wizard) LastResponse() *Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return nil
	}
	r := *w.last
	return &r
}

// Session returns the current session, or nil before login.
func (w *Wizard) Session() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil
	}
	s := *w.session
	return &s
}

// Token returns the bearer token, or "" before login.
func (w *Wizard) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return ""
	}
	return w.session.Token
}

func (w *Wizard) IDs() IDs {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyIDs(w.ids)
}

func (w *Wizard) References() References {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyRefs(w.refs)
}

// History is the sequence of steps entered since the last reset.
func (w *Wizard) History() []Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Step(nil), w.history...)
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{
		Step:       w.step,
		Loading:    w.loading > 0,
		Error:      w.errMsg,
		IDs:        copyIDs(w.ids),
		References: copyRefs(w.refs),
		History:    append([]Step(nil), w.history...),
	}
	if w.last != nil {
		r := *w.last
		st.LastResponse = &r
	}
	if w.session != nil {
		s := *w.session
		st.Session = &s
	}
	return st
}

func (w *Wizard) Forms() Forms {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forms
}

func (w *Wizard) Fields(step Step) []Field {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forms.Fields(step)
}

func (w *Wizard) SetField(step Step, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forms.Set(step, key, value)
}

// Selectors returns the selection widgets a step's form uses, in display order.
func (w *Wizard) Selectors(step Step) []*lookup.Selector {
	switch step {
	case StepUser:
		return []*lookup.Selector{w.selected.userTenant, w.selected.userRole}
	case StepSLA:
		return []*lookup.Selector{w.selected.slaTenant}
	case StepTicket:
		return []*lookup.Selector{
			w.selected.ticketTenant,
			w.selected.ticketRequester,
			w.selected.ticketCategory,
			w.selected.ticketPriority,
		}
	default:
		return nil
	}
}

// Selector finds a step's selector by name.
func (w *Wizard) Selector(step Step, name string) *lookup.Selector {
	for _, s := range w.Selectors(step) {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (w *Wizard) allSelectors() []*lookup.Selector {
	s := w.selected
	return []*lookup.Selector{
		s.userTenant, s.userRole, s.slaTenant,
		s.ticketTenant, s.ticketRequester, s.ticketCategory, s.ticketPriority,
	}
}

// begin claims the wizard for an action on step. It fails when another
// request is in flight or when step is not the current one.
func (w *Wizard) begin(step Step) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loading > 0 {
		return 0, validationf("A request is already in progress.")
	}
	if w.step != step {
		err := validationf("The %s step is not active (current step: %s).", step, w.step)
		w.errMsg = err.Error()
		return 0, err
	}
	w.loading++
	return w.gen, nil
}

func (w *Wizard) end(gen int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.gen && w.loading > 0 {
		w.loading--
	}
}

// apply runs fn with mu held unless the wizard was reset since gen was taken.
func (w *Wizard) apply(gen int, fn func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return false
	}
	fn()
	return true
}

// advance moves to the next step. Must be called with mu held.
func (w *Wizard) advance() {
	from := w.step
	w.step = w.step.Next()
	w.history = append(w.history, w.step)
	w.log.WithFields(logrus.Fields{"from": from.String(), "to": w.step.String()}).Info("Step completed")
}

func (w *Wizard) fail(gen int, err error) error {
	w.apply(gen, func() { w.errMsg = Message(err) })
	return err
}

// ErrStale is returned when StartOver discarded the result of an action.
var ErrStale = errors.New("result discarded by start over")

func copyIDs(in IDs) IDs {
	cp := func(p *int64) *int64 {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	return IDs{
		TenantID:    cp(in.TenantID),
		RoleID:      cp(in.RoleID),
		UserID:      cp(in.UserID),
		CategoryID:  cp(in.CategoryID),
		PriorityID:  cp(in.PriorityID),
		SLAPolicyID: cp(in.SLAPolicyID),
		TicketID:    cp(in.TicketID),
	}
}

func copyRefs(in References) References {
	return References{
		Tenants:    append([]lookup.Option(nil), in.Tenants...),
		Roles:      append([]lookup.Option(nil), in.Roles...),
		Users:      append([]lookup.Option(nil), in.Users...),
		Categories: append([]lookup.Option(nil), in.Categories...),
		Priorities: append([]lookup.Option(nil), in.Priorities...),
	}
}
