package lookup

import (
	"sync"
	"time"
)

const DefaultBlurDelay = 200 * time.Millisecond

// Selector is a searchable single-choice list. It is safe for concurrent use;
// Blur hides the results from a timer goroutine.
type Selector struct {
	name      string
	blurDelay time.Duration

	mu       sync.Mutex
	options  []Option
	search   string
	selected *int64
	visible  bool
	blur     *time.Timer
}

func NewSelector(name string, blurDelay time.Duration) *Selector {
	if blurDelay < 0 {
		blurDelay = 0
	}
	return &Selector{name: name, blurDelay: blurDelay}
}

func (s *Selector) Name() string {
	return s.name
}

// SetOptions replaces the list. The current selection is kept.
func (s *Selector) SetOptions(opts []Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = append([]Option(nil), opts...)
}

func (s *Selector) Options() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Option(nil), s.options...)
}

// SetSearch updates the search text and shows the results.
func (s *Selector) SetSearch(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = q
	s.visible = true
}

func (s *Selector) Search() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

func (s *Selector) Filtered() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Option(nil), Filter(s.options, s.search)...)
}

func (s *Selector) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Focus shows the results and cancels a pending blur.
func (s *Selector) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBlur()
	s.visible = true
}

// Blur hides the results once the blur delay has passed.
func (s *Selector) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBlur()
	var t *time.Timer
	t = time.AfterFunc(s.blurDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.blur != t {
			return
		}
		s.visible = false
		s.blur = nil
	})
	s.blur = t
}

// Select sets the selected id, clears the search text and hides the results.
func (s *Selector) Select(opt Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBlur()
	id := opt.ID
	s.selected = &id
	s.search = ""
	s.visible = false
}

// Seed selects id if it is present in the current options. A selection that is
// still among the options is kept.
func (s *Selector) Seed(id *int64) bool {
	if id == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.hasOption(*s.selected) {
		return false
	}
	if !s.hasOption(*id) {
		return false
	}
	v := *id
	s.selected = &v
	return true
}

func (s *Selector) hasOption(id int64) bool {
	for _, o := range s.options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Selected returns a copy of the selected id, or nil.
func (s *Selector) Selected() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	v := *s.selected
	return &v
}

// Label returns the display name of the selection, if it is in the list.
func (s *Selector) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return ""
	}
	for _, o := range s.options {
		if o.ID == *s.selected {
			return o.Label
		}
	}
	return ""
}

// Reset clears options, search, selection and visibility.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBlur()
	s.options = nil
	s.search = ""
	s.selected = nil
	s.visible = false
}

// stopBlur must be called with mu held.
func (s *Selector) stopBlur() {
	if s.blur != nil {
		s.blur.Stop()
		s.blur = nil
	}
}
