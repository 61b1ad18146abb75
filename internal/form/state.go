// internal/form/state.go
//
// In-memory View.
//
// State holds everything a user would see on one form: current values,
// per-field markers, focus, the busy flag, the result panel, and the
// notification.  A field is never errored and valid at the same time.
// Snapshot returns a copy that is safe to render while a submission is
// still running.
//
//------------------------------------------------------------------------------

package form

import "sync"

// FieldState is what one input shows.
type FieldState struct {
	Rule  FieldRule
	Value string
	Error string // non-empty when marked errored
	Valid bool
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	FormID     string
	Title      string
	Submit     string
	Fields     []FieldState
	Focus      string
	Busy       bool
	Result     map[string]any
	Display    []string // result keys to render; empty means all
	Notice     NoticeLevel
	NoticeText string
	FormErrors []string // errors for fields the form does not render
}

// Field returns the state for name.
func (s Snapshot) Field(name string) (FieldState, bool) {
	for _, f := range s.Fields {
		if f.Rule.Name == name {
			return f, true
		}
	}
	return FieldState{}, false
}

// State implements View.
type State struct {
	mu sync.Mutex

	def        *Definition
	fields     []FieldState
	index      map[string]int
	focus      string
	busy       bool
	result     map[string]any
	notice     NoticeLevel
	noticeText string
	formErrors []string
}

// NewState builds an empty view of def.
func NewState(def *Definition) *State {
	s := &State{
		def:    def,
		fields: make([]FieldState, len(def.Fields)),
		index:  make(map[string]int, len(def.Fields)),
	}
	for i, r := range def.Fields {
		s.fields[i] = FieldState{Rule: r}
		s.index[r.Name] = i
	}
	return s
}

// SetValues replaces the values of known fields.  Unknown names are
// ignored.
func (s *State) SetValues(v Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, val := range v {
		if i, ok := s.index[name]; ok {
			s.fields[i].Value = val
		}
	}
}

// Values returns the current field values.
func (s *State) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Values, len(s.fields))
	for _, f := range s.fields {
		out[f.Rule.Name] = f.Value
	}
	return out
}

func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.fields {
		s.fields[i].Error = ""
		s.fields[i].Valid = false
	}
	s.focus = ""
	s.result = nil
	s.notice, s.noticeText = NoticeNone, ""
	s.formErrors = nil
}

func (s *State) MarkError(field, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[field]
	if !ok {
		s.formErrors = append(s.formErrors, msg)
		return
	}
	s.fields[i].Error = msg
	s.fields[i].Valid = false
}

func (s *State) MarkValid(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[field]; ok {
		s.fields[i].Error = ""
		s.fields[i].Valid = true
	}
}

func (s *State) Focus(field string) {
	s.mu.Lock()
	s.focus = field
	s.mu.Unlock()
}

func (s *State) SetBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *State) ShowResult(payload map[string]any) {
	s.mu.Lock()
	s.result = payload
	s.mu.Unlock()
}

func (s *State) Notify(level NoticeLevel, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		level = NoticeNone
	}
	s.notice, s.noticeText = level, msg
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		FormID:     s.def.ID,
		Title:      s.def.Title,
		Submit:     s.def.Submit,
		Fields:     make([]FieldState, len(s.fields)),
		Focus:      s.focus,
		Busy:       s.busy,
		Result:     s.result,
		Display:    s.def.Display,
		Notice:     s.notice,
		NoticeText: s.noticeText,
	}
	copy(snap.Fields, s.fields)
	if len(s.formErrors) > 0 {
		snap.FormErrors = append([]string(nil), s.formErrors...)
	}
	return snap
}
