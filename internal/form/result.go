// internal/form/result.go
//
// Validation results.
//
// A Result maps field names to one message each and remembers the order in
// which errors were recorded.  Validate records them in ruleset order, so
// First() is always the field that should receive focus.  The first message
// recorded for a name wins; later ones are ignored.
//
// The zero Result is valid and empty.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"errors"
	"sort"
)

type Result struct {
	order []string
	msgs  map[string]string
}

// add records msg for name unless name already has a message.
func (r *Result) add(name, msg string) {
	if _, ok := r.msgs[name]; ok {
		return
	}
	if r.msgs == nil {
		r.msgs = make(map[string]string)
	}
	r.order = append(r.order, name)
	r.msgs[name] = msg
}

// Valid reports whether no field has an error.
func (r Result) Valid() bool { return len(r.order) == 0 }

// Len returns the number of erroring fields.
func (r Result) Len() int { return len(r.order) }

// Message returns the error recorded for name.
func (r Result) Message(name string) (string, bool) {
	m, ok := r.msgs[name]
	return m, ok
}

// Fields returns erroring field names in recorded order.
func (r Result) Fields() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// First returns the first erroring field, or "" when valid.
func (r Result) First() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Map returns a copy of the name → message mapping.
func (r Result) Map() map[string]string {
	out := make(map[string]string, len(r.msgs))
	for k, v := range r.msgs {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the Result as a plain object, which is the shape the
// `errors` member of a response envelope carries.
func (r Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.Map()) }

// ResultFrom orders an unordered mapping (typically a server's `errors`
// object) by rules first and then by name for fields the ruleset does not
// know.  Empty messages are dropped.
func ResultFrom(m map[string]string, rules Ruleset) Result {
	var res Result
	for _, rule := range rules {
		if msg, ok := m[rule.Name]; ok && msg != "" {
			res.add(rule.Name, msg)
		}
	}
	var rest []string
	for name, msg := range m {
		if msg == "" {
			continue
		}
		if _, ok := res.msgs[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		res.add(name, m[name])
	}
	return res
}

/*──────────────────────── error wrapper ───────────────────────*/

// ValidationError carries a non-empty Result through an error return.
type ValidationError struct{ Result Result }

func (e ValidationError) Error() string { return "form validation failed" }

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	_, ok := AsValidationError(err)
	return ok
}

// AsValidationError unwraps err into its Result.
func AsValidationError(err error) (Result, bool) {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Result, true
	}
	return Result{}, false
}
