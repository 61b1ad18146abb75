// internal/form/rule.go
//
// Agriportal – Forms subsystem: declarative field rules.
//
// Context
//   Every portal form (crop yield, crop planning, labour posting, account
//   sign-up, and login) is described by an ordered list of FieldRule values.
//   A rule names one input, states whether it is mandatory, and constrains it
//   by kind: free text, a number with inclusive bounds, or a member of a
//   closed option set.  The same ruleset drives the client pipeline (see
//   controller.go) and the server endpoints that re-check what they receive.
//
// Bounds
//   A Bound is either fixed (`min: 0.01`) or anchored to a year supplied by
//   the caller (`max: {year_offset: 5}` means “this year plus five”).  The
//   anchor is always a parameter so validation stays a pure function.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind selects the checks applied to a non-empty value.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindEnum   Kind = "enum"
)

// -----------------------------------------------------------------------------
// Bounds and anchors
// -----------------------------------------------------------------------------

// Anchor carries the time-dependent inputs of a validation pass.
type Anchor struct {
	Year int
}

// AnchorAt derives an Anchor from t, taking the year in UTC.
func AnchorAt(t time.Time) Anchor { return Anchor{Year: t.UTC().Year()} }

// Bound is an inclusive numeric limit.  When YearOffset is true, Value is
// added to the anchor year at validation time.
type Bound struct {
	Value      float64
	YearOffset bool
}

// Fixed returns a constant bound.
func Fixed(v float64) *Bound { return &Bound{Value: v} }

// YearsFromAnchor returns a bound of anchor year + n.
func YearsFromAnchor(n float64) *Bound { return &Bound{Value: n, YearOffset: true} }

// Resolve returns the concrete limit for anchor a.
func (b Bound) Resolve(a Anchor) float64 {
	if b.YearOffset {
		return float64(a.Year) + b.Value
	}
	return b.Value
}

// UnmarshalYAML accepts a plain number or a {year_offset: n} mapping.
func (b *Bound) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("bound %q: %w", n.Value, err)
		}
		*b = Bound{Value: v}
		return nil
	case yaml.MappingNode:
		var raw struct {
			YearOffset *float64 `yaml:"year_offset"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		if raw.YearOffset == nil {
			return errors.New("bound mapping requires 'year_offset'")
		}
		*b = Bound{Value: *raw.YearOffset, YearOffset: true}
		return nil
	default:
		return fmt.Errorf("bound: unsupported YAML node at line %d", n.Line)
	}
}

// -----------------------------------------------------------------------------
// FieldRule
// -----------------------------------------------------------------------------

// FieldRule constrains one input.  Min and Max apply to number fields,
// AllowedValues to enum fields, and the length and pattern limits to text.
// Message, when set, replaces the default text for required, bound, option,
// and pattern failures.
type FieldRule struct {
	Name          string   `yaml:"name"           validate:"required"`
	Label         string   `yaml:"label"`
	Kind          Kind     `yaml:"kind"           validate:"required,oneof=text number enum"`
	Required      bool     `yaml:"required"`
	Min           *Bound   `yaml:"min"`
	Max           *Bound   `yaml:"max"`
	AllowedValues []string `yaml:"allowed_values" validate:"required_if=Kind enum,dive,required"`
	MinLength     int      `yaml:"minlength"      validate:"gte=0"`
	MaxLength     int      `yaml:"maxlength"      validate:"gte=0"`
	Pattern       string   `yaml:"pattern"`
	Input         string   `yaml:"input"` // HTML control hint: password, email, date, textarea.
	Placeholder   string   `yaml:"placeholder"`
	Message       string   `yaml:"message"`

	re *regexp.Regexp // compiled Pattern, set by Ruleset.Check
}

// pattern returns the compiled Pattern, compiling on demand for rules that
// never went through Check.  An invalid pattern yields nil.
func (r *FieldRule) pattern() *regexp.Regexp {
	if r.re != nil || r.Pattern == "" {
		return r.re
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil
	}
	return re
}

// Ruleset is an ordered list of rules.  Order decides which field receives
// focus and which error wins when two rules share a name.
type Ruleset []FieldRule

// Names returns field names in rule order.
func (rs Ruleset) Names() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

// Lookup returns the first rule named name.
func (rs Ruleset) Lookup(name string) (*FieldRule, bool) {
	for i := range rs {
		if rs[i].Name == name {
			return &rs[i], true
		}
	}
	return nil, false
}

// Check enforces the structural invariants that tags cannot express and
// compiles patterns in place.  Tag-level rules are checked by the caller
// through the shared validator (see definition.go).
func (rs Ruleset) Check() error {
	seen := make(map[string]struct{}, len(rs))
	for i := range rs {
		r := &rs[i]
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("field %q: duplicate name", r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Kind != KindNumber && (r.Min != nil || r.Max != nil) {
			return fmt.Errorf("field %q: min/max apply to number fields only", r.Name)
		}
		if r.Min != nil && r.Max != nil && r.Min.YearOffset == r.Max.YearOffset && r.Min.Value > r.Max.Value {
			return fmt.Errorf("field %q: min greater than max", r.Name)
		}
		if r.Kind == KindEnum && len(r.AllowedValues) == 0 {
			return fmt.Errorf("field %q: enum requires allowed_values", r.Name)
		}
		if r.MaxLength > 0 && r.MinLength > r.MaxLength {
			return fmt.Errorf("field %q: minlength greater than maxlength", r.Name)
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return fmt.Errorf("field %q: invalid pattern: %w", r.Name, err)
			}
			r.re = re
		}
	}
	return nil
}
