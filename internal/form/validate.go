// internal/form/validate.go
//
// Agriportal – Forms subsystem: the validation engine.
//
// Context
//   Validate is the single rule engine shared by the submit pipeline, the
//   server endpoints, and formctl.  It is a pure function: the same values,
//   rules, and anchor always produce the same Result.  It never panics and
//   never reports a field the ruleset does not name.
//
// Workflow
//   For each rule, in order, with the trimmed value:
//     1.  Required and empty → required message, stop.
//     2.  Empty and optional → valid, stop.
//     3.  Number → parse, then inclusive min / max.
//     4.  Enum → membership in AllowedValues.
//     5.  Text → length limits, then pattern.
//
// Messages
//   Defaults match the portal’s wording.  A rule’s Message overrides the
//   required, bound, option, length, and pattern texts, but never the
//   “valid number” text, which always describes a parse failure.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MsgRequired      = "This field is required."
	MsgInvalidNumber = "Please enter a valid number."
	MsgInvalidOption = "Please select a valid option."
	MsgInvalidFormat = "Please match the requested format."
)

// Values holds one raw string per field name.
type Values map[string]string

// Get returns the trimmed value for name.
func (v Values) Get(name string) string { return strings.TrimSpace(v[name]) }

// ValuesFrom takes the first value of each key in u.
func ValuesFrom(u url.Values) Values {
	out := make(Values, len(u))
	for k, vs := range u {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// Validate checks values against rules with year bounds resolved against
// anchor.
func Validate(values Values, rules Ruleset, anchor Anchor) Result {
	var res Result
	for i := range rules {
		r := &rules[i]
		val := values.Get(r.Name)

		if val == "" {
			if r.Required {
				res.add(r.Name, expandBounds(r, requiredMsg(r), anchor))
			}
			continue
		}

		if msg := checkValue(r, val, anchor); msg != "" {
			res.add(r.Name, expandBounds(r, msg, anchor))
		}
	}
	return res
}

// expandBounds fills {min} and {max} in a custom message with the resolved
// bounds, so "Year must be between {min} and {max}" tracks the anchor year.
func expandBounds(r *FieldRule, msg string, anchor Anchor) string {
	if r.Message == "" || !strings.Contains(msg, "{") {
		return msg
	}
	if r.Min != nil {
		msg = strings.ReplaceAll(msg, "{min}", FormatNumber(r.Min.Resolve(anchor)))
	}
	if r.Max != nil {
		msg = strings.ReplaceAll(msg, "{max}", FormatNumber(r.Max.Resolve(anchor)))
	}
	return msg
}

// checkValue applies the kind-specific checks to a non-empty value.
func checkValue(r *FieldRule, val string, anchor Anchor) string {
	switch r.Kind {
	case KindNumber:
		n, ok := parseNumber(val)
		if !ok {
			return MsgInvalidNumber
		}
		if r.Min != nil {
			if lim := r.Min.Resolve(anchor); n < lim {
				return boundMsg(r, "Value must be at least %s.", lim)
			}
		}
		if r.Max != nil {
			if lim := r.Max.Resolve(anchor); n > lim {
				return boundMsg(r, "Value cannot exceed %s.", lim)
			}
		}
		return ""

	case KindEnum:
		for _, a := range r.AllowedValues {
			if a == val {
				return ""
			}
		}
		return withMessage(r, MsgInvalidOption)

	default: // text
		if msg := lengthCheck(r, val); msg != "" {
			return msg
		}
		if r.Pattern != "" {
			re := r.pattern()
			if re == nil || !re.MatchString(val) {
				return withMessage(r, MsgInvalidFormat)
			}
		}
		return ""
	}
}

// parseNumber accepts finite decimal numbers only.
func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// lengthCheck validates minlength / maxlength in characters.
func lengthCheck(r *FieldRule, s string) string {
	n := utf8.RuneCountInString(s)
	if r.MinLength > 0 && n < r.MinLength {
		return withMessage(r, fmt.Sprintf("Must be at least %d characters.", r.MinLength))
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return withMessage(r, fmt.Sprintf("Must be at most %d characters.", r.MaxLength))
	}
	return ""
}

func requiredMsg(r *FieldRule) string { return withMessage(r, MsgRequired) }

func boundMsg(r *FieldRule, format string, lim float64) string {
	return withMessage(r, fmt.Sprintf(format, FormatNumber(lim)))
}

func withMessage(r *FieldRule, def string) string {
	if r.Message != "" {
		return r.Message
	}
	return def
}

// FormatNumber prints n without a trailing fraction when it is integral.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// -----------------------------------------------------------------------------
// Payload
// -----------------------------------------------------------------------------

// Payload serialises values for submission: one entry per rule, numbers as
// float64, and text or enum values as trimmed strings.  Empty number fields
// are omitted; fields without a rule are never sent.  Callers pass values
// that already validated.
func Payload(values Values, rules Ruleset) map[string]any {
	out := make(map[string]any, len(rules))
	for _, r := range rules {
		val := values.Get(r.Name)
		if r.Kind == KindNumber {
			if n, ok := parseNumber(val); ok {
				out[r.Name] = n
			}
			continue
		}
		out[r.Name] = val
	}
	return out
}
