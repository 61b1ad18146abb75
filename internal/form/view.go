// internal/form/view.go
//
// Agriportal – Forms subsystem: error rendering.
//
// Context
//   The pipeline never touches markup directly.  It drives a View, which
//   owns field values and markers and decides how they look: State keeps
//   them in memory for HTML pages and formctl, and tests use it to assert
//   what a user would see.
//
// Contract
//   •  ApplyErrors clears every error and success marker first, then marks
//      each erroring field and focuses the first one in ruleset order.
//      Calling it twice with the same Result leaves the same visible state.
//   •  MarkValid marks every ruled field valid after a successful submission.
//   •  Notify with an empty message hides the notification.
//
//------------------------------------------------------------------------------

package form

// NoticeLevel classifies a transient notification.
type NoticeLevel string

const (
	NoticeNone    NoticeLevel = ""
	NoticeError   NoticeLevel = "error"
	NoticeSuccess NoticeLevel = "success"
)

// View is the rendering surface a Controller drives.
type View interface {
	// Reset clears every error and success marker and the notification.
	Reset()
	// MarkError flags field with msg.  Fields a view does not render are
	// surfaced as form-level messages.
	MarkError(field, msg string)
	// MarkValid flags field as accepted.
	MarkValid(field string)
	// Focus moves input focus to field.
	Focus(field string)
	// SetBusy locks or unlocks the submit control.
	SetBusy(busy bool)
	// ShowResult presents a success payload.
	ShowResult(payload map[string]any)
	// Notify shows a transient message; an empty msg hides it.
	Notify(level NoticeLevel, msg string)
}

// ApplyErrors renders res onto v.
func ApplyErrors(v View, res Result) {
	v.Reset()
	for _, name := range res.order {
		v.MarkError(name, res.msgs[name])
	}
	if first := res.First(); first != "" {
		v.Focus(first)
	}
}

// MarkValid marks every field in rules as valid.
func MarkValid(v View, rules Ruleset) {
	for _, r := range rules {
		v.MarkValid(r.Name)
	}
}
