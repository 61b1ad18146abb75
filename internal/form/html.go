// internal/form/html.go
//
// Agriportal – Forms subsystem: HTML renderer.
//
// Context
//   RenderHTML presents a Snapshot as plain, accessible markup.  It is the
//   visible half of error rendering: an errored field’s wrapper gets
//   class="has-error", its input aria-invalid, and its message in the
//   adjacent <span class="error">; a field accepted after a successful
//   submission gets class="is-valid".  The focused field carries autofocus,
//   the submit button is disabled while busy, and the notification and
//   result panel render above and below the inputs.
//
// Style
//   Output HTML is deliberately plain so pages can style via class hooks.
//   Each input gets id="fld-{name}" and is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"sort"
	"strconv"
)

// RenderOptions bundles page-level parameters.
type RenderOptions struct {
	Action    string // form action URL
	CSRFToken string // embedded as a hidden input when non-empty
	Anchor    Anchor // resolves year bounds into min / max attributes
}

// RenderHTML returns markup for snap.
func RenderHTML(snap Snapshot, opts RenderOptions) template.HTML {
	var buf bytes.Buffer
	esc := html.EscapeString

	buf.WriteString(`<div class="agri-form" id="form-` + esc(snap.FormID) + `">` + "\n")
	if snap.Title != "" {
		buf.WriteString(`<h2>` + esc(snap.Title) + `</h2>` + "\n")
	}

	if snap.Notice != NoticeNone {
		buf.WriteString(`<div class="notification notification-` + string(snap.Notice) + `" role="alert">` +
			esc(snap.NoticeText) + `</div>` + "\n")
	}
	if len(snap.FormErrors) > 0 {
		buf.WriteString(`<ul class="form-errors" role="alert">` + "\n")
		for _, m := range snap.FormErrors {
			buf.WriteString(`<li>` + esc(m) + `</li>` + "\n")
		}
		buf.WriteString(`</ul>` + "\n")
	}

	buf.WriteString(`<form method="post" action="` + esc(opts.Action) + `" novalidate>` + "\n")
	for _, f := range snap.Fields {
		writeField(&buf, f, snap.Focus == f.Rule.Name, opts.Anchor)
	}
	if opts.CSRFToken != "" {
		buf.WriteString(`<input type="hidden" name="csrf_token" value="` + esc(opts.CSRFToken) + `">` + "\n")
	}

	label := snap.Submit
	if label == "" {
		label = "Submit"
	}
	if snap.Busy {
		buf.WriteString(`<button type="submit" disabled aria-busy="true"><span class="spinner"></span> Submitting…</button>` + "\n")
	} else {
		buf.WriteString(`<button type="submit">` + esc(label) + `</button>` + "\n")
	}
	buf.WriteString(`</form>` + "\n")

	if len(snap.Result) > 0 {
		writeResult(&buf, snap.Result, snap.Display)
	}

	buf.WriteString(`</div>`)
	return template.HTML(buf.String())
}

// writeField emits one wrapped control.
func writeField(buf *bytes.Buffer, f FieldState, focus bool, anchor Anchor) {
	r := f.Rule
	esc := html.EscapeString
	id := `fld-` + esc(r.Name)

	class := "form-field"
	switch {
	case f.Error != "":
		class += " has-error"
	case f.Valid:
		class += " is-valid"
	}
	buf.WriteString(`<div class="` + class + `">` + "\n")
	buf.WriteString(`<label for="` + id + `">` + esc(r.Label) + `</label>` + "\n")

	var attrs bytes.Buffer
	attrs.WriteString(`id="` + id + `" name="` + esc(r.Name) + `"`)
	if r.Required {
		attrs.WriteString(` required`)
	}
	if f.Error != "" {
		attrs.WriteString(` aria-invalid="true"`)
	}
	if focus {
		attrs.WriteString(` autofocus`)
	}
	if r.Placeholder != "" {
		attrs.WriteString(` placeholder="` + esc(r.Placeholder) + `"`)
	}

	switch {
	case r.Kind == KindEnum:
		buf.WriteString(`<select ` + attrs.String() + `>` + "\n")
		buf.WriteString(`<option value="">Select…</option>` + "\n")
		for _, opt := range r.AllowedValues {
			sel := ""
			if f.Value == opt {
				sel = ` selected`
			}
			buf.WriteString(`<option value="` + esc(opt) + `"` + sel + `>` + esc(opt) + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case r.Input == "textarea":
		buf.WriteString(`<textarea ` + attrs.String() + lengthAttrs(r) + `>` + esc(f.Value) + `</textarea>` + "\n")

	case r.Kind == KindNumber:
		buf.WriteString(`<input ` + attrs.String() + ` type="number" step="any"`)
		if r.Min != nil {
			buf.WriteString(` min="` + FormatNumber(r.Min.Resolve(anchor)) + `"`)
		}
		if r.Max != nil {
			buf.WriteString(` max="` + FormatNumber(r.Max.Resolve(anchor)) + `"`)
		}
		buf.WriteString(` value="` + esc(f.Value) + `">` + "\n")

	default:
		typ := "text"
		switch r.Input {
		case "password", "email", "date", "tel":
			typ = r.Input
		}
		buf.WriteString(`<input ` + attrs.String() + ` type="` + typ + `"` + lengthAttrs(r))
		if r.Pattern != "" {
			buf.WriteString(` pattern="` + esc(r.Pattern) + `"`)
		}
		if typ != "password" && f.Value != "" {
			buf.WriteString(` value="` + esc(f.Value) + `"`)
		}
		buf.WriteString(`>` + "\n")
	}

	buf.WriteString(`<span class="error" aria-live="polite">` + esc(f.Error) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
}

func lengthAttrs(r FieldRule) string {
	s := ""
	if r.MinLength > 0 {
		s += ` minlength="` + strconv.Itoa(r.MinLength) + `"`
	}
	if r.MaxLength > 0 {
		s += ` maxlength="` + strconv.Itoa(r.MaxLength) + `"`
	}
	return s
}

// envelopeKeys are response plumbing, never result data.
var envelopeKeys = map[string]bool{"success": true, "message": true, "submission_id": true}

// writeResult renders the success payload as a definition list.  With a
// display list only those keys render, in that order; otherwise every
// non-envelope key renders in sorted order.
func writeResult(buf *bytes.Buffer, payload map[string]any, display []string) {
	var keys []string
	if len(display) > 0 {
		for _, k := range display {
			if _, ok := payload[k]; ok && !envelopeKeys[k] {
				keys = append(keys, k)
			}
		}
	} else {
		for k := range payload {
			if !envelopeKeys[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
	}
	if len(keys) == 0 {
		return
	}

	buf.WriteString(`<div class="result-panel">` + "\n")
	writeDL(buf, payload, keys)
	buf.WriteString("</div>\n")
}

func writeDL(buf *bytes.Buffer, m map[string]any, keys []string) {
	buf.WriteString("<dl>\n")
	for _, k := range keys {
		buf.WriteString(`<dt>` + html.EscapeString(k) + `</dt><dd>`)
		buf.WriteString(string(resultValue(m[k])))
		buf.WriteString(`</dd>` + "\n")
	}
	buf.WriteString("</dl>\n")
}

func resultValue(v any) template.HTML {
	switch t := v.(type) {
	case string:
		return RichText(t)
	case float64:
		return template.HTML(FormatNumber(t))
	case []any:
		var b bytes.Buffer
		b.WriteString("<ul>")
		for _, e := range t {
			b.WriteString("<li>" + string(resultValue(e)) + "</li>")
		}
		b.WriteString("</ul>")
		return template.HTML(b.String())
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b bytes.Buffer
		writeDL(&b, t, keys)
		return template.HTML(b.String())
	case nil:
		return ""
	default:
		return template.HTML(html.EscapeString(fmt.Sprint(t)))
	}
}
