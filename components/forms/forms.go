// components/forms/forms.go
//
// Forms component – pages and JSON endpoints for every registered form.
//
// Context
//   The page routes drive a form.Controller over a form.State for one
//   request: the browser posts plain urlencoded values, the controller
//   validates them, submits to the form’s endpoint, and the page re-renders
//   the resulting snapshot.  Relative endpoints are dispatched in-process
//   through this component’s own router, so a page submission exercises
//   exactly the JSON endpoint API clients call.  Absolute endpoints go out
//   through the shared Submitter.
//
//   The API routes re-validate every submission against the same
//   definition, run the form’s result builder, execute post-submit
//   actions, and answer in the standard envelope.
//
// Routes
//   GET  /forms              index page
//   GET  /forms/{id}         empty form
//   POST /forms/{id}         submit and re-render
//   GET  /api/forms          definitions list
//   GET  /api/forms/{id}     field schema for client-side rendering
//   POST /api/forms/{id}     submission endpoint
//
//------------------------------------------------------------------------------

package forms

import (
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/account"
	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/metrics"
)

// compile-time assertions
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves forms.  Init must run before Routes.
type Component struct {
	forms    *form.Registry
	remote   form.Poster
	actions  *form.Actions
	csrf     *form.CSRF
	accounts *account.Service
	secure   bool
	log      *zap.SugaredLogger
	now      func() time.Time

	builders map[string]builder
	mux      chi.Router // in-process target for relative endpoints
}

func (c *Component) Name() string { return "forms" }

// Init wires dependencies.  Forms and CSRF are required; Poster, Actions,
// and Accounts are optional and only the features needing them degrade.
func (c *Component) Init(d component.Deps) error {
	if d.Forms == nil || d.CSRF == nil {
		return errors.New("forms component needs Forms and CSRF")
	}
	c.forms = d.Forms
	c.remote = d.Poster
	c.actions = d.Actions
	c.csrf = d.CSRF
	c.accounts = d.Accounts
	c.secure = d.SecureCookies
	c.log = d.Log
	if c.log == nil {
		c.log = zap.S()
	}
	if c.actions == nil {
		c.actions = form.NewActions(nil, c.remote, c.log)
	}
	c.now = time.Now
	c.builders = c.defaultBuilders()

	c.mux = chi.NewRouter()
	c.routes(c.mux)
	return nil
}

// Routes adds page and API endpoints to r.
func (c *Component) Routes(r chi.Router) { c.routes(r) }

func (c *Component) routes(r chi.Router) {
	r.Get("/forms", c.index)
	r.Get("/forms/{id}", c.page)
	r.Post("/forms/{id}", c.pageSubmit)
	r.Route("/api/forms", func(api chi.Router) {
		api.Get("/", c.list)
		api.Get("/{id}", c.schema)
		api.Post("/{id}", c.submit)
	})
}

func init() { component.Register(&Component{}) }

/*──────────────────────────── API handlers ────────────────────────────────*/

func (c *Component) list(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Endpoint string `json:"endpoint"`
	}
	out := []entry{}
	for _, id := range c.forms.IDs() {
		def, _ := c.forms.Get(id)
		out = append(out, entry{def.ID, def.Title, def.Endpoint})
	}
	form.WriteJSON(w, http.StatusOK, out)
}

func (c *Component) schema(w http.ResponseWriter, r *http.Request) {
	def, ok := c.forms.Get(chi.URLParam(r, "id"))
	if !ok {
		form.WriteError(w, http.StatusNotFound, "Unknown form.")
		return
	}
	form.WriteJSON(w, http.StatusOK, schemaOf(def, form.AnchorAt(c.now())))
}

// submit is the server half of the pipeline.
func (c *Component) submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, ok := c.forms.Get(id)
	if !ok {
		form.WriteError(w, http.StatusNotFound, "Unknown form.")
		return
	}

	status := http.StatusOK
	defer func() {
		metrics.ServerSubmissionsTotal.WithLabelValues(id, strconv.Itoa(status)).Inc()
	}()

	vals, payload, err := form.HandleSubmit(def, r, form.AnchorAt(c.now()))
	if res, ok := form.AsValidationError(err); ok {
		status = http.StatusBadRequest
		form.WriteFieldErrors(w, res)
		return
	}
	if err != nil {
		status = http.StatusBadRequest
		c.log.Debugw("unreadable form body", "form", id, "err", err)
		form.WriteError(w, status, "The request could not be read.")
		return
	}

	code, result, err := c.build(w, r, def, vals, payload)
	if err != nil {
		status = c.writeBuildError(w, def, err)
		return
	}

	subID := uuid.NewString()
	if err := c.actions.Execute(r.Context(), def, subID, payload); err != nil {
		c.log.Warnw("form actions incomplete", "form", id, "submission", subID, "err", err)
	}
	if result == nil {
		result = map[string]any{}
	}
	result["submission_id"] = subID
	status = code
	form.WriteSuccess(w, code, result)
}

func (c *Component) build(w http.ResponseWriter, r *http.Request, def *form.Definition, vals form.Values, payload map[string]any) (int, map[string]any, error) {
	b, ok := c.builders[def.ID]
	if !ok {
		return http.StatusOK, map[string]any{"message": "Submission received."}, nil
	}
	return b(w, r, def, vals, payload)
}

// writeBuildError maps builder errors onto the envelope and returns the
// status written.
func (c *Component) writeBuildError(w http.ResponseWriter, def *form.Definition, err error) int {
	var (
		fe *account.FieldError
		ae *apiError
	)
	if errors.As(err, &fe) {
		form.WriteFieldErrors(w, form.ResultFrom(map[string]string{fe.Field: fe.Message}, def.Fields))
		return http.StatusBadRequest
	}
	if errors.As(err, &ae) {
		form.WriteError(w, ae.code, ae.msg)
		return ae.code
	}
	if res, ok := form.AsValidationError(err); ok {
		form.WriteFieldErrors(w, res)
		return http.StatusBadRequest
	}
	c.log.Errorw("form builder failed", "form", def.ID, "err", err)
	form.WriteError(w, http.StatusInternalServerError, "Something went wrong.  Please try again.")
	return http.StatusInternalServerError
}

// apiError is a builder failure with a user-facing message.
type apiError struct {
	code int
	msg  string
}

func (e *apiError) Error() string { return e.msg }

/*──────────────────────────── schema view ─────────────────────────────────*/

type fieldSchema struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Kind        string   `json:"kind"`
	Required    bool     `json:"required"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Options     []string `json:"options,omitempty"`
	MinLength   int      `json:"minlength,omitempty"`
	MaxLength   int      `json:"maxlength,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Input       string   `json:"input,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// schemaOf resolves year-relative bounds at anchor so clients see numbers.
func schemaOf(def *form.Definition, anchor form.Anchor) map[string]any {
	fields := make([]fieldSchema, 0, len(def.Fields))
	for _, f := range def.Fields {
		fs := fieldSchema{
			Name: f.Name, Label: f.Label, Kind: string(f.Kind), Required: f.Required,
			Options: f.AllowedValues, MinLength: f.MinLength, MaxLength: f.MaxLength,
			Pattern: f.Pattern, Input: f.Input, Placeholder: f.Placeholder,
		}
		if f.Min != nil {
			v := f.Min.Resolve(anchor)
			fs.Min = &v
		}
		if f.Max != nil {
			v := f.Max.Resolve(anchor)
			fs.Max = &v
		}
		fields = append(fields, fs)
	}
	return map[string]any{
		"id":       def.ID,
		"title":    def.Title,
		"endpoint": def.Endpoint,
		"encoding": def.Encoding,
		"submit":   def.Submit,
		"fields":   fields,
	}
}

/*──────────────────────────── page handlers ───────────────────────────────*/

var pageTpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · Agriportal</title>
</head>
<body>
<main>
{{.Body}}
</main>
</body>
</html>
`))

var indexTpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Forms · Agriportal</title></head>
<body>
<main>
<h1>Forms</h1>
<ul>
{{range .}}<li><a href="/forms/{{.ID}}">{{.Title}}</a></li>
{{end}}</ul>
</main>
</body>
</html>
`))

func (c *Component) index(w http.ResponseWriter, r *http.Request) {
	var defs []*form.Definition
	for _, id := range c.forms.IDs() {
		d, _ := c.forms.Get(id)
		defs = append(defs, d)
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Title < defs[j].Title })
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTpl.Execute(w, defs); err != nil {
		c.log.Errorw("render index", "err", err)
	}
}

func (c *Component) page(w http.ResponseWriter, r *http.Request) {
	def, ok := c.forms.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	c.render(w, http.StatusOK, def, form.NewState(def))
}

func (c *Component) pageSubmit(w http.ResponseWriter, r *http.Request) {
	def, ok := c.forms.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	st := form.NewState(def)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		st.Notify(form.NoticeError, "The form could not be read.  Please try again.")
		c.render(w, http.StatusBadRequest, def, st)
		return
	}
	vals := form.ValuesFrom(r.PostForm)
	tok := vals["csrf_token"]
	delete(vals, "csrf_token")
	st.SetValues(vals)

	if !c.csrf.Verify(tok) {
		st.Notify(form.NoticeError, "This form has expired.  Please submit it again.")
		c.render(w, http.StatusForbidden, def, st)
		return
	}

	ctrl := form.NewController(def, st, c.poster(w), form.WithLogger(c.log), form.WithClock(c.now))
	att, err := ctrl.Submit(r.Context(), vals)
	if err != nil {
		// A fresh controller is never busy; treat it as a server fault.
		c.log.Errorw("page submit", "form", def.ID, "err", err)
		st.Notify(form.NoticeError, form.MsgRequestFailed)
		c.render(w, http.StatusInternalServerError, def, st)
		return
	}

	code := http.StatusOK
	switch att.Phase {
	case form.PhaseInvalid, form.PhaseServerRejected:
		code = http.StatusUnprocessableEntity
	case form.PhaseTransportError:
		code = http.StatusBadGateway
	}
	c.render(w, code, def, st)
}

func (c *Component) render(w http.ResponseWriter, code int, def *form.Definition, st *form.State) {
	tok, err := c.csrf.Token()
	if err != nil {
		c.log.Errorw("csrf token", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	body := form.RenderHTML(st.Snapshot(), form.RenderOptions{
		Action:    "/forms/" + def.ID,
		CSRFToken: tok,
		Anchor:    form.AnchorAt(c.now()),
	})

	title := def.Title
	if title == "" {
		title = def.ID
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := pageTpl.Execute(w, map[string]any{"Title": title, "Body": body}); err != nil {
		c.log.Errorw("render page", "form", def.ID, "err", err)
	}
}
