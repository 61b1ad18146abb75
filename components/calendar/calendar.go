// components/calendar/calendar.go
//
// Crop calendar component.
//
// Routes
//   GET /api/calendar            every crop’s twelve-month row
//   GET /api/calendar?crop=Rice  one crop (case-insensitive; "all" = every)
//   GET /api/calendar?season=Rabi crops sown in a season
//   GET /calendar                the same grid as an HTML table
//
//------------------------------------------------------------------------------

package calendar

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/calendar"
	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/form"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves a calendar.Calendar.
type Component struct {
	cal calendar.Calendar
	log *zap.SugaredLogger
	now func() time.Time
}

func (c *Component) Name() string { return "calendar" }

func (c *Component) Init(d component.Deps) error {
	if c.cal == nil {
		c.cal = calendar.Default
	}
	for _, crop := range c.cal {
		if err := crop.Validate(); err != nil {
			return err
		}
	}
	c.log = d.Log
	if c.log == nil {
		c.log = zap.S()
	}
	c.now = time.Now
	return nil
}

func (c *Component) Routes(r chi.Router) {
	r.Get("/api/calendar", c.api)
	r.Get("/calendar", c.page)
}

func init() { component.Register(&Component{}) }

// rows applies the crop and season filters.  ok is false when a named crop
// or season is unknown.
func (c *Component) rows(r *http.Request) (rows []calendar.Row, ok bool) {
	q := r.URL.Query()
	if s := q.Get("season"); s != "" {
		season := calendar.Season(s)
		if season.SowingMonths() == nil {
			return nil, false
		}
		for _, crop := range c.cal.ForSeason(season) {
			rows = append(rows, crop.Row())
		}
		return rows, true
	}

	crop := strings.TrimSpace(q.Get("crop"))
	rows = c.cal.Rows(crop)
	return rows, len(rows) > 0 || crop == "" || strings.EqualFold(crop, "all")
}

func (c *Component) api(w http.ResponseWriter, r *http.Request) {
	rows, ok := c.rows(r)
	if !ok {
		form.WriteError(w, http.StatusNotFound, "Unknown crop or season.")
		return
	}
	if rows == nil {
		rows = []calendar.Row{}
	}
	form.WriteJSON(w, http.StatusOK, map[string]any{
		"month": int(c.now().Month()),
		"crops": c.cal.Names(),
		"rows":  rows,
	})
}

var pageTpl = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"monthAbbr": func(i int) string { return time.Month(i + 1).String()[:3] },
}).Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Crop Calendar · Agriportal</title></head>
<body>
<main>
<h1>Crop Calendar</h1>
<table class="crop-calendar">
<thead><tr><th>Crop</th>{{range $i, $m := .First.Months}}<th{{if eq $i $.Current}} class="current"{{end}}>{{monthAbbr $i}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr><th>{{.Crop}}</th>{{range $i, $s := .Months}}<td class="stage-{{if $s}}{{$s}}{{else}}none{{end}}{{if eq $i $.Current}} current{{end}}">{{$s}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</main>
</body>
</html>
`))

func (c *Component) page(w http.ResponseWriter, r *http.Request) {
	rows, ok := c.rows(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := map[string]any{
		"Rows":    rows,
		"First":   calendar.Row{},
		"Current": int(c.now().Month()) - 1,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTpl.Execute(w, data); err != nil {
		c.log.Errorw("render calendar", "err", err)
	}
}
