// components/debug/debug.go
//
// Diagnostic component that echoes what the server knows about a request:
// parsed user agent, geo lookup, request ID, and routing details.  Routes
// are only mounted when Deps.Debug is set.
package debug

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/requestinfo"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

type Component struct{ enabled bool }

func (c *Component) Name() string { return "debug" }

func (c *Component) Init(d component.Deps) error {
	c.enabled = d.Debug
	return nil
}

func (c *Component) Routes(r chi.Router) {
	if !c.enabled {
		return
	}
	r.Get("/debug/request", handler)
}

func init() { component.Register(&Component{}) }

// handler writes a JSON blob with selected request fields.
func handler(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"request_id": chimw.GetReqID(r.Context()),
		"method":     r.Method,
		"host":       r.Host,
		"path":       r.URL.Path,
		"query":      r.URL.RawQuery,
		"remote":     r.RemoteAddr,
		"ua":         r.UserAgent(),
		"info":       requestinfo.FromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
