// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  At boot cmd/web builds one
// Deps value, then Mount calls Init(deps) on every component that
// implements Initializer and lets each add its routes to the shared
// router, in name order.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/account"
	"github.com/yanizio/agriportal/internal/form"
)

// Deps carries process-wide services into components.  Any field may be
// nil in tests; components document what they need.
type Deps struct {
	DB            *sqlx.DB
	Forms         *form.Registry
	Poster        form.Poster
	Actions       *form.Actions
	CSRF          *form.CSRF
	Accounts      *account.Service
	SecureCookies bool
	Debug         bool // exposes diagnostic routes
	Log           *zap.SugaredLogger
}

// Initializer is optional.  Mount calls Init once before Routes.
type Initializer interface {
	Init(Deps) error
}

// Component contract.  Routes adds page and API endpoints to r, e.g.
//
//	r.Get("/forms/{id}", c.page)
//	r.Route("/api/forms", func(api chi.Router) { ... })
type Component interface {
	Name() string
	Routes(r chi.Router)
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises cs and adds their routes to r.
func Mount(r chi.Router, deps Deps, cs ...Component) error {
	for _, c := range cs {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("component %s: %w", c.Name(), err)
			}
		}
		r.Group(c.Routes)
		if deps.Log != nil {
			deps.Log.Debugw("component mounted", "component", c.Name())
		}
	}
	return nil
}
