// internal/form/definition.go
//
// Agriportal – Forms subsystem: YAML definition loader and registry.
//
// Context
//   Each portal form is declared in a YAML file under conf/forms/.  A file
//   names the form, the endpoint its submissions go to, how the body is
//   encoded, which payload keys mean “success” when the server sends no
//   explicit flag, the ordered field rules, and any post-submit actions the
//   server runs.  The server endpoints, the page handlers, and formctl all
//   read definitions from one Registry so the client and server checks can
//   never drift apart.
//
// Workflow
//   •  Parse decodes one document, applies defaults, and validates it: tag
//      rules through the shared validator, then Ruleset.Check for the rest.
//   •  Load wraps Parse for a file on disk.
//   •  Registry.LoadDirs walks directories in precedence order.  The first
//      directory that defines an ID wins, so site overrides go first.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.  Helper
//   comments use short noun phrases.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Encoding selects the request body format.
type Encoding string

const (
	EncodingJSON      Encoding = "json"
	EncodingMultipart Encoding = "multipart"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// Definition represents one form loaded from YAML.
type Definition struct {
	ID       string            `yaml:"id"       validate:"required,slug"`
	Title    string            `yaml:"title"`
	Endpoint string            `yaml:"endpoint" validate:"required"`         // Absolute URL or path resolved against the base URL.
	Method   string            `yaml:"method"   validate:"oneof=POST PUT"`   // Defaults to POST.
	Encoding Encoding          `yaml:"encoding" validate:"oneof=json multipart"`
	Headers  map[string]string `yaml:"headers"`
	Expect   []string          `yaml:"expect"`                               // Payload keys that signal success.
	Submit   string            `yaml:"submit"`                               // Button label.
	Fields   Ruleset           `yaml:"fields"   validate:"required,min=1,dive"`
	Actions  []ActionDef       `yaml:"actions"  validate:"dive"`
	Display  []string          `yaml:"display"`                              // Result keys shown on the page, in order.
}

// ActionDef configures one server-side action run after a submission
// passes validation.  Provider-specific keys are kept inline.
type ActionDef struct {
	Type   string         `yaml:"type"    validate:"required"`
	Params map[string]any `yaml:",inline"`
}

// Request builds the submission request for payload.
func (d *Definition) Request(payload map[string]any) Request {
	return Request{
		Endpoint: d.Endpoint,
		Method:   d.Method,
		Encoding: d.Encoding,
		Headers:  d.Headers,
		Payload:  payload,
		Expect:   d.Expect,
	}
}

// validate is shared by every Parse call.  Validator instances cache struct
// metadata and are safe for concurrent use.
var validate = newValidator()

// slugRe matches lower-kebab ASCII IDs.  Form IDs appear in URLs and metric
// labels, so they are restricted to a-z, 0-9, and single inner dashes.
var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 100 && slugRe.MatchString(s)
	})
	return v
}

var knownActions = map[string]bool{
	"store":   true,
	"webhook": true,
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// Parse decodes a YAML definition.  src names the document in errors.
func Parse(raw []byte, src string) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", src, err)
	}
	if err := d.normalize(); err != nil {
		return nil, fmt.Errorf("form definition %s: %w", src, err)
	}
	for _, ac := range d.Actions {
		if !knownActions[ac.Type] {
			zap.S().Warnw("unrecognized form action", "form", d.ID, "action", ac.Type, "src", src)
		}
	}
	return &d, nil
}

// Load parses one YAML file.  It never touches a Registry.
func Load(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return Parse(raw, path)
}

// normalize applies defaults, then validates.
func (d *Definition) normalize() error {
	if d.Method == "" {
		d.Method = http.MethodPost
	}
	d.Method = strings.ToUpper(d.Method)
	if d.Encoding == "" {
		d.Encoding = EncodingJSON
	}
	for i := range d.Fields {
		if d.Fields[i].Label == "" {
			d.Fields[i].Label = d.Fields[i].Name
		}
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	return d.Fields.Check()
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps form ID → *Definition.  Definitions are read-only once
// registered.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates d and inserts or replaces it.
func (r *Registry) Register(d *Definition) error {
	if err := d.normalize(); err != nil {
		return fmt.Errorf("register form %q: %w", d.ID, err)
	}
	r.mu.Lock()
	r.defs[d.ID] = d
	r.mu.Unlock()
	return nil
}

// Get returns a definition by ID.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every registered ID, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadDirs loads every “*.yaml” under each directory and replaces the
// registry's contents with the result, so a deleted file drops its form.
// dirs are ordered by precedence: an ID defined in an earlier directory is
// not replaced by a later one.  Missing directories are skipped; any other
// error fails fast and leaves the registry untouched.
//
//	err := reg.LoadDirs("/srv/agri/site/forms", "/srv/agri/conf/forms")
func (r *Registry) LoadDirs(dirs ...string) error {
	if len(dirs) == 0 {
		return errors.New("LoadDirs: no directories provided")
	}

	seen := make(map[string]string)
	loaded := make(map[string]*Definition)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			zap.S().Debugw("form directory missing", "dir", dir)
			continue
		} else if err != nil {
			return err
		}
		err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if de.IsDir() || !isYAML(de.Name()) {
				return nil
			}

			d, err := Load(path)
			if err != nil {
				return err
			}
			if prev, dup := seen[d.ID]; dup {
				zap.S().Debugw("form shadowed", "form", d.ID, "kept", prev, "skipped", path)
				return nil
			}
			seen[d.ID] = path
			loaded[d.ID] = d
			return nil
		})
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.defs = loaded
	r.mu.Unlock()
	return nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
