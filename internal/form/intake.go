// internal/form/intake.go
//
// Server-side intake.
//
// Endpoints never trust the client’s validation.  ReadValues accepts the
// bodies a Submitter (or a browser) can send: JSON objects, multipart, and
// urlencoded forms.  HandleSubmit re-runs the same engine on what arrived
// and hands back either the serialised payload or a ValidationError.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
)

const maxIntakeBytes = 1 << 20

// ErrUnsupportedBody reports a Content-Type ReadValues cannot parse.
var ErrUnsupportedBody = errors.New("unsupported request body")

// ReadValues extracts one string per field from r.
func ReadValues(r *http.Request) (Values, error) {
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ctype {
	case "application/json":
		var raw map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, maxIntakeBytes))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode JSON body: %w", err)
		}
		out := make(Values, len(raw))
		for k, v := range raw {
			out[k] = stringify(v)
		}
		return out, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxIntakeBytes); err != nil {
			return nil, fmt.Errorf("parse multipart body: %w", err)
		}
		return ValuesFrom(r.MultipartForm.Value), nil

	case "application/x-www-form-urlencoded", "":
		r.Body = http.MaxBytesReader(nil, r.Body, maxIntakeBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		return ValuesFrom(r.PostForm), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBody, ctype)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// HandleSubmit reads r and validates it against def.  On success it returns
// the typed payload.  On failure it returns a ValidationError (user input)
// or another error (unreadable body).
func HandleSubmit(def *Definition, r *http.Request, anchor Anchor) (Values, map[string]any, error) {
	vals, err := ReadValues(r)
	if err != nil {
		return nil, nil, err
	}
	if res := Validate(vals, def.Fields, anchor); !res.Valid() {
		return vals, nil, ValidationError{Result: res}
	}
	return vals, Payload(vals, def.Fields), nil
}
