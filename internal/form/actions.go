// internal/form/actions.go
//
// Agriportal – Forms subsystem: post-submit actions.
//
// Context
//   A Definition may list actions the server runs once a submission passes
//   validation.  Execute dispatches to runStore or runWebhook in order.
//   Failures are logged and collected but never turn an accepted submission
//   into an error response; the user’s input was valid.
//
//   •  store   – INSERT into a table (default form_submission) with the form
//                ID, submission ID, timestamp, and JSON payload.
//   •  webhook – forward the payload through the Submitter, so webhooks get
//                the same deadline and 429 backoff as portal submissions.
//
//   Password inputs are stripped before any action sees the payload.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var tableRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Actions executes post-submit actions.  db and poster may be nil, in which
// case store and webhook actions fail with a logged error.
type Actions struct {
	db     sqlx.ExecerContext
	poster Poster
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewActions(db sqlx.ExecerContext, poster Poster, log *zap.SugaredLogger) *Actions {
	if log == nil {
		log = zap.S()
	}
	return &Actions{db: db, poster: poster, log: log, now: time.Now}
}

// Execute runs def’s actions for one accepted submission and returns every
// failure joined.
func (a *Actions) Execute(ctx context.Context, def *Definition, submissionID string, payload map[string]any) error {
	payload = withoutSecrets(def.Fields, payload)
	var errs []error
	for _, ac := range def.Actions {
		var err error
		switch ac.Type {
		case "store":
			err = a.runStore(ctx, def, ac.Params, submissionID, payload)
		case "webhook":
			err = a.runWebhook(ctx, ac.Params, payload)
		default:
			a.log.Warnw("form action warning", "form", def.ID, "action", ac.Type, "warning", "unsupported action")
			continue
		}
		if err != nil {
			a.log.Errorw("form action failed", "form", def.ID, "action", ac.Type, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ac.Type, err))
		}
	}
	return errors.Join(errs...)
}

// withoutSecrets drops password inputs so no action ever persists or
// forwards them.
func withoutSecrets(rules Ruleset, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if r, ok := rules.Lookup(k); ok && r.Input == "password" {
			continue
		}
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------
// Store action
// -----------------------------------------------------------------------------

func (a *Actions) runStore(ctx context.Context, def *Definition, p map[string]any, id string, payload map[string]any) error {
	if a.db == nil {
		return errors.New("no database configured")
	}
	table, _ := p["table"].(string)
	if table == "" {
		table = "form_submission"
	}
	if !tableRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	j, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (form_id, submission_id, submitted_at, data) VALUES (?, ?, ?, ?)", table),
		def.ID, id, a.now().UTC(), j,
	)
	return err
}

// -----------------------------------------------------------------------------
// Webhook action
// -----------------------------------------------------------------------------

func (a *Actions) runWebhook(ctx context.Context, p map[string]any, payload map[string]any) error {
	if a.poster == nil {
		return errors.New("no submitter configured")
	}
	url, _ := p["url"].(string)
	if url == "" {
		return errors.New("webhook action requires 'url'")
	}
	method, _ := p["method"].(string)

	headers := make(map[string]string)
	for k, v := range p {
		if strings.HasPrefix(k, "header.") {
			headers[strings.TrimPrefix(k, "header.")] = fmt.Sprint(v)
		}
	}

	out := a.poster.Submit(ctx, Request{
		Endpoint: url,
		Method:   strings.ToUpper(method),
		Encoding: EncodingJSON,
		Headers:  headers,
		Payload:  payload,
	})
	// Receivers answer in any shape; only a missing or non-2xx reply fails.
	if te, ok := out.(*TransportError); ok && (te.Status < 200 || te.Status > 299) {
		return te
	}
	if fe, ok := out.(FieldErrors); ok {
		return fmt.Errorf("webhook rejected %d field(s)", len(fe.Errors))
	}
	return nil
}
