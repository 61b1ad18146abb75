// internal/form/controller.go
//
// Agriportal – Forms subsystem: the submit state machine.
//
// Context
//   A Controller owns one mounted form.  Submit runs one attempt through
//
//     Idle → Validating → Invalid                       → Idle
//                       → Submitting → Success          → Idle
//                                    → ServerRejected   → Idle
//                                    → TransportError   → Idle
//
//   Validating is synchronous.  Submitting is the only blocking step and it
//   always carries a deadline (see Submitter).  Terminal phases render their
//   result and fall back to Idle so the form stays usable.
//
// Concurrency
//   One attempt per Controller.  Leaving Idle is a compare-and-swap, so a
//   second Submit while an attempt is running returns ErrBusy at once and
//   is never queued.  Controllers share nothing with each other.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/metrics"
)

// ErrBusy is returned when Submit is called while an attempt is in flight.
var ErrBusy = errors.New("form: submission already in flight")

// Phase is a state of the submit state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseInvalid
	PhaseSubmitting
	PhaseSuccess
	PhaseServerRejected
	PhaseTransportError
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseValidating:     "validating",
	PhaseInvalid:        "invalid",
	PhaseSubmitting:     "submitting",
	PhaseSuccess:        "success",
	PhaseServerRejected: "server_rejected",
	PhaseTransportError: "transport_error",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Poster performs the network step.  *Submitter implements it.
type Poster interface {
	Submit(ctx context.Context, req Request) Outcome
}

// Attempt summarises one finished Submit call.
type Attempt struct {
	ID      string
	Phase   Phase   // terminal phase
	Result  Result  // client errors (Invalid) or server errors (ServerRejected)
	Outcome Outcome // nil when the attempt never reached the network
	Elapsed time.Duration
}

// Controller drives a View through submit attempts for one Definition.
type Controller struct {
	def    *Definition
	view   View
	poster Poster

	phase atomic.Int32

	now          func() time.Time
	log          *zap.SugaredLogger
	onTransition func(from, to Phase)
	baseURL      *url.URL
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithClock sets the time source used for year anchors and timings.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller’s logger.
func WithLogger(l *zap.SugaredLogger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// WithTransitionHook calls fn on every phase change, synchronously.
func WithTransitionHook(fn func(from, to Phase)) ControllerOption {
	return func(c *Controller) { c.onTransition = fn }
}

// WithBaseURL resolves relative endpoints against base.
func WithBaseURL(base string) ControllerOption {
	return func(c *Controller) {
		if u, err := url.Parse(base); err == nil && base != "" {
			c.baseURL = u
		}
	}
}

// NewController mounts def on view.
func NewController(def *Definition, view View, poster Poster, opts ...ControllerOption) *Controller {
	c := &Controller{
		def:    def,
		view:   view,
		poster: poster,
		now:    time.Now,
		log:    zap.S(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

// Definition returns the mounted form.
func (c *Controller) Definition() *Definition { return c.def }

// Submit runs one attempt with values.  It returns ErrBusy without touching
// the view when an attempt is already running.
func (c *Controller) Submit(ctx context.Context, values Values) (Attempt, error) {
	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseValidating)) {
		metrics.FormBusyRejectsTotal.WithLabelValues(c.def.ID).Inc()
		return Attempt{}, ErrBusy
	}
	c.emit(PhaseIdle, PhaseValidating)

	att := Attempt{ID: uuid.NewString(), Phase: PhaseValidating}
	start := c.now()
	defer func() {
		c.view.SetBusy(false)
		c.phase.Store(int32(PhaseIdle))
		c.emit(att.Phase, PhaseIdle)
	}()

	res := Validate(values, c.def.Fields, AnchorAt(start))
	if !res.Valid() {
		ApplyErrors(c.view, res)
		att.Result = res
		c.enter(&att, PhaseInvalid)
		c.finish(&att, start)
		return att, nil
	}

	c.view.Reset()
	c.view.SetBusy(true)
	c.enter(&att, PhaseSubmitting)

	out := c.poster.Submit(ctx, c.request(values))
	if out == nil {
		out = &TransportError{Kind: KindTransport, Message: MsgRequestFailed}
	}
	att.Outcome = out
	c.view.SetBusy(false)

	switch o := out.(type) {
	case Success:
		MarkValid(c.view, c.def.Fields)
		c.view.ShowResult(o.Payload)
		if msg, ok := o.Payload["message"].(string); ok {
			c.view.Notify(NoticeSuccess, msg)
		}
		c.enter(&att, PhaseSuccess)
	case FieldErrors:
		att.Result = ResultFrom(o.Errors, c.def.Fields)
		ApplyErrors(c.view, att.Result)
		c.enter(&att, PhaseServerRejected)
	case *TransportError:
		c.view.Notify(NoticeError, o.Message)
		c.enter(&att, PhaseTransportError)
	}

	metrics.FormAttemptSeconds.WithLabelValues(c.def.ID).Observe(c.now().Sub(start).Seconds())
	c.finish(&att, start)
	return att, nil
}

// request builds the outbound request for values.
func (c *Controller) request(values Values) Request {
	req := c.def.Request(Payload(values, c.def.Fields))
	if c.baseURL != nil && strings.HasPrefix(req.Endpoint, "/") {
		if ref, err := url.Parse(req.Endpoint); err == nil {
			req.Endpoint = c.baseURL.ResolveReference(ref).String()
		}
	}
	return req
}

func (c *Controller) enter(att *Attempt, to Phase) {
	from := att.Phase
	att.Phase = to
	c.phase.Store(int32(to))
	c.emit(from, to)
}

func (c *Controller) emit(from, to Phase) {
	c.log.Debugw("form transition", "form", c.def.ID, "from", from.String(), "to", to.String())
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

func (c *Controller) finish(att *Attempt, start time.Time) {
	att.Elapsed = c.now().Sub(start)
	metrics.FormAttemptsTotal.WithLabelValues(c.def.ID, att.Phase.String()).Inc()

	kv := []any{"form", c.def.ID, "attempt", att.ID, "phase", att.Phase.String(), "elapsed", att.Elapsed}
	if te, ok := att.Outcome.(*TransportError); ok {
		kv = append(kv, "kind", string(te.Kind), "status", te.Status)
		c.log.Warnw("form attempt failed", kv...)
		return
	}
	if att.Result.Len() > 0 {
		kv = append(kv, "errors", att.Result.Fields())
	}
	c.log.Infow("form attempt", kv...)
}
