package forms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/yanizio/agriportal/internal/form"
)

// routePoster sends relative endpoints through the component's own router
// and everything else through the remote Submitter.  Cookies the endpoint
// sets (the login refresh token) are passed on to the browser response.
type routePoster struct {
	c *Component
	w http.ResponseWriter
}

func (c *Component) poster(w http.ResponseWriter) form.Poster {
	return routePoster{c: c, w: w}
}

func (p routePoster) Submit(ctx context.Context, req form.Request) form.Outcome {
	if !strings.HasPrefix(req.Endpoint, "/") {
		if p.c.remote == nil {
			return &form.TransportError{Kind: form.KindTransport, Message: form.MsgNetwork}
		}
		return p.c.remote.Submit(ctx, req)
	}

	hreq, err := form.NewHTTPRequest(ctx, req)
	if err != nil {
		return &form.TransportError{Kind: form.KindTransport, Message: form.MsgRequestFailed, Err: err}
	}
	rec := httptest.NewRecorder()
	p.c.mux.ServeHTTP(rec, hreq)

	for _, sc := range rec.Result().Header.Values("Set-Cookie") {
		p.w.Header().Add("Set-Cookie", sc)
	}
	return form.DecodeOutcome(rec.Code, rec.Body.Bytes(), req.Expect)
}
