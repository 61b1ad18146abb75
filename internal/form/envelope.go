// internal/form/envelope.go
//
// Server half of the response envelope.
//
// Endpoints answer in exactly one of three shapes, the same ones
// DecodeOutcome understands:
//
//	200 {"success": true, ...result}
//	4xx {"errors": {"field": "message"}}
//	4xx/5xx {"error": "message"}
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WriteJSON writes payload with code.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.S().Errorw("encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// WriteSuccess writes {"success": true} merged with payload.
func WriteSuccess(w http.ResponseWriter, code int, payload map[string]any) {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["success"] = true
	WriteJSON(w, code, out)
}

// WriteFieldErrors writes a 400 with the `errors` mapping.
func WriteFieldErrors(w http.ResponseWriter, res Result) {
	WriteJSON(w, http.StatusBadRequest, map[string]any{"errors": res})
}

// WriteError writes {"error": msg} with code.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]any{"error": msg})
}
