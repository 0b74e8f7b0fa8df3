// Package httputil centralizes JSON response and error rendering so every
// handler produces the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
)

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal and upstream errors omit the description so low-level detail
// never reaches clients.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	status := derrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	switch code {
	case derrors.CodeInternal, derrors.CodeUpstreamUnavailable, derrors.CodeUpstreamTimeout:
		// detail suppressed
	default:
		if msg := derrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	WriteJSON(w, status, body)
}
