// Package httpx provides JSON response and request-decoding utilities.
package httpx

import (
	"encoding/json"
	"net/http"
)

// maxJSONBody bounds JSON request bodies at 10 MiB. Multipart uploads are
// governed by the per-file limit instead.
const maxJSONBody = 10 << 20

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes a size-limited JSON request body into the target.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(target)
}
