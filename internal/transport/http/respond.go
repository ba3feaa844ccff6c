package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "windseat/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates domain errors into the JSON error envelope. Unknown
// errors collapse to a 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := "internal error"
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}
