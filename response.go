package httpd

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON envelope the facility uses for error responses,
// including the 404 and 405 bodies produced on a dispatcher miss.
type ErrorBody struct {
	// Message is the human-readable description, e.g.
	// "Route GET:/missing not found".
	Message string `json:"message"`

	// Error is the HTTP status text, e.g. "Not Found".
	Error string `json:"error"`

	// StatusCode repeats the response status code in the body.
	StatusCode int `json:"statusCode"`
}

// ResponseJSON encodes v as JSON and writes it with the given status code
// and a Content-Type of "application/json". The body is marshalled before
// anything is written, so an encoding failure yields a clean 500 with no
// partial output.
func ResponseJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "response encoding failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// ResponseError writes an ErrorBody for the given status code. The Error
// field is filled from http.StatusText.
func ResponseError(w http.ResponseWriter, code int, message string) {
	ResponseJSON(w, code, ErrorBody{
		Message:    message,
		Error:      http.StatusText(code),
		StatusCode: code,
	})
}
