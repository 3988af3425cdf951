package httpd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// BindJSON decodes the request body as a single JSON value into v.
//
// A request without a body — a nil Body, http.NoBody, or no JSON value at
// all — fails with ErrEmptyBody rather than reaching the decoder. Anything
// left in the body after the first value fails with ErrTrailingData. Unknown
// fields are rejected unless allowUnknownFields is passed as true; other
// decode failures are returned wrapped.
func BindJSON(r *http.Request, v any, allowUnknownFields ...bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}

	dec := json.NewDecoder(r.Body)
	if len(allowUnknownFields) == 0 || !allowUnknownFields[0] {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("httpd: decode request body: %w", err)
	}

	// Any token after the value means the body held more than one.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}

	return nil
}
