package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/openquant/tradehook/internal/errors"
)

const maxBodyBytes = 1 << 20

// decodeJSON parses the request body strictly: unknown fields and trailing
// data are rejected so malformed alerts fail loudly instead of half-parsing.
func decodeJSON(r *http.Request, dst interface{}) *errors.ServiceError {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return errors.Validation("invalid request body: unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError maps any error to the wire envelope. Errors outside the
// taxonomy become opaque 500s.
func writeServiceError(w http.ResponseWriter, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		svcErr = errors.Internal("internal server error", err)
	}
	writeError(w, svcErr)
}

func writeError(w http.ResponseWriter, err *errors.ServiceError) {
	body := map[string]interface{}{
		"status": "error",
		"detail": err.Message,
		"code":   err.Code,
	}
	if len(err.Details) > 0 {
		body["details"] = err.Details
	}
	writeJSON(w, err.HTTPStatus, body)
}
