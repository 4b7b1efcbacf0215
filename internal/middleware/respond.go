package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/openquant/tradehook/internal/errors"
)

// writeError emits the service error envelope. Middleware rejections use the
// same wire shape as handler errors so clients parse one format.
func writeError(w http.ResponseWriter, err *errors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)

	body := map[string]interface{}{
		"status": "error",
		"detail": err.Message,
		"code":   err.Code,
	}
	if len(err.Details) > 0 {
		body["details"] = err.Details
	}
	_ = json.NewEncoder(w).Encode(body)
}
