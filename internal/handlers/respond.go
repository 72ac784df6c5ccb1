package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/maneesh/filevault/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("filevault-handlers")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

// writeError translates the error taxonomy to HTTP. Validation reasons are
// surfaced verbatim; storage details stay in server logs.
func writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Reason})
	case errors.Is(err, models.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	default:
		log.Printf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
	}
}
