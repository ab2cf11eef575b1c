package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/auth"
	"github.com/outlet-pos/api/internal/middleware"
	"github.com/outlet-pos/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeError maps engine errors onto HTTP. Business errors keep their code
// and reason; unknown ids become 404.
func writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrOverrideRejected) {
		writeJSON(w, http.StatusForbidden, map[string]string{"code": string(apperr.KindValidation), "error": "manager override rejected"})
		return
	}
	if e, ok := apperr.As(err); ok {
		if e.Kind == apperr.KindUnavailable {
			log.Printf("ERROR: %s: %v", op, err)
		}
		writeJSON(w, apperr.HTTPStatus(e.Kind), map[string]string{"code": string(e.Kind), "error": e.Reason})
		return
	}
	for _, nf := range []error{service.ErrOrderNotFound, service.ErrItemNotFound, service.ErrTableNotFound, service.ErrAttemptNotFound} {
		if errors.Is(err, nf) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
	}
	if errors.Is(err, service.ErrNoActiveOrder) {
		writeJSON(w, http.StatusConflict, map[string]string{"code": string(apperr.KindConflict), "error": err.Error()})
		return
	}
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// uuidParam parses a uuid route parameter, answering 400 on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return uuid.Nil, false
	}
	return id, true
}

// requireClaims returns the caller's claims, answering 401 when absent.
func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
