package httpadapter

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"trustscan/internal/domain"
	"trustscan/internal/ratelimit"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a JSON body into dst. Malformed bodies are input errors.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid(domain.ErrInvalidInput, "Invalid JSON body")
	}
	return nil
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *ratelimit.RejectedError
	if errors.As(err, &rejected) {
		retry := int(math.Ceil(time.Until(rejected.ResetAt).Seconds()))
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: rejected.Error()})
		return
	}

	var input *domain.InputError
	switch {
	case errors.As(err, &input):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: input.Reason})
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmailTaken):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid credentials"})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}
