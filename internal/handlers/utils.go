package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/securebank/backoffice/internal/services"
	"github.com/securebank/backoffice/types"
)

type contextKey string

const contextSessionKey contextKey = "session"

const maxRequestBytes = 1 << 20

func withSession(ctx context.Context, session *types.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, session)
}

// sessionFromContext returns the session placed by RequireSession, or nil.
func sessionFromContext(ctx context.Context) *types.Session {
	session, _ := ctx.Value(contextSessionKey).(*types.Session)
	return session
}

var kindStatus = map[services.Kind]int{
	services.KindInvalidInput:        http.StatusBadRequest,
	services.KindInvalidCredentials:  http.StatusUnauthorized,
	services.KindAccountDisabled:     http.StatusForbidden,
	services.KindDeliveryFailed:      http.StatusBadGateway,
	services.KindChallengeNotFound:   http.StatusUnauthorized,
	services.KindChallengeExpired:    http.StatusUnauthorized,
	services.KindChallengeMismatch:   http.StatusUnauthorized,
	services.KindUnauthenticated:     http.StatusUnauthorized,
	services.KindForbidden:           http.StatusForbidden,
	services.KindMissingFields:       http.StatusBadRequest,
	services.KindInvalidAmount:       http.StatusBadRequest,
	services.KindSameAccount:         http.StatusBadRequest,
	services.KindSourceNotFound:      http.StatusNotFound,
	services.KindDestinationNotFound: http.StatusNotFound,
	services.KindInsufficientFunds:   http.StatusBadRequest,
	services.KindTransactionFailed:   http.StatusInternalServerError,
	services.KindStoreUnavailable:    http.StatusServiceUnavailable,
}

func statusOf(err error) int {
	if status, ok := kindStatus[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError renders a service failure with its kind and safe message.
func writeServiceError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), ErrorResponse{
		Error: services.MessageOf(err),
		Code:  string(services.KindOf(err)),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(dst)
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// flexString accepts a JSON string or number and keeps its text. Null and
// absent values decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(raw)
	return nil
}

// flexID accepts an account id as a JSON number or numeric string. Anything
// unparsable decodes to 0, which the services treat as missing.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexID(id)
	return nil
}
