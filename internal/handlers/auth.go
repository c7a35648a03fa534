package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/securebank/backoffice/internal/services"
	"github.com/securebank/backoffice/types"
)

const tokenIssuer = "securebank-backoffice"

// AuthHandler provides the two-step login endpoints.
type AuthHandler struct {
	authService *services.AuthService
	secret      []byte
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		secret:      []byte(jwtSecret),
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, jwtSecret string) {
	handler := NewAuthHandler(authService, jwtSecret)

	r.Post("/login", handler.Login)
	r.Post("/verify", handler.Verify)
	r.Post("/logout", handler.Logout)
	r.With(handler.RequireSession).Get("/me", handler.Me)
}

// RequireSession resolves the bearer token to a live session and injects it
// into the request context.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return requireSession(h.authService, h.secret)(next)
}

// RequireSession constructs session middleware for other routers.
func RequireSession(authService *services.AuthService, jwtSecret string) func(http.Handler) http.Handler {
	return requireSession(authService, []byte(jwtSecret))
}

func requireSession(authService *services.AuthService, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveSession(r, authService, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}

func resolveSession(r *http.Request, authService *services.AuthService, secret []byte) (*types.Session, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := parseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	session, err := authService.Session(r.Context(), claims.ID)
	if err != nil {
		return nil, err
	}
	if session.Username != claims.Subject {
		return nil, errors.New("token subject does not match session")
	}
	return session, nil
}

// Login checks the password and sends a one-time code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		MFARequired:   true,
		Message:       "verification code sent",
		MaskedAddress: result.MaskedAddress,
	})
}

// Verify checks the one-time code and returns a session token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.authService.VerifyChallenge(r.Context(), req.Username, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := issueToken(session, h.secret)
	if err != nil {
		h.authService.Logout(r.Context(), &session)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		Username:  session.Username,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout ends the caller's session. It succeeds without one.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := resolveSession(r, h.authService, h.secret)
	h.authService.Logout(r.Context(), session)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	MFARequired   bool   `json:"mfa_required"`
	Message       string `json:"message"`
	MaskedAddress string `json:"email_masked"`
}

type VerifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// issueToken signs a token naming the session. The session store stays
// authoritative: a valid signature alone never grants access.
func issueToken(session types.Session, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   session.Username,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return claims, err
	}
	if !token.Valid {
		return claims, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.ID) == "" || strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("missing session claims")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
