package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trackforge/authcore"
	"github.com/trackforge/authcore/middleware"
)

type registerRequest struct {
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     authcore.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type logoutAllRequest struct {
	CurrentPassword string `json:"current_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionCountResponse struct {
	Sessions int `json:"sessions"`
}

func newTokenResponse(access, refresh string, expiresIn time.Duration) tokenResponse {
	return tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(expiresIn / time.Second),
	}
}

func (h *Handler) withClientIP(r *http.Request) *http.Request {
	return r.WithContext(authcore.WithClientIP(r.Context(), middleware.ClientIP(r)))
}

// register creates the account and logs it in.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	r = h.withClientIP(r)

	user, err := h.engine.Register(r.Context(), authcore.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	res, err := h.engine.Authenticate(r.Context(), user.Username, body.Password)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, newTokenResponse(res.AccessToken, res.RefreshToken, res.ExpiresIn))
}

// login is gated by the per-IP login window before any password work.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	r = h.withClientIP(r)

	d := h.engine.AllowLogin(r.Context(), middleware.ClientIP(r))
	if !d.Allowed {
		middleware.WriteRateLimited(w, d, h.loginLimit, "Too many login attempts. Please try again later.")
		return
	}

	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.engine.Authenticate(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newTokenResponse(res.AccessToken, res.RefreshToken, res.ExpiresIn))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	r = h.withClientIP(r)

	pair, err := h.engine.Refresh(r.Context(), strings.TrimSpace(body.RefreshToken))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newTokenResponse(pair.AccessToken, pair.RefreshToken, pair.ExpiresIn))
}

// logout revokes the bearer token and, when given, the refresh token. The
// body is optional.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	access, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	h.engine.Logout(r.Context(), access, strings.TrimSpace(body.RefreshToken))

	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out"})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var body logoutAllRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.engine.ConfirmPassword(r.Context(), principal.User.ID, body.CurrentPassword); err != nil {
		writeEngineError(w, r, err)
		return
	}

	count, err := h.engine.LogoutAll(r.Context(), principal.User.ID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Successfully logged out from %d device(s)", count),
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var body changePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	err := h.engine.ChangePassword(r.Context(), principal.User.ID, body.CurrentPassword, body.NewPassword)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{
		Message: "Password changed successfully. Please login again with your new password.",
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, principal.User.Public())
}

func (h *Handler) sessionCount(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	n, err := h.engine.SessionCount(r.Context(), principal.User.ID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, sessionCountResponse{Sessions: n})
}
