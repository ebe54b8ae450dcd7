package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/clinicbook/clinicbook/libs/auth"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/rbac"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type claimsContextKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims
}

// requireAuth verifies the bearer token, checks the role permission and
// pins the request to the token's clinic: a token for one clinic can
// never touch another clinic's path.
func (a *API) requireAuth(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeErrorMsg(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := auth.ParseAndVerifyHS256(token, a.jwtSecret)
		if err != nil {
			writeErrorMsg(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if permission != "" && !rbac.Allowed(claims.Role, permission) {
			writeErrorMsg(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		if pathClinic := r.PathValue("clinicID"); pathClinic != "" && pathClinic != claims.ClinicID {
			writeErrorMsg(w, http.StatusForbidden, "token does not belong to this clinic")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims)))
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	ClinicID  string    `json:"clinic_id"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeErrorMsg(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	a.issueToken(w, r, user)
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, user *model.User) {
	now := time.Now()
	expires := now.Add(a.tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:      user.ID.String(),
		ClinicID: user.ClinicID.String(),
		Role:     user.Role,
		Iat:      now.Unix(),
		Exp:      expires.Unix(),
	}, a.jwtSecret)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expires,
		Role:      user.Role,
		ClinicID:  user.ClinicID.String(),
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleRegister adds a user to the caller's clinic. Only users holding
// manage:users (owners) get here; the new user's clinic comes from the
// token, not the body.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeErrorMsg(w, http.StatusBadRequest, "email is required")
		return
	}
	if len(req.Password) < 8 {
		writeErrorMsg(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !rbac.ValidRole(req.Role) {
		writeErrorMsg(w, http.StatusBadRequest, "unknown role")
		return
	}
	clinicID, err := uuid.Parse(claims.ClinicID)
	if err != nil {
		writeErrorMsg(w, http.StatusUnauthorized, "invalid token claims")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	user := &model.User{
		ID:           uuid.New(),
		ClinicID:     clinicID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		if storage.IsUniqueViolation(err) {
			writeErrorMsg(w, http.StatusConflict, "email already registered")
			return
		}
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
