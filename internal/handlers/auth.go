package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xelth-com/argoxlabels/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Password string `json:"password"`
}

// login exchanges the admin password for a session token
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	if r.opts.AdminHash == "" {
		respondError(w, http.StatusServiceUnavailable, "Admin login is disabled (ADMIN_PASSWORD_HASH not set)")
		return
	}

	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !utils.CheckPasswordHash(loginReq.Password, r.opts.AdminHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expires, err := utils.GenerateAdminToken(r.opts.JWTSecret, utils.AdminTokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expires.UTC(),
	})
}
