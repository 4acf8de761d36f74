package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/store"
)

// UserFinder looks up accounts by username.
type UserFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// TokenResponse is the body returned by Login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresIn   int64  `json:"expires_in"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login returns a handler for POST /token. It accepts a form-encoded body
// or JSON with username and password.
func (i *Issuer) Login(users UserFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
				return
			}
			creds = credentials{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
		}
		if creds.Username == "" || creds.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
			return
		}

		u, err := users.GetUserByUsername(r.Context(), creds.Username)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Error("user lookup failed", "username", creds.Username, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if u == nil || CheckPassword(u.PasswordHash, creds.Password) != nil {
			unauthorized(w, "Incorrect username or password")
			return
		}

		token, s, err := i.Issue(*u)
		if err != nil {
			slog.Error("token issue failed", "username", u.Username, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		slog.Info("user logged in", "username", u.Username, "role", s.Role)
		writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        string(s.Role),
			ExpiresIn:   int64(i.ttl.Seconds()),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
