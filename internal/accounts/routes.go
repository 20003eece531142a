package accounts

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/audit"
)

// RegisterRoutes mounts the auth flow under /api/auth and user
// administration under /api/users.
func RegisterRoutes(r chi.Router, svc *Service, guard *Guard, auditStore *audit.Store) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", handleSignup(svc))
		r.Post("/verify", handleVerify(svc))
		r.Post("/resend", handleResend(svc))
		r.Post("/login", handleLogin(svc))

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(RoleViewer))
			r.Get("/me", handleMe())
			r.Post("/logout", handleLogout(svc))
		})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(guard.Require(RoleAdmin))
		r.Get("/", handleListUsers(svc.Store()))
		r.Get("/{id}", handleGetUser(svc.Store()))
		r.Put("/{id}/role", handleSetRole(svc.Store(), auditStore))
		r.Put("/{id}/status", handleSetStatus(svc.Store(), auditStore))
		r.Delete("/{id}", handleDeleteUser(svc.Store(), auditStore))
	})
}

func handleSignup(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		u, err := svc.Signup(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"user":    u,
			"message": "verification code sent",
		})
	}
}

func handleVerify(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		u, err := svc.Verify(r.Context(), req.Email, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func handleResend(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		if err := svc.Resend(r.Context(), req.Email); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

func handleLogin(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    res.Token,
			Path:     "/",
			Expires:  res.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, res)
	}
}

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		writeJSON(w, http.StatusOK, u)
	}
}

func handleLogout(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := BearerToken(r); token != "" {
			if err := svc.Logout(r.Context(), token); err != nil {
				writeError(w, err)
				return
			}
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListUsers(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := store.ListUsers(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func handleGetUser(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := store.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if u == nil {
			writeError(w, ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func handleSetRole(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Role Role `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Role.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be viewer, editor or admin"})
			return
		}
		if isSelf(r, id) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot change your own role"})
			return
		}

		if err := store.SetRole(r.Context(), id, req.Role); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), ActorID(r.Context()), audit.ActionUserRoleChanged, audit.ScopeUser, id, "role set to "+string(req.Role))
		handleGetUser(store)(w, r)
	}
}

func handleSetStatus(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Status Status `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be pending, active or disabled"})
			return
		}
		if isSelf(r, id) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot change your own status"})
			return
		}

		if err := store.SetStatus(r.Context(), id, req.Status); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), ActorID(r.Context()), audit.ActionUserStatusChanged, audit.ScopeUser, id, "status set to "+string(req.Status))
		handleGetUser(store)(w, r)
	}
}

func handleDeleteUser(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if isSelf(r, id) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot delete yourself"})
			return
		}
		if err := store.DeleteUser(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), ActorID(r.Context()), audit.ActionUserDeleted, audit.ScopeUser, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

func isSelf(r *http.Request, id string) bool {
	u, ok := UserFromContext(r.Context())
	return ok && u.ID == id
}

// writeError maps flow errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNotPending):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidCode), errors.Is(err, ErrCodeExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrNotVerified), errors.Is(err, ErrInactive):
		status = http.StatusForbidden
	case errors.Is(err, ErrLocked):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
