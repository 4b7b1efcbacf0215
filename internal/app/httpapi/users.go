package httpapi

import (
	"net/http"
	"strings"

	"github.com/openquant/tradehook/internal/app/services/accounts"
	"github.com/openquant/tradehook/internal/errors"
)

type createUserRequest struct {
	Username string `json:"username"`
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		created, err := h.accounts.CreateUser(r.Context(), req.Username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"status": "success",
			"user":   created,
		})

	case http.MethodGet:
		users, err := h.accounts.ListUsers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"users":  users,
		})

	default:
		writeError(w, errors.MethodNotAllowed(r.Method))
	}
}

// handleUserSubtree dispatches /users/{username} and
// /users/{username}/accounts.
func (h *Handler) handleUserSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	segments := strings.Split(rest, "/")

	switch {
	case len(segments) == 1 && segments[0] != "":
		h.handleUser(w, r, segments[0])
	case len(segments) == 2 && segments[0] != "" && segments[1] == "accounts":
		h.handleUserAccounts(w, r, segments[0])
	default:
		writeError(w, errors.NotFound("not found"))
	}
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request, username string) {
	switch r.Method {
	case http.MethodGet:
		u, err := h.accounts.GetUser(r.Context(), username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"user":   u,
		})

	case http.MethodDelete:
		if err := h.accounts.DeleteUser(r.Context(), username); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
		})

	default:
		writeError(w, errors.MethodNotAllowed(r.Method))
	}
}

func (h *Handler) handleUserAccounts(w http.ResponseWriter, r *http.Request, username string) {
	switch r.Method {
	case http.MethodPost:
		var in accounts.CreateAccountInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		created, err := h.accounts.CreateAccount(r.Context(), username, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"status":  "success",
			"account": created,
		})

	case http.MethodGet:
		accts, err := h.accounts.ListAccounts(r.Context(), username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "success",
			"accounts": accts,
		})

	default:
		writeError(w, errors.MethodNotAllowed(r.Method))
	}
}

// handleAccountSubtree dispatches /accounts/{id} and /accounts/{id}/verify.
func (h *Handler) handleAccountSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/accounts/")
	segments := strings.Split(rest, "/")

	switch {
	case len(segments) == 1 && segments[0] != "":
		h.handleAccount(w, r, segments[0])
	case len(segments) == 2 && segments[0] != "" && segments[1] == "verify":
		h.handleAccountVerify(w, r, segments[0])
	default:
		writeError(w, errors.NotFound("not found"))
	}
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		acct, err := h.accounts.GetAccount(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"account": acct,
		})

	case http.MethodPatch:
		var in accounts.UpdateAccountInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		updated, err := h.accounts.UpdateAccount(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"account": updated,
		})

	default:
		writeError(w, errors.MethodNotAllowed(r.Method))
	}
}

func (h *Handler) handleAccountVerify(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	acct, err := h.accounts.VerifyAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"account": acct,
	})
}
