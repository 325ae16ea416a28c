package httpapi

import (
	"fmt"
	"net/http"

	"simantu.org/internal/audit"
	"simantu.org/internal/auth"
	"simantu.org/internal/ids"
)

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermUsersRead) {
			return
		}
		accounts, err := a.auth.ListAccounts(r.Context())
		if err != nil {
			handleServiceError(w, r, "account", err)
			return
		}
		if accounts == nil {
			accounts = []auth.Account{}
		}
		writeJSON(w, http.StatusOK, accounts)
	case http.MethodPost:
		if !a.ensurePermissions(w, r, auth.PermUsersWrite) {
			return
		}
		var req auth.AccountInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		account, err := a.auth.CreateAccount(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, "account", err)
			return
		}
		a.audit(r.Context(), audit.EventUserCreate, map[string]any{
			"target_id": account.ID,
			"email":     account.Email,
			"role_id":   account.RoleID,
		})
		w.Header().Set("Location", fmt.Sprintf("/api/users/%s", account.ID))
		writeJSON(w, http.StatusCreated, account)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermUsersRead) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		account, err := a.auth.GetAccount(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, "account", err)
			return
		}
		writeJSON(w, http.StatusOK, account)
	case http.MethodPut:
		if !a.ensurePermissions(w, r, auth.PermUsersWrite) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		var req auth.AccountPatch
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		account, err := a.auth.UpdateAccount(r.Context(), id, req)
		if err != nil {
			handleServiceError(w, r, "account", err)
			return
		}
		a.audit(r.Context(), audit.EventUserUpdate, map[string]any{
			"target_id":        id,
			"password_changed": req.Password != nil,
		})
		writeJSON(w, http.StatusOK, account)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, auth.PermUsersWrite) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		actorID, _ := auth.AccountIDFromContext(r.Context())
		if err := a.auth.DeleteAccount(r.Context(), actorID, id); err != nil {
			handleServiceError(w, r, "account", err)
			return
		}
		a.audit(r.Context(), audit.EventUserDelete, map[string]any{"target_id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermRolesRead) {
			return
		}
		roles, err := a.auth.ListRoles(r.Context())
		if err != nil {
			handleServiceError(w, r, "role", err)
			return
		}
		if roles == nil {
			roles = []auth.Role{}
		}
		writeJSON(w, http.StatusOK, roles)
	case http.MethodPost:
		if !a.ensurePermissions(w, r, auth.PermRolesWrite) {
			return
		}
		var req auth.RoleInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.CreateRole(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, "role", err)
			return
		}
		a.audit(r.Context(), audit.EventRoleCreate, map[string]any{
			"target_id":   role.ID,
			"name":        role.Name,
			"permissions": role.Permissions,
		})
		w.Header().Set("Location", fmt.Sprintf("/api/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermRolesRead) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "role not found")
			return
		}
		role, err := a.auth.GetRole(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, "role", err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		if !a.ensurePermissions(w, r, auth.PermRolesWrite) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "role not found")
			return
		}
		var req auth.RolePatch
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.UpdateRole(r.Context(), id, req)
		if err != nil {
			handleServiceError(w, r, "role", err)
			return
		}
		a.audit(r.Context(), audit.EventRoleUpdate, map[string]any{
			"target_id":   id,
			"permissions": role.Permissions,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, auth.PermRolesWrite) {
			return
		}
		if !ids.Valid(id) {
			writeError(w, r, http.StatusNotFound, "role not found")
			return
		}
		if err := a.auth.DeleteRole(r.Context(), id); err != nil {
			handleServiceError(w, r, "role", err)
			return
		}
		a.audit(r.Context(), audit.EventRoleDelete, map[string]any{"target_id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
