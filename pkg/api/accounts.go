package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"chathub/pkg/accounts"
	"chathub/pkg/logger"
	"chathub/pkg/utils"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.accounts.Register(c.Username, c.Password); err != nil {
		utils.JSONError(w, http.StatusBadRequest, registerMessage(err))
		return
	}
	utils.JSONSuccess(w)
}

func registerMessage(err error) string {
	switch {
	case errors.Is(err, accounts.ErrEmptyField):
		return "Username and password required"
	case errors.Is(err, accounts.ErrReserved):
		return "Reserved username"
	case errors.Is(err, accounts.ErrBlacklisted):
		return "This account has been deleted by admin and cannot be re-registered."
	case errors.Is(err, accounts.ErrExists):
		return "Username already exists"
	default:
		return "registration failed"
	}
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.accounts.Authenticate(c.Username, c.Password); err != nil {
		logger.Debug("login_rejected", "user", c.Username, "reason", err)
		utils.JSONError(w, http.StatusBadRequest, loginMessage(err))
		return
	}
	utils.JSONSuccess(w)
}

func loginMessage(err error) string {
	switch {
	case errors.Is(err, accounts.ErrBlacklisted):
		return "This account has been deleted by admin and cannot be used."
	case errors.Is(err, accounts.ErrUnknownUser):
		return "User does not exist"
	case errors.Is(err, accounts.ErrInvalidCredential):
		return "Invalid password"
	default:
		return "login failed"
	}
}

func (a *API) registeredUsers(w http.ResponseWriter, _ *http.Request) {
	names, err := a.accounts.ListUsernames()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, names)
}

func (a *API) onlineUsers(w http.ResponseWriter, _ *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, a.hub.Presence().OnlineList())
}
