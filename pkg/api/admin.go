package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"chathub/pkg/accounts"
	"chathub/pkg/logger"
	"chathub/pkg/utils"
)

// deleteUser removes an account, blacklists the name forever and force-logs
// out any live connection. The reserved admin identity cannot be deleted.
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.hub.DeleteUser(body.Username); err != nil {
		switch {
		case errors.Is(err, accounts.ErrReserved):
			utils.JSONError(w, http.StatusBadRequest, "Invalid user")
		case errors.Is(err, accounts.ErrUnknownUser):
			utils.JSONError(w, http.StatusBadRequest, "User does not exist")
		default:
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	logger.Info("admin_deleted_account", "user", body.Username)
	utils.JSONSuccess(w)
}

// deletePrivateChat applies the one-sided visibility overlay: the caller
// stops seeing the conversation, the counterpart is unaffected.
func (a *API) deletePrivateChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username  string `json:"username"`
		OtherUser string `json:"otherUser"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Username == "" || body.OtherUser == "" {
		utils.JSONError(w, http.StatusBadRequest, "Missing username or otherUser")
		return
	}
	if err := a.hub.HideConversation(body.Username, body.OtherUser); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONSuccess(w)
}
