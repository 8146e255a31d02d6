package api

import (
	"net/http"

	"chathub/pkg/logger"
	"chathub/pkg/models"
	"chathub/pkg/store"
	"chathub/pkg/utils"
)

// history serves the filtered per-reader history: soft-deleted messages
// never appear, private messages only for participants, and the reader's
// visibility overlay is applied.
func (a *API) history(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		utils.JSONError(w, http.StatusBadRequest, "username required")
		return
	}
	msgs, err := store.HistoryFor(username)
	if err != nil {
		logger.Error("history_fetch_failed", "user", username, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	logger.Debug("history_served", "user", username, "count", len(msgs))
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}
