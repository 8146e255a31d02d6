package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"chathub/pkg/logger"
	"chathub/pkg/models"
)

// Account and blacklist persistence. The account layer in pkg/accounts owns
// the policy (reserved names, hashing); this file is plain storage.

const (
	accountPrefix   = "account:"
	blacklistPrefix = "blacklist:"
)

// SaveAccount persists an account record, overwriting any previous one.
func SaveAccount(a models.Account) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal account %s: %w", a.Username, err)
	}
	if err := db.Set([]byte(accountPrefix+a.Username), b, pebble.Sync); err != nil {
		logger.Error("save_account_failed", "user", a.Username, "error", err)
		return err
	}
	return nil
}

// GetAccount returns the stored account for username or ErrNotFound.
func GetAccount(username string) (models.Account, error) {
	if db == nil {
		return models.Account{}, fmt.Errorf("store not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(accountPrefix + username))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, err
	}
	defer closer.Close()
	var a models.Account
	if err := json.Unmarshal(v, &a); err != nil {
		return models.Account{}, fmt.Errorf("invalid stored account %s: %w", username, err)
	}
	return a, nil
}

// DeleteAccount removes the account record. Missing accounts are a no-op.
func DeleteAccount(username string) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if err := db.Delete([]byte(accountPrefix+username), pebble.Sync); err != nil {
		logger.Error("delete_account_failed", "user", username, "error", err)
		return err
	}
	return nil
}

// ListAccountNames returns every registered username in key order.
func ListAccountNames() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(accountPrefix),
		UpperBound: []byte(accountPrefix[:len(accountPrefix)-1] + ";"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, strings.TrimPrefix(string(iter.Key()), accountPrefix))
	}
	return out, iter.Error()
}

// Blacklist adds username to the permanent deleted-account blacklist. Names
// on the blacklist can never rejoin or re-register.
func Blacklist(username string) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if err := db.Set([]byte(blacklistPrefix+username), []byte("1"), pebble.Sync); err != nil {
		logger.Error("blacklist_failed", "user", username, "error", err)
		return err
	}
	logger.Info("user_blacklisted", "user", username)
	return nil
}

// IsBlacklisted reports whether username was deleted by an admin.
func IsBlacklisted(username string) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("store not opened; call store.Open first")
	}
	_, closer, err := db.Get([]byte(blacklistPrefix + username))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}
