// Package accounts implements the account store: registration, credential
// checks and admin deletion. The reserved admin identity bypasses the
// persisted records entirely.
package accounts

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chathub/pkg/logger"
	"chathub/pkg/models"
	"chathub/pkg/store"
)

var (
	ErrExists            = errors.New("username already exists")
	ErrReserved          = errors.New("username is reserved")
	ErrBlacklisted       = errors.New("account was deleted by admin")
	ErrUnknownUser       = errors.New("user does not exist")
	ErrInvalidCredential = errors.New("invalid password")
	ErrEmptyField        = errors.New("username and password required")
)

// Service enforces account policy over the store. AdminUser authenticates
// against AdminPassword only, is never persisted, and cannot be deleted.
type Service struct {
	AdminUser     string
	AdminPassword string
}

// New returns a Service with the given reserved admin identity.
func New(adminUser, adminPassword string) *Service {
	return &Service{AdminUser: adminUser, AdminPassword: adminPassword}
}

// Register creates a new account. Reserved and blacklisted names are never
// creatable; the password is stored as a bcrypt hash.
func (s *Service) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrEmptyField
	}
	if username == s.AdminUser {
		return ErrReserved
	}
	black, err := store.IsBlacklisted(username)
	if err != nil {
		return err
	}
	if black {
		return ErrBlacklisted
	}
	if _, err := store.GetAccount(username); err == nil {
		return ErrExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a := models.Account{
		Username:     username,
		PasswordHash: string(hash),
		CreatedTS:    time.Now().UTC().UnixNano(),
	}
	if err := store.SaveAccount(a); err != nil {
		return err
	}
	logger.Info("account_registered", "user", username)
	return nil
}

// Authenticate verifies a username/password pair. The admin identity is
// checked against the fixed configured credential before the store.
func (s *Service) Authenticate(username, password string) error {
	if username == s.AdminUser {
		if password == s.AdminPassword {
			return nil
		}
		return ErrInvalidCredential
	}
	black, err := store.IsBlacklisted(username)
	if err != nil {
		return err
	}
	if black {
		return ErrBlacklisted
	}
	a, err := store.GetAccount(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredential
	}
	return nil
}

// ListUsernames returns every registered username.
func (s *Service) ListUsernames() ([]string, error) {
	return store.ListAccountNames()
}

// Delete removes the account and adds the name to the permanent blacklist.
// The admin identity cannot be deleted. Forced logout of a live connection
// is the hub's job; callers route deletion through it.
func (s *Service) Delete(username string) error {
	if username == "" || username == s.AdminUser {
		return ErrReserved
	}
	if _, err := store.GetAccount(username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	if err := store.DeleteAccount(username); err != nil {
		return err
	}
	if err := store.Blacklist(username); err != nil {
		return err
	}
	logger.Info("account_deleted", "user", username)
	return nil
}

// IsAdmin reports whether username is the reserved admin identity.
func (s *Service) IsAdmin(username string) bool {
	return username == s.AdminUser
}
