package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	"chathub/pkg/logger"
)

// Visibility overlay: per-user set of hidden conversation partners. Hiding
// is one-directional and read-time only; the underlying messages are
// untouched and the counterpart still sees them. There is no unhide.

const hiddenPrefix = "hidden:"

// hiddenScanPrefix length-prefixes the owner's name so a ':' inside a
// username cannot alias one user's overlay entries into another's.
func hiddenScanPrefix(username string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", hiddenPrefix, len(username), username))
}

func hiddenKey(username, other string) []byte {
	return append(hiddenScanPrefix(username), other...)
}

// Hide records that username no longer wants to see private messages
// exchanged with other. Idempotent; persisted synchronously.
func Hide(username, other string) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	ts := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	if err := db.Set(hiddenKey(username, other), []byte(ts), pebble.Sync); err != nil {
		logger.Error("hide_failed", "user", username, "other", other, "error", err)
		return err
	}
	logger.Debug("conversation_hidden", "user", username, "other", other)
	return nil
}

// IsHidden reports whether username has hidden its conversation with other.
func IsHidden(username, other string) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("store not opened; call store.Open first")
	}
	_, closer, err := db.Get(hiddenKey(username, other))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// HiddenFor returns the set of counterparts username has hidden.
func HiddenFor(username string) (map[string]struct{}, error) {
	if db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}
	prefix := hiddenScanPrefix(username)
	// the prefix ends in ':'; ';' is the next byte, so it bounds the scan
	upper := append([]byte(nil), prefix...)
	upper[len(upper)-1] = ';'
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make(map[string]struct{})
	for iter.First(); iter.Valid(); iter.Next() {
		out[string(iter.Key()[len(prefix):])] = struct{}{}
	}
	return out, iter.Error()
}
