package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"chathub/pkg/logger"
	"chathub/pkg/models"
)

// Sentinel errors surfaced by mutating operations. The protocol boundary
// absorbs them silently; the HTTP surface maps them to status codes.
var (
	ErrNotFound      = errors.New("message not found")
	ErrNotAuthorized = errors.New("requester is not the message sender")
)

var (
	db     *pebble.DB
	dbPath string

	// idMu guards lastID allocation. Message ids are strictly increasing and
	// shared across group and private messages.
	idMu   sync.Mutex
	lastID int64
)

const (
	msgPrefix = "msg:"
	// msgPrefixEnd sorts just after every msgPrefix key (';' follows ':').
	msgPrefixEnd = "msg;"
	lastIDKey    = "meta:lastid"
	msgKeyTmpl   = "msg:%020d"
)

func msgKey(id int64) []byte {
	return []byte(fmt.Sprintf(msgKeyTmpl, id))
}

// Open opens (or creates) a pebble database at the given path and hydrates
// the message id counter from the stored image.
func Open(path string) error {
	var err error
	logger.Info("opening_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	if err := hydrateLastID(); err != nil {
		_ = db.Close()
		db = nil
		return fmt.Errorf("hydrate id counter: %w", err)
	}
	logger.Info("store_opened", "path", path, "last_id", lastID)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("store_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// hydrateLastID recovers the id counter as the max of the persisted counter
// and the highest stored message key. A crash between a message write and
// the counter write therefore can never hand out a duplicate id.
func hydrateLastID() error {
	idMu.Lock()
	defer idMu.Unlock()
	lastID = 0
	if v, closer, err := db.Get([]byte(lastIDKey)); err == nil {
		if n, perr := strconv.ParseInt(string(v), 10, 64); perr == nil {
			lastID = n
		}
		_ = closer.Close()
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(msgPrefix),
		UpperBound: []byte(msgPrefixEnd),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	if iter.Last() && bytes.HasPrefix(iter.Key(), []byte(msgPrefix)) {
		if n, perr := strconv.ParseInt(strings.TrimPrefix(string(iter.Key()), msgPrefix), 10, 64); perr == nil && n > lastID {
			lastID = n
		}
	}
	return iter.Error()
}

// nextID allocates the next message id and persists the counter.
func nextID() (int64, error) {
	idMu.Lock()
	defer idMu.Unlock()
	id := lastID + 1
	if err := db.Set([]byte(lastIDKey), []byte(strconv.FormatInt(id, 10)), pebble.Sync); err != nil {
		return 0, err
	}
	lastID = id
	return id, nil
}

// Append stores a new message and returns it with its allocated id and
// timestamp. receiver is empty for group messages. replyTo of zero means no
// parent; a non-zero replyTo is stored as-is even if the parent is later
// deleted. The write is synced to disk before Append returns.
func Append(sender, body string, replyTo int64, receiver string) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("store not opened; call store.Open first")
	}
	id, err := nextID()
	if err != nil {
		logger.Error("append_id_alloc_failed", "sender", sender, "error", err)
		return models.Message{}, err
	}
	m := models.Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		TS:        time.Now().UTC().UnixNano(),
		IsPrivate: receiver != "",
		ReplyTo:   replyTo,
	}
	if err := putMessage(m); err != nil {
		logger.Error("append_failed", "id", id, "sender", sender, "error", err)
		return models.Message{}, err
	}
	logger.Debug("message_appended", "id", id, "sender", sender, "private", m.IsPrivate)
	return m, nil
}

// Get returns the stored message for id, deleted or not.
func Get(id int64) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("store not opened; call store.Open first")
	}
	v, closer, err := db.Get(msgKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid stored message %d: %w", id, err)
	}
	return m, nil
}

// Edit rewrites the body of a message. Only the original sender may edit,
// and a soft-deleted message can no longer be edited (reported as not
// found). The edited flag is one-way.
func Edit(id int64, requester, newBody string) (models.Message, error) {
	m, err := Get(id)
	if err != nil {
		return models.Message{}, err
	}
	if m.Deleted {
		return models.Message{}, ErrNotFound
	}
	if m.Sender != requester {
		return models.Message{}, ErrNotAuthorized
	}
	m.Body = newBody
	m.Edited = true
	if err := putMessage(m); err != nil {
		logger.Error("edit_persist_failed", "id", id, "error", err)
		return models.Message{}, err
	}
	logger.Debug("message_edited", "id", id, "sender", requester)
	return m, nil
}

// SoftDelete clears the body and sets the permanent deleted flag. Only the
// original sender may delete. Deleting an already-deleted message is a
// no-op success.
func SoftDelete(id int64, requester string) (models.Message, error) {
	m, err := Get(id)
	if err != nil {
		return models.Message{}, err
	}
	if m.Sender != requester {
		return models.Message{}, ErrNotAuthorized
	}
	if m.Deleted {
		return m, nil
	}
	m.Body = ""
	m.Deleted = true
	if err := putMessage(m); err != nil {
		logger.Error("soft_delete_persist_failed", "id", id, "error", err)
		return models.Message{}, err
	}
	logger.Debug("message_soft_deleted", "id", id, "sender", requester)
	return m, nil
}

// EraseConversation physically removes every private message strictly
// between the two usernames, for both sides. This is stronger than the
// visibility overlay: neither party sees the thread afterwards. Returns the
// number of erased messages.
func EraseConversation(userA, userB string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("store not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(msgPrefix),
		UpperBound: []byte(msgPrefixEnd),
	})
	if err != nil {
		return 0, err
	}
	var doomed [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.Between(userA, userB) {
			doomed = append(doomed, append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	// one synced batch so an I/O failure cannot leave a half-erased thread
	batch := db.NewBatch()
	defer func() { _ = batch.Close() }()
	for _, k := range doomed {
		if err := batch.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("erase_conversation_commit_failed", "user_a", userA, "user_b", userB, "error", err)
		return 0, err
	}
	logger.Info("conversation_erased", "user_a", userA, "user_b", userB, "count", len(doomed))
	return len(doomed), nil
}

// HistoryFor returns, in insertion (= id) order, every message visible to
// username: soft-deleted messages never, private messages only when the
// reader is a participant and has not hidden the counterpart.
func HistoryFor(username string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}
	hidden, err := HiddenFor(username)
	if err != nil {
		return nil, err
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(msgPrefix),
		UpperBound: []byte(msgPrefixEnd),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("history_skip_invalid_record", "key", string(iter.Key()), "error", err)
			continue
		}
		if m.Deleted {
			continue
		}
		if m.IsPrivate {
			if m.Sender != username && m.Receiver != username {
				continue
			}
			if _, ok := hidden[m.Counterpart(username)]; ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

func putMessage(m models.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %d: %w", m.ID, err)
	}
	return db.Set(msgKey(m.ID), b, pebble.Sync)
}
