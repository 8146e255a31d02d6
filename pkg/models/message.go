package models

// Message is a single chat message. Group and private messages share one
// monotonic id space so ReplyTo can reference either kind.
type Message struct {
	ID     int64  `json:"id"`
	Sender string `json:"sender"`
	// Receiver is empty for group messages.
	Receiver string `json:"receiver,omitempty"`
	Body     string `json:"message"`
	// TS is the creation timestamp (ns).
	TS        int64 `json:"ts"`
	IsPrivate bool  `json:"isPrivate,omitempty"`
	// ReplyTo references another message id; zero means no parent. The
	// reference stays valid even after the parent is soft-deleted.
	ReplyTo int64 `json:"replyTo,omitempty"`
	// Edited is one-way: once set it is never cleared.
	Edited bool `json:"edited,omitempty"`
	// Deleted marks a soft-deleted message: body cleared, flag permanent.
	Deleted bool `json:"deleted,omitempty"`
}

// Between reports whether m is a private message strictly between a and b.
func (m Message) Between(a, b string) bool {
	if !m.IsPrivate {
		return false
	}
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

// Counterpart returns the other party of a private message from the point of
// view of user, or the empty string for group messages.
func (m Message) Counterpart(user string) string {
	if !m.IsPrivate {
		return ""
	}
	if m.Sender == user {
		return m.Receiver
	}
	return m.Sender
}

// PresenceInfo is the public presence view of a user.
type PresenceInfo struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Account is a registered user record as persisted by the store. The
// credential is a bcrypt hash, never the plain password.
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedTS    int64  `json:"created_ts"`
}

// TypingScope describes what a user is currently typing into: the group
// channel, or a private conversation with Peer.
type TypingScope struct {
	Private bool   `json:"private,omitempty"`
	Peer    string `json:"peer,omitempty"`
}
