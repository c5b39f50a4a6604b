package domain

import "time"

// Source is a piece of supporting material cited by an assistant reply.
type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one turn in a chat transcript. It is never mutated after it
// has been appended to a MessageStore.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Content   string
	CreatedAt Timestamp

	// Sources is only set on assistant messages.
	Sources []Source
}

// Reply is a successful answer from a chat backend.
type Reply struct {
	Text    string
	Sources []Source
}

// State is the ephemeral UI state of one chat session.
type State struct {
	IsOpen    bool
	IsLoading bool
	Error     string // empty when there is no error
}

// DispatchRecord describes one finished request/response cycle.
// It carries no message content.
type DispatchRecord struct {
	ID        DispatchID
	SessionID SessionID
	StartedAt Timestamp
	Duration  time.Duration
	Outcome   string // "ok" or an ErrorKind
	Status    int    // HTTP status when one was received
	Stale     bool
}

const (
	// OutcomeOK is the DispatchRecord outcome of a successful dispatch.
	OutcomeOK = "ok"
	// OutcomeAbandoned marks a dispatch whose session was closed or
	// cleared before it finished.
	OutcomeAbandoned = "abandoned"
)
