package domain

import "context"

// Backend sends one user message to a chat service and waits for the answer.
// Failures it can classify are returned as *DispatchError.
type Backend interface {
	Chat(ctx context.Context, text string) (*Reply, error)
}

// MessageStore is the ordered, append-only transcript of one session.
type MessageStore interface {
	Append(msg *Message) error
	// List returns the messages in insertion order. The slice is a copy.
	List() ([]*Message, error)
	Clear() error
}

// DispatchRecorder keeps a log of finished dispatches.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, rec *DispatchRecord) error
	// RecentDispatches returns up to limit records, newest first.
	RecentDispatches(ctx context.Context, limit int) ([]*DispatchRecord, error)
}
