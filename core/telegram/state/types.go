package state

import tele "gopkg.in/telebot.v4"

// Flow identifies a multi-step conversation.
type Flow string

// State identifies a finite-state-machine step within a flow.
type State string

const (
	// StateIdle indicates there is no active conversation for the key.
	StateIdle State = "idle"
)

// Key addresses one conversation session.
type Key struct {
	ChatID int64
	UserID int64
}

// Session stores conversation state and flow-local scratch data.
// Scratch is owned by the flow that created the session; handlers
// assert it back to their own scratch type.
type Session struct {
	Flow    Flow
	State   State
	Scratch any
}

// Manager orchestrates conversation sessions and FSM state transitions.
type Manager interface {
	// Begin creates (or replaces) the session for the key.
	Begin(key Key, flow Flow, st State, scratch any)
	// Get returns the session for the key if one is active.
	Get(key Key) (*Session, bool)
	// SetState advances the session to the given state; no-op without a session.
	SetState(key Key, st State)
	// Clear destroys the session for the key.
	Clear(key Key)
	// InProgress reports whether the key has an active session.
	InProgress(key Key) bool

	// RegisterHandler associates a state with its handler.
	RegisterHandler(st State, h tele.HandlerFunc)
	// Dispatch executes the handler registered for the current state, if any.
	Dispatch(c tele.Context) error
}

// KeyFrom builds the session key from an update context.
func KeyFrom(c tele.Context) Key {
	var k Key
	if chat := c.Chat(); chat != nil {
		k.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		k.UserID = user.ID
	}
	return k
}
