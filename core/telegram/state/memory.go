package state

import (
	"sync"

	"github.com/Edaad/gg-support-bot/core/logger"
	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager constructs an in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[Key]*Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Begin creates or replaces the session for the key.
func (m *memoryManager) Begin(key Key, flow Flow, st State, scratch any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = &Session{Flow: flow, State: st, Scratch: scratch}
}

// Get returns a copy-safe pointer to the session for the key if one is active.
func (m *memoryManager) Get(key Key) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	return sess, ok
}

// SetState advances the session to the given state.
func (m *memoryManager) SetState(key Key, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[key]; ok {
		sess.State = st
	}
}

// Clear removes the session for the key.
func (m *memoryManager) Clear(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// InProgress reports whether the key currently has an active session.
func (m *memoryManager) InProgress(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	return ok && sess.State != StateIdle
}

// RegisterHandler associates a state with its handler.
func (m *memoryManager) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// Dispatch executes the handler registered for the session's current state, if any.
func (m *memoryManager) Dispatch(c tele.Context) error {
	key := KeyFrom(c)

	m.mu.RLock()
	sess, ok := m.sessions[key]
	var current State
	var flow Flow
	if ok {
		current = sess.State
		flow = sess.Flow
	}
	handler := m.handlers[current]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "flow", "fsm.dispatch",
		slog.String("status", "ok"),
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
		slog.String("flow", string(flow)),
		slog.String("state", string(current)),
	)

	if handler != nil {
		return handler(c)
	}
	return nil
}
