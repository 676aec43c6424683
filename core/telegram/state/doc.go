// Package state provides a lightweight FSM/session manager for Telegram bots.
// Sessions are keyed by (chat, user) so the same user can hold independent
// conversations in different chats.
package state
