package state

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type stubCtx struct {
	tele.Context
	chat   *tele.Chat
	sender *tele.User
	kv     map[string]any
}

func (c *stubCtx) Chat() *tele.Chat       { return c.chat }
func (c *stubCtx) Sender() *tele.User     { return c.sender }
func (c *stubCtx) Update() tele.Update    { return tele.Update{ID: 1} }
func (c *stubCtx) Get(k string) any       { return c.kv[k] }
func (c *stubCtx) Set(k string, v any)    { c.kv[k] = v }
func (c *stubCtx) Message() *tele.Message { return nil }

func newStubCtx(chatID, userID int64) *stubCtx {
	return &stubCtx{
		chat:   &tele.Chat{ID: chatID},
		sender: &tele.User{ID: userID},
		kv:     make(map[string]any),
	}
}

func TestSessionLifecycle(t *testing.T) {
	m := NewMemoryManager()
	key := Key{ChatID: 10, UserID: 20}

	if m.InProgress(key) {
		t.Error("fresh manager reports session in progress")
	}

	m.Begin(key, "flow_a", "step_one", nil)
	if !m.InProgress(key) {
		t.Error("session not in progress after Begin")
	}

	sess, ok := m.Get(key)
	if !ok || sess.Flow != "flow_a" || sess.State != "step_one" {
		t.Errorf("Get = %+v, %v", sess, ok)
	}

	m.SetState(key, "step_two")
	sess, _ = m.Get(key)
	if sess.State != "step_two" {
		t.Errorf("state = %q, want step_two", sess.State)
	}

	m.Clear(key)
	if m.InProgress(key) {
		t.Error("session survived Clear")
	}
}

func TestSessionsIsolatedByChatAndUser(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(Key{ChatID: 1, UserID: 1}, "flow_a", "s", nil)

	if m.InProgress(Key{ChatID: 1, UserID: 2}) {
		t.Error("other user sees session")
	}
	if m.InProgress(Key{ChatID: 2, UserID: 1}) {
		t.Error("same user in other chat sees session")
	}
}

func TestDispatchRunsCurrentStateHandler(t *testing.T) {
	m := NewMemoryManager()
	key := Key{ChatID: 3, UserID: 4}

	var ran []string
	m.RegisterHandler("one", func(c tele.Context) error {
		ran = append(ran, "one")
		return nil
	})
	m.RegisterHandler("two", func(c tele.Context) error {
		ran = append(ran, "two")
		return nil
	})

	c := newStubCtx(3, 4)

	// no session: dispatch is a no-op
	if err := m.Dispatch(c); err != nil {
		t.Fatal(err)
	}
	if len(ran) != 0 {
		t.Errorf("handler ran without session: %v", ran)
	}

	m.Begin(key, "f", "one", nil)
	if err := m.Dispatch(c); err != nil {
		t.Fatal(err)
	}
	m.SetState(key, "two")
	if err := m.Dispatch(c); err != nil {
		t.Fatal(err)
	}
	if len(ran) != 2 || ran[0] != "one" || ran[1] != "two" {
		t.Errorf("ran = %v, want [one two]", ran)
	}
}

func TestBeginReplacesSession(t *testing.T) {
	m := NewMemoryManager()
	key := Key{ChatID: 5, UserID: 6}

	m.Begin(key, "flow_a", "s1", "scratch_a")
	m.Begin(key, "flow_b", "s2", "scratch_b")

	sess, _ := m.Get(key)
	if sess.Flow != "flow_b" || sess.State != "s2" {
		t.Errorf("session = %+v, want flow_b/s2", sess)
	}
	if sess.Scratch != "scratch_b" {
		t.Errorf("scratch = %v", sess.Scratch)
	}
}
