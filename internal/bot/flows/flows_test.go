package flows

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Edaad/gg-support-bot/core/telegram/state"
	"github.com/Edaad/gg-support-bot/internal/links"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

// testCtx implements the slice of tele.Context the flows touch.
// Unstubbed methods panic via the embedded nil interface, which makes
// any unexpected transport call fail loudly.
type testCtx struct {
	tele.Context

	chat   *tele.Chat
	sender *tele.User
	msg    *tele.Message
	cb     *tele.Callback
	kv     map[string]any

	sent   []string
	photos []*tele.Photo
	edits  []string
}

func newTestCtx(chat *tele.Chat, sender *tele.User) *testCtx {
	return &testCtx{chat: chat, sender: sender, kv: make(map[string]any)}
}

func (c *testCtx) Chat() *tele.Chat         { return c.chat }
func (c *testCtx) Sender() *tele.User       { return c.sender }
func (c *testCtx) Message() *tele.Message   { return c.msg }
func (c *testCtx) Callback() *tele.Callback { return c.cb }
func (c *testCtx) Update() tele.Update      { return tele.Update{ID: 1} }

func (c *testCtx) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *testCtx) Get(key string) any      { return c.kv[key] }
func (c *testCtx) Set(key string, val any) { c.kv[key] = val }

func (c *testCtx) Send(what any, _ ...any) error {
	switch v := what.(type) {
	case string:
		c.sent = append(c.sent, v)
	case *tele.Photo:
		c.photos = append(c.photos, v)
	}
	return nil
}

func (c *testCtx) Edit(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		c.edits = append(c.edits, s)
	}
	return nil
}

func (c *testCtx) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (c *testCtx) lastSent(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no message sent")
	}
	return c.sent[len(c.sent)-1]
}

// withText resets per-message state so one ctx can play a conversation.
func (c *testCtx) withText(text string) *testCtx {
	c.msg = &tele.Message{Text: text}
	c.cb = nil
	delete(c.kv, "logger_ctx")
	return c
}

func (c *testCtx) withPhoto(fileID, caption string) *testCtx {
	c.msg = &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: fileID}}, Caption: caption}
	c.cb = nil
	delete(c.kv, "logger_ctx")
	return c
}

func (c *testCtx) withSticker() *testCtx {
	c.msg = &tele.Message{Sticker: &tele.Sticker{}}
	c.cb = nil
	delete(c.kv, "logger_ctx")
	return c
}

func (c *testCtx) withCallback(unique, payload string) *testCtx {
	c.msg = nil
	c.cb = &tele.Callback{Data: "\f" + unique + "|" + payload}
	delete(c.kv, "logger_ctx")
	return c
}

var (
	privateChat = &tele.Chat{ID: 1, Type: tele.ChatPrivate}
	groupChat   = &tele.Chat{ID: -100500, Type: tele.ChatGroup}
	alice       = &tele.User{ID: 1}
)

type noopMenu struct {
	userRefreshes  int
	groupRefreshes int
}

func (m *noopMenu) RefreshUser(context.Context, int64)         { m.userRefreshes++ }
func (m *noopMenu) RefreshGroup(context.Context, int64, int64) { m.groupRefreshes++ }

func newDefineEnv(t *testing.T) (*Define, state.Manager, *presets.Store, *noopMenu) {
	t.Helper()
	store := presets.NewStore(nil, presets.NewFileBackend(filepath.Join(t.TempDir(), "p.json")))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	sessions := state.NewMemoryManager()
	m := &noopMenu{}
	d := NewDefine(sessions, store, map[string]struct{}{"stats": {}}, m)
	return d, sessions, store, m
}

func TestDefineTextPreset(t *testing.T) {
	d, sessions, store, m := newDefineEnv(t)
	c := newTestCtx(privateChat, alice)

	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	key := state.Key{ChatID: 1, UserID: 1}
	if !sessions.InProgress(key) {
		t.Fatal("no session after Start")
	}

	if err := sessions.Dispatch(c.withText("promo")); err != nil {
		t.Fatalf("name step: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "Now send the message for /promo") {
		t.Errorf("name step reply = %q", c.lastSent(t))
	}

	if err := sessions.Dispatch(c.withText("Hello\nWorld")); err != nil {
		t.Fatalf("content step: %v", err)
	}
	if sessions.InProgress(key) {
		t.Error("session not cleared after save")
	}

	got, err := store.Lookup(context.Background(), 1, "promo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Kind != presets.KindText || got.Content != "Hello\nWorld" {
		t.Errorf("saved preset = %+v", got)
	}
	if m.userRefreshes != 1 {
		t.Errorf("user menu refreshes = %d, want 1", m.userRefreshes)
	}
}

func TestDefinePhotoPreset(t *testing.T) {
	d, sessions, store, _ := newDefineEnv(t)
	c := newTestCtx(privateChat, alice)

	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("promo")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withPhoto("file123", "Sale!")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Lookup(context.Background(), 1, "promo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Kind != presets.KindPhoto || got.FileID != "file123" || got.Caption != "Sale!" {
		t.Errorf("saved preset = %+v", got)
	}
	if !strings.Contains(c.lastSent(t), "photo command") {
		t.Errorf("confirmation = %q", c.lastSent(t))
	}
}

func TestDefineNameValidationLoops(t *testing.T) {
	d, sessions, _, _ := newDefineEnv(t)
	c := newTestCtx(privateChat, alice)
	key := state.Key{ChatID: 1, UserID: 1}

	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		input string
		want  string
	}{
		{"ab cd", "Invalid command name"},
		{"set", "/set is reserved"},
		{"stats", "/stats is reserved"}, // bot-registered command
	}
	for _, tc := range cases {
		if err := sessions.Dispatch(c.withText(tc.input)); err != nil {
			t.Fatalf("Dispatch(%q): %v", tc.input, err)
		}
		if !strings.Contains(c.lastSent(t), tc.want) {
			t.Errorf("reply to %q = %q, want substring %q", tc.input, c.lastSent(t), tc.want)
		}
		sess, ok := sessions.Get(key)
		if !ok || sess.State != StateDefineAwaitName {
			t.Errorf("after %q: state = %v, want %v", tc.input, sess, StateDefineAwaitName)
		}
	}

	// leading slash is trimmed, then accepted
	if err := sessions.Dispatch(c.withText("/promo")); err != nil {
		t.Fatal(err)
	}
	sess, ok := sessions.Get(key)
	if !ok || sess.State != StateDefineAwaitContent {
		t.Errorf("after valid name: state = %v, want %v", sess, StateDefineAwaitContent)
	}
}

func TestDefineOverwriteWarns(t *testing.T) {
	d, sessions, store, _ := newDefineEnv(t)
	if _, err := store.Save(context.Background(), 1, presets.Preset{Name: "promo", Kind: presets.KindText, Content: "old"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(privateChat, alice)
	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("promo")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "already exists") {
		t.Errorf("overwrite reply = %q", c.lastSent(t))
	}

	if err := sessions.Dispatch(c.withText("new")); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Lookup(context.Background(), 1, "promo")
	if got.Content != "new" {
		t.Errorf("content after overwrite = %q, want %q", got.Content, "new")
	}
}

func TestDefineRejectsSticker(t *testing.T) {
	d, sessions, _, _ := newDefineEnv(t)
	c := newTestCtx(privateChat, alice)
	key := state.Key{ChatID: 1, UserID: 1}

	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("promo")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withSticker()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "Please send text or a photo") {
		t.Errorf("sticker reply = %q", c.lastSent(t))
	}
	sess, ok := sessions.Get(key)
	if !ok || sess.State != StateDefineAwaitContent {
		t.Error("session lost after rejected content")
	}
}

func TestCancelClearsSession(t *testing.T) {
	d, sessions, store, _ := newDefineEnv(t)
	c := newTestCtx(privateChat, alice)
	key := state.Key{ChatID: 1, UserID: 1}

	if err := d.Start(c.withText("/set")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("promo")); err != nil {
		t.Fatal(err)
	}

	cancel := Cancel(sessions)
	if err := cancel(c.withText("/cancel")); err != nil {
		t.Fatal(err)
	}
	if sessions.InProgress(key) {
		t.Error("session survived cancel")
	}
	if c.lastSent(t) != "Cancelled." {
		t.Errorf("cancel reply = %q", c.lastSent(t))
	}
	if _, err := store.Lookup(context.Background(), 1, "promo"); err == nil {
		t.Error("cancelled flow still wrote a preset")
	}

	if err := cancel(c.withText("/cancel")); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != "Nothing to cancel." {
		t.Errorf("idle cancel reply = %q", c.lastSent(t))
	}
}

func newDepositEnv(t *testing.T) (*Deposit, state.Manager, *presets.Store, *links.Registry) {
	t.Helper()
	dir := t.TempDir()
	store := presets.NewStore(nil, presets.NewFileBackend(filepath.Join(dir, "p.json")))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	linkReg := links.NewRegistry(nil, links.NewFileBackend(filepath.Join(dir, "l.json")))
	if err := linkReg.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	sessions := state.NewMemoryManager()
	return NewDeposit(sessions, store, linkReg), sessions, store, linkReg
}

func TestDepositHappyPath(t *testing.T) {
	d, sessions, store, linkReg := newDepositEnv(t)
	ctx := context.Background()

	if err := linkReg.Bind(ctx, groupChat.ID, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, 42, presets.Preset{Name: "botvenmo", Kind: presets.KindText, Content: "pay@venmo"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(groupChat, alice)
	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	key := state.Key{ChatID: groupChat.ID, UserID: 1}
	sess, ok := sessions.Get(key)
	if !ok || sess.State != StateDepositChooseMethod {
		t.Fatalf("session after Start = %v", sess)
	}
	if c.lastSent(t) != "How would you like to deposit?" {
		t.Errorf("method prompt = %q", c.lastSent(t))
	}

	if err := d.HandleMethod(c.withCallback(MethodCallback, "venmo")); err != nil {
		t.Fatalf("HandleMethod: %v", err)
	}
	sess, _ = sessions.Get(key)
	if sess.State != StateDepositAwaitAmount {
		t.Fatalf("state after method = %v", sess.State)
	}
	if len(c.edits) == 0 || !strings.Contains(c.edits[0], "Venmo") {
		t.Errorf("prompt edit = %v", c.edits)
	}

	if err := sessions.Dispatch(c.withText("50")); err != nil {
		t.Fatalf("amount step: %v", err)
	}
	if sessions.InProgress(key) {
		t.Error("session not cleared after amount")
	}

	if len(c.sent) < 2 {
		t.Fatalf("sent = %v, want reply plus announcement", c.sent)
	}
	reply := c.sent[len(c.sent)-2]
	announcement := c.sent[len(c.sent)-1]
	if !strings.HasPrefix(reply, "Amount: 50") || !strings.Contains(reply, "pay@venmo") {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(announcement, "Venmo") || !strings.Contains(announcement, "50") {
		t.Errorf("announcement = %q", announcement)
	}
}

func TestDepositRefusesPrivateChat(t *testing.T) {
	d, sessions, _, _ := newDepositEnv(t)
	c := newTestCtx(privateChat, alice)

	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatal(err)
	}
	if sessions.InProgress(state.Key{ChatID: 1, UserID: 1}) {
		t.Error("session created in private chat")
	}
	if !strings.Contains(c.lastSent(t), "group chat") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestDepositRefusesUnlinkedGroup(t *testing.T) {
	d, sessions, _, _ := newDepositEnv(t)
	c := newTestCtx(groupChat, alice)

	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatal(err)
	}
	if sessions.InProgress(state.Key{ChatID: groupChat.ID, UserID: 1}) {
		t.Error("session created for unlinked group")
	}
	if !strings.Contains(c.lastSent(t), "not linked") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestDepositUnconfiguredMethod(t *testing.T) {
	d, sessions, _, linkReg := newDepositEnv(t)
	ctx := context.Background()
	if err := linkReg.Bind(ctx, groupChat.ID, 42); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(groupChat, alice)
	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatal(err)
	}
	if err := d.HandleMethod(c.withCallback(MethodCallback, "zelle")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("25")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "has not configured Zelle") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
	if sessions.InProgress(state.Key{ChatID: groupChat.ID, UserID: 1}) {
		t.Error("session survived unconfigured method")
	}
}

func TestDepositIgnoresForeignChatPress(t *testing.T) {
	d, sessions, _, linkReg := newDepositEnv(t)
	ctx := context.Background()
	if err := linkReg.Bind(ctx, groupChat.ID, 42); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(groupChat, alice)
	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatal(err)
	}

	// Same user pressing a stale button in another chat maps to a
	// different session key and must not advance the group session.
	other := newTestCtx(&tele.Chat{ID: -200, Type: tele.ChatGroup}, alice)
	if err := d.HandleMethod(other.withCallback(MethodCallback, "venmo")); err != nil {
		t.Fatal(err)
	}

	sess, ok := sessions.Get(state.Key{ChatID: groupChat.ID, UserID: 1})
	if !ok || sess.State != StateDepositChooseMethod {
		t.Errorf("group session state = %v, want %v", sess, StateDepositChooseMethod)
	}
}

func TestDepositPhotoPreset(t *testing.T) {
	d, sessions, store, linkReg := newDepositEnv(t)
	ctx := context.Background()
	if err := linkReg.Bind(ctx, groupChat.ID, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, 42, presets.Preset{Name: "botcrypto", Kind: presets.KindPhoto, FileID: "qr9", Caption: "Scan to pay"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(groupChat, alice)
	if err := d.Start(c.withText("/deposit")); err != nil {
		t.Fatal(err)
	}
	if err := d.HandleMethod(c.withCallback(MethodCallback, "crypto")); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Dispatch(c.withText("0.01")); err != nil {
		t.Fatal(err)
	}

	if len(c.photos) != 1 {
		t.Fatalf("photos sent = %d, want 1", len(c.photos))
	}
	caption := c.photos[0].Caption
	if !strings.HasPrefix(caption, "Amount: 0.01") || !strings.Contains(caption, "Scan to pay") {
		t.Errorf("photo caption = %q", caption)
	}
}
