package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreconfig "github.com/Edaad/gg-support-bot/core/config"
	"github.com/Edaad/gg-support-bot/internal/links"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

type testCtx struct {
	tele.Context

	chat   *tele.Chat
	sender *tele.User
	msg    *tele.Message
	kv     map[string]any

	sent   []string
	photos []*tele.Photo
}

func newTestCtx(chat *tele.Chat, sender *tele.User, text string) *testCtx {
	return &testCtx{
		chat:   chat,
		sender: sender,
		msg:    &tele.Message{Text: text},
		kv:     make(map[string]any),
	}
}

func (c *testCtx) Chat() *tele.Chat       { return c.chat }
func (c *testCtx) Sender() *tele.User     { return c.sender }
func (c *testCtx) Message() *tele.Message { return c.msg }
func (c *testCtx) Update() tele.Update    { return tele.Update{ID: 1} }

func (c *testCtx) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *testCtx) Args() []string {
	fields := strings.Fields(c.Text())
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
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

func (c *testCtx) lastSent(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no message sent")
	}
	return c.sent[len(c.sent)-1]
}

var (
	privateChat = &tele.Chat{ID: 9, Type: tele.ChatPrivate}
	groupChat   = &tele.Chat{ID: -321, Type: tele.ChatGroup}
	bob         = &tele.User{ID: 9}
)

func newBotEnv(t *testing.T, allowed ...int64) (*Bot, *presets.Store, *links.Registry) {
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
	cfg := &Config{
		Core: coreconfig.Config{
			Access: coreconfig.AccessConfig{AllowedIDs: allowed},
		},
	}
	return New(cfg, store, linkReg), store, linkReg
}

func TestRoutePresetText(t *testing.T) {
	b, store, _ := newBotEnv(t)
	if _, err := store.Save(context.Background(), 9, presets.Preset{Name: "referral", Kind: presets.KindText, Content: "Join here"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(privateChat, bob, "/referral")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != "Join here" {
		t.Errorf("reply = %q", c.lastSent(t))
	}

	// bot-suffixed invocation with arguments resolves the same preset
	c2 := newTestCtx(privateChat, bob, "/referral@SomeBot now")
	if err := b.routePreset(c2); err != nil {
		t.Fatal(err)
	}
	if c2.lastSent(t) != "Join here" {
		t.Errorf("suffixed reply = %q", c2.lastSent(t))
	}
}

func TestRoutePresetUnknown(t *testing.T) {
	b, _, _ := newBotEnv(t)
	c := newTestCtx(privateChat, bob, "/foo")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != unknownCommandText {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestRoutePresetReservedIsSilent(t *testing.T) {
	b, _, _ := newBotEnv(t)
	c := newTestCtx(privateChat, bob, "/help")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 0 {
		t.Errorf("reserved name produced reply %v", c.sent)
	}
}

func TestRoutePresetDeniedUserIsSilent(t *testing.T) {
	b, store, _ := newBotEnv(t, 1000) // allow-list excludes bob
	if _, err := store.Save(context.Background(), 9, presets.Preset{Name: "referral", Kind: presets.KindText, Content: "Join here"}); err != nil {
		t.Fatal(err)
	}
	c := newTestCtx(privateChat, bob, "/referral")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 0 {
		t.Errorf("denied user got reply %v", c.sent)
	}
}

func TestRoutePresetPhoto(t *testing.T) {
	b, store, _ := newBotEnv(t)
	ctx := context.Background()
	if _, err := store.Save(ctx, 9, presets.Preset{Name: "qr", Kind: presets.KindPhoto, FileID: "f77", Caption: "scan"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(privateChat, bob, "/qr")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if len(c.photos) != 1 || c.photos[0].FileID != "f77" || c.photos[0].Caption != "scan" {
		t.Errorf("photos = %+v", c.photos)
	}
}

func TestRoutePresetCorruptedPhoto(t *testing.T) {
	// A photo record without a file reference cannot pass Save
	// validation, but can exist on disk from older deployments.
	dir := t.TempDir()
	path := filepath.Join(dir, "p.json")
	doc := `{"9": {"qr": {"type": "photo", "caption": "scan"}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	store := presets.NewStore(nil, presets.NewFileBackend(path))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	linkReg := links.NewRegistry(nil, links.NewFileBackend(filepath.Join(dir, "l.json")))
	cfg := &Config{}
	b := New(cfg, store, linkReg)

	c := newTestCtx(privateChat, bob, "/qr")
	if err := b.routePreset(c); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != "Error: Photo data is corrupted." {
		t.Errorf("reply = %q", c.lastSent(t))
	}
	// the entry stays untouched
	if _, err := store.Lookup(context.Background(), 9, "qr"); err != nil {
		t.Errorf("corrupted entry was dropped: %v", err)
	}
}

func TestParsePresetCommand(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/referral", "referral", true},
		{"/referral@SomeBot arg1", "referral", true},
		{"/referral extra words", "referral", true},
		{"plain text", "", false},
		{"/", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parsePresetCommand(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parsePresetCommand(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestHandleMyCmds(t *testing.T) {
	b, store, _ := newBotEnv(t)
	ctx := context.Background()

	c := newTestCtx(privateChat, bob, "/mycmds")
	if err := b.handleMyCmds(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "haven't added any commands") {
		t.Errorf("empty reply = %q", c.lastSent(t))
	}

	if _, err := store.Save(ctx, 9, presets.Preset{Name: "promo", Kind: presets.KindText, Content: "line one\nline two"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, 9, presets.Preset{Name: "qr", Kind: presets.KindPhoto, FileID: "f1", Caption: "x"}); err != nil {
		t.Fatal(err)
	}

	c = newTestCtx(privateChat, bob, "/mycmds")
	if err := b.handleMyCmds(c); err != nil {
		t.Fatal(err)
	}
	reply := c.lastSent(t)
	if !strings.Contains(reply, "/promo — line one") {
		t.Errorf("reply missing text preset line: %q", reply)
	}
	if !strings.Contains(reply, "/qr — [Photo with caption]") {
		t.Errorf("reply missing photo marker: %q", reply)
	}
	if strings.Contains(reply, "line two") {
		t.Errorf("reply leaked later lines: %q", reply)
	}
}

func TestHandleDelete(t *testing.T) {
	b, store, _ := newBotEnv(t)
	ctx := context.Background()
	if _, err := store.Save(ctx, 9, presets.Preset{Name: "promo", Kind: presets.KindText, Content: "x"}); err != nil {
		t.Fatal(err)
	}

	c := newTestCtx(privateChat, bob, "/delete")
	if err := b.handleDelete(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "Usage: /delete") {
		t.Errorf("usage reply = %q", c.lastSent(t))
	}

	c = newTestCtx(privateChat, bob, "/delete promo")
	if err := b.handleDelete(c); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != "Deleted /promo." {
		t.Errorf("delete reply = %q", c.lastSent(t))
	}
	if _, err := store.Lookup(ctx, 9, "promo"); err == nil {
		t.Error("preset survived delete")
	}

	c = newTestCtx(privateChat, bob, "/delete promo")
	if err := b.handleDelete(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.lastSent(t), "don't have a /promo") {
		t.Errorf("missing reply = %q", c.lastSent(t))
	}
}

func TestHandleAddedToGroupBindsLink(t *testing.T) {
	b, _, linkReg := newBotEnv(t)

	c := newTestCtx(groupChat, bob, "")
	if err := b.handleAddedToGroup(c); err != nil {
		t.Fatal(err)
	}
	ownerID, err := linkReg.Resolve(context.Background(), groupChat.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ownerID != 9 {
		t.Errorf("owner = %d, want 9", ownerID)
	}

	// re-add by another user rebinds
	carol := &tele.User{ID: 77}
	c = newTestCtx(groupChat, carol, "")
	if err := b.handleAddedToGroup(c); err != nil {
		t.Fatal(err)
	}
	ownerID, _ = linkReg.Resolve(context.Background(), groupChat.ID)
	if ownerID != 77 {
		t.Errorf("owner after re-add = %d, want 77", ownerID)
	}
}

func TestHandleWhoami(t *testing.T) {
	b, _, _ := newBotEnv(t)
	c := newTestCtx(privateChat, bob, "/whoami")
	if err := b.handleWhoami(c); err != nil {
		t.Fatal(err)
	}
	if c.lastSent(t) != "Your Telegram user ID: 9" {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}
