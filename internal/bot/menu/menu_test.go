package menu

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

type setCall struct {
	cmds  []tele.Command
	scope tele.CommandScope
}

type fakeAPI struct {
	sets    []setCall
	deleted int
}

func (f *fakeAPI) SetCommands(opts ...interface{}) error {
	var call setCall
	for _, o := range opts {
		switch v := o.(type) {
		case []tele.Command:
			call.cmds = v
		case tele.CommandScope:
			call.scope = v
		}
	}
	f.sets = append(f.sets, call)
	return nil
}

func (f *fakeAPI) DeleteCommands(_ ...interface{}) error {
	f.deleted++
	return nil
}

func newMenuEnv(t *testing.T) (*Projector, *fakeAPI, *presets.Store) {
	t.Helper()
	store := presets.NewStore(nil, presets.NewFileBackend(filepath.Join(t.TempDir(), "p.json")))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := NewProjector(store)
	api := &fakeAPI{}
	p.Bind(api)
	return p, api, store
}

func findCommand(cmds []tele.Command, name string) (tele.Command, bool) {
	for _, c := range cmds {
		if c.Text == name {
			return c, true
		}
	}
	return tele.Command{}, false
}

func TestRefreshUserProjectsPresets(t *testing.T) {
	p, api, store := newMenuEnv(t)
	ctx := context.Background()

	long := strings.Repeat("x", 80)
	saves := []presets.Preset{
		{Name: "promo", Kind: presets.KindText, Content: "20% off\nsecond line"},
		{Name: "qr", Kind: presets.KindPhoto, FileID: "f1", Caption: "scan"},
		{Name: "wall", Kind: presets.KindText, Content: long},
	}
	for _, s := range saves {
		if _, err := store.Save(ctx, 7, s); err != nil {
			t.Fatal(err)
		}
	}

	p.RefreshUser(ctx, 7)
	if len(api.sets) != 1 {
		t.Fatalf("SetCommands calls = %d, want 1", len(api.sets))
	}
	call := api.sets[0]
	if call.scope.Type != tele.CommandScopeChat || call.scope.ChatID != 7 {
		t.Errorf("scope = %+v", call.scope)
	}

	// system commands head the list
	if call.cmds[0].Text != "start" {
		t.Errorf("first command = %q, want start", call.cmds[0].Text)
	}

	promo, ok := findCommand(call.cmds, "promo")
	if !ok || promo.Description != "20% off" {
		t.Errorf("promo description = %q, want first line only", promo.Description)
	}
	qr, ok := findCommand(call.cmds, "qr")
	if !ok || qr.Description != "📷 Photo command" {
		t.Errorf("qr description = %q", qr.Description)
	}
	wall, ok := findCommand(call.cmds, "wall")
	if !ok || wall.Description != strings.Repeat("x", 50)+"..." {
		t.Errorf("wall description = %q, want 50 chars plus ellipsis", wall.Description)
	}
}

func TestRefreshGroupUsesGenericDescriptions(t *testing.T) {
	p, api, store := newMenuEnv(t)
	ctx := context.Background()
	if _, err := store.Save(ctx, 7, presets.Preset{Name: "promo", Kind: presets.KindText, Content: "secret owner text"}); err != nil {
		t.Fatal(err)
	}

	p.RefreshGroup(ctx, -100, 7)
	call := api.sets[0]
	if call.scope.ChatID != -100 {
		t.Errorf("scope chat = %d, want -100", call.scope.ChatID)
	}
	promo, ok := findCommand(call.cmds, "promo")
	if !ok || promo.Description != "Custom command" {
		t.Errorf("group promo description = %q", promo.Description)
	}
}

type allowAll struct{}

func (allowAll) Allowed(int64) bool { return true }

type denyAll struct{}

func (denyAll) Allowed(int64) bool { return false }

func TestProjectAll(t *testing.T) {
	p, api, store := newMenuEnv(t)
	ctx := context.Background()
	for _, owner := range []int64{1, 2, 3} {
		if _, err := store.Save(ctx, owner, presets.Preset{Name: "a", Kind: presets.KindText, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	p.ProjectAll(ctx, allowAll{})
	if len(api.sets) != 3 {
		t.Errorf("SetCommands calls = %d, want 3", len(api.sets))
	}

	api.sets = nil
	p.ProjectAll(ctx, denyAll{})
	if len(api.sets) != 0 {
		t.Errorf("SetCommands calls for denied owners = %d, want 0", len(api.sets))
	}
}

func TestUnboundProjectorIsNoop(t *testing.T) {
	store := presets.NewStore(nil, presets.NewFileBackend(filepath.Join(t.TempDir(), "p.json")))
	p := NewProjector(store)
	// must not panic without a bound API
	p.RefreshUser(context.Background(), 1)
	p.ClearGlobal(context.Background())
}
