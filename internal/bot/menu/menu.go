// Package menu projects stored presets into per-chat Telegram command menus.
package menu

import (
	"context"
	"strings"
	"sync"

	"github.com/Edaad/gg-support-bot/core/logger"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// API is the slice of the bot surface the projector needs.
type API interface {
	SetCommands(opts ...interface{}) error
	DeleteCommands(opts ...interface{}) error
}

// AccessChecker gates which owners get a projected menu.
type AccessChecker interface {
	Allowed(userID int64) bool
}

// systemCommands always head the menu, ahead of any user presets.
var systemCommands = []tele.Command{
	{Text: "start", Description: "What I can do"},
	{Text: "help", Description: "What I can do"},
	{Text: "set", Description: "Create your own command"},
	{Text: "mycmds", Description: "List your commands"},
	{Text: "delete", Description: "Delete a command"},
	{Text: "whoami", Description: "Show your user ID"},
}

const maxDescriptionLen = 50

// Projector keeps per-chat command menus in sync with the store.
// Menu updates are cosmetic and best-effort: a failed projection is
// logged and the preset write it followed stays valid.
type Projector struct {
	mu    sync.RWMutex
	api   API
	store *presets.Store
}

// NewProjector builds a projector over the store. The bot surface is
// bound later, once the transport is up; refreshes before that are
// silently skipped.
func NewProjector(store *presets.Store) *Projector {
	return &Projector{store: store}
}

// Bind attaches the bot surface used for command projection.
func (p *Projector) Bind(api API) {
	p.mu.Lock()
	p.api = api
	p.mu.Unlock()
}

func (p *Projector) current() API {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.api
}

// RefreshUser projects the owner's presets into their private chat menu,
// with a first-line summary of each preset as the description.
func (p *Projector) RefreshUser(ctx context.Context, userID int64) {
	cmds := append([]tele.Command(nil), systemCommands...)
	for _, preset := range p.store.GetAll(ctx, userID) {
		cmds = append(cmds, tele.Command{
			Text:        preset.Name,
			Description: describe(preset),
		})
	}
	p.set(ctx, userID, cmds)
}

// RefreshGroup projects the linked owner's preset names into a group
// chat menu. Descriptions stay generic; the content belongs to the owner.
func (p *Projector) RefreshGroup(ctx context.Context, chatID, ownerID int64) {
	cmds := append([]tele.Command(nil), systemCommands...)
	for _, preset := range p.store.GetAll(ctx, ownerID) {
		cmds = append(cmds, tele.Command{
			Text:        preset.Name,
			Description: "Custom command",
		})
	}
	p.set(ctx, chatID, cmds)
}

// ClearGlobal removes the default command list; menus are projected
// per chat instead.
func (p *Projector) ClearGlobal(ctx context.Context) {
	api := p.current()
	if api == nil {
		return
	}
	if err := api.DeleteCommands(); err != nil {
		logger.Warn(ctx, "menu", "clear_global.failed",
			slog.String("err", err.Error()),
		)
	}
}

// ProjectAll refreshes the private menu of every known owner, typically
// at startup. Owners outside the allow-list are skipped.
func (p *Projector) ProjectAll(ctx context.Context, access AccessChecker) {
	owners := p.store.Owners()
	for _, ownerID := range owners {
		if access != nil && !access.Allowed(ownerID) {
			continue
		}
		p.RefreshUser(ctx, ownerID)
	}
	logger.Info(ctx, "menu", "project_all.done",
		slog.Int("owners", len(owners)),
	)
}

func (p *Projector) set(ctx context.Context, chatID int64, cmds []tele.Command) {
	api := p.current()
	if api == nil {
		return
	}
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: chatID}
	if err := api.SetCommands(cmds, scope); err != nil {
		logger.Warn(ctx, "menu", "refresh.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "menu", "refresh.done",
		slog.Int64("chat_id", chatID),
		slog.Int("commands", len(cmds)),
	)
}

// describe summarizes a preset for the menu: the first line of text
// content, truncated, or a fixed marker for photo presets.
func describe(p presets.Preset) string {
	if p.Kind == presets.KindPhoto {
		return "📷 Photo command"
	}
	content := p.Content
	if content == "" {
		return "Custom command"
	}
	firstLine := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		firstLine = content[:i]
	}
	if len(content) > maxDescriptionLen {
		runes := []rune(firstLine)
		if len(runes) > maxDescriptionLen {
			runes = runes[:maxDescriptionLen]
		}
		return string(runes) + "..."
	}
	return firstLine
}
