// Package bot wires the preset store, group links, conversation flows
// and command surface into a runnable Telegram bot.
package bot

import (
	"context"

	tg "github.com/Edaad/gg-support-bot/core/telegram"
	"github.com/Edaad/gg-support-bot/core/telegram/commands"
	"github.com/Edaad/gg-support-bot/core/telegram/middleware"
	"github.com/Edaad/gg-support-bot/core/telegram/router"
	"github.com/Edaad/gg-support-bot/core/telegram/state"
	"github.com/Edaad/gg-support-bot/internal/bot/flows"
	"github.com/Edaad/gg-support-bot/internal/bot/menu"
	"github.com/Edaad/gg-support-bot/internal/links"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

// Bot owns the command registry, session manager and flows.
type Bot struct {
	cfg      *Config
	store    *presets.Store
	links    *links.Registry
	sessions state.Manager
	registry *tg.Registry
	menu     *menu.Projector
	define   *flows.Define
	deposit  *flows.Deposit
	reserved map[string]struct{}
}

// New assembles the bot around a loaded store and link registry.
func New(cfg *Config, store *presets.Store, linksReg *links.Registry) *Bot {
	b := &Bot{
		cfg:      cfg,
		store:    store,
		links:    linksReg,
		sessions: state.NewMemoryManager(),
		registry: tg.NewRegistry(),
		reserved: make(map[string]struct{}),
	}
	b.menu = menu.NewProjector(store)
	b.define = flows.NewDefine(b.sessions, store, b.reserved, b.menu)
	b.deposit = flows.NewDeposit(b.sessions, store, linksReg)

	b.registerCommands()
	for name := range b.registry.ReservedNames() {
		b.reserved[name] = struct{}{}
	}

	_ = b.registry.RegisterCallback(flows.MethodCallback, b.deposit.HandleMethod)
	b.registry.SetTextFallback(b.routePreset)
	return b
}

func (b *Bot) registerCommands() {
	b.registry.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "What I can do",
		Gated:       true,
	})
	b.registry.RegisterCommand("/help", commands.Command{
		Handler:     b.handleStart,
		Description: "What I can do",
		Gated:       true,
	})
	b.registry.RegisterCommand("/whoami", commands.Command{
		Handler:     b.handleWhoami,
		Description: "Show your user ID",
	})
	b.registry.RegisterCommand("/set", commands.Command{
		Handler:     b.define.Start,
		Description: "Create your own command",
		Gated:       true,
	})
	b.registry.RegisterCommand("/mycmds", commands.Command{
		Handler:     b.handleMyCmds,
		Description: "List your commands",
		Gated:       true,
	})
	b.registry.RegisterCommand("/delete", commands.Command{
		Handler:     b.handleDelete,
		Description: "Delete a command",
		Gated:       true,
	})
	b.registry.RegisterCommand("/cancel", commands.Command{
		Handler:     flows.Cancel(b.sessions),
		Description: "Cancel the current operation",
		Gated:       true,
		Hidden:      true,
	})
	b.registry.RegisterCommand("/deposit", commands.Command{
		Handler:     b.deposit.Start,
		Description: "Request a deposit (groups only)",
		Gated:       true,
		Hidden:      true,
	})
}

// RunOptions builds the transport run configuration for this bot.
func (b *Bot) RunOptions() tg.RunOptions {
	access := b.cfg.Core.Access

	routes := router.CommandRoutes(b.registry, router.CommandRouteOptions{Access: access})
	routes = append(routes, router.TextRoutes(b.sessions, b.registry, router.TextOptions{
		UnknownText: b.routePreset,
	})...)
	routes = append(routes, router.CallbackRoute(b.registry, router.CallbackOptions{}))
	routes = append(routes, tg.Route{
		Endpoint: tele.OnAddedToGroup,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(b.handleAddedToGroup)),
	})

	return tg.RunOptions{
		Config:      &b.cfg.Core,
		Registry:    b.registry,
		Middlewares: tg.DefaultMiddlewares(),
		Routes:      routes,
		OnStart:     b.onStart,
	}
}

// onStart projects command menus once the transport is connected:
// the global list is cleared and every known owner gets a personal menu.
func (b *Bot) onStart(ctx context.Context, rt tg.Runtime) error {
	b.menu.Bind(rt.Bot)
	b.menu.ClearGlobal(ctx)
	b.menu.ProjectAll(ctx, b.cfg.Core.Access)
	return nil
}

// Sessions exposes the conversation manager, mainly for tests.
func (b *Bot) Sessions() state.Manager {
	return b.sessions
}

// Registry exposes the command registry, mainly for tests.
func (b *Bot) Registry() *tg.Registry {
	return b.registry
}
