package router

import (
	"github.com/Edaad/gg-support-bot/core/logger"
	tg "github.com/Edaad/gg-support-bot/core/telegram"
	"github.com/Edaad/gg-support-bot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Access   middleware.AccessChecker
	OnReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Gated commands additionally pass through the allow-list check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	allowOpts := middleware.AllowListOptions{
		Access:   opts.Access,
		OnReject: opts.OnReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		if def.Gated {
			h = middleware.AllowListMiddleware(allowOpts)(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
