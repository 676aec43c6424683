package router

import (
	"strings"
	"time"

	tg "github.com/Edaad/gg-support-bot/core/telegram"
	"github.com/Edaad/gg-support-bot/core/telegram/middleware"
	"github.com/Edaad/gg-support-bot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a conversation session manager.
type FSM interface {
	InProgress(key state.Key) bool
	Dispatch(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/photo updates.
type TextOptions struct {
	// UnknownText handles text not claimed by an active session or a
	// registered command; the preset router plugs in here.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds handlers for text and photo routing. Active sessions get
// first claim on every message; photos outside a session are dropped.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsmMgr != nil && fsmMgr.InProgress(state.KeyFrom(c)) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsmMgr.Dispatch(c)
			})
		}

		if reg != nil && strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.InProgress(state.KeyFrom(c)) {
			return handleWithSummary(c, "fsm_media", start, "", "", func() error {
				return fsmMgr.Dispatch(c)
			})
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler)),
		},
		{
			Endpoint: tele.OnSticker,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler)),
		},
	}
}
