package middleware

import (
	"github.com/Edaad/gg-support-bot/core/logger"
	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// AccessChecker reports whether a user may use gated commands.
type AccessChecker interface {
	Allowed(userID int64) bool
}

// AllowListOptions defines how allow-list checks should behave.
type AllowListOptions struct {
	Access AccessChecker
	// OnReject runs for rejected users; nil means silent no-op.
	OnReject tele.HandlerFunc
}

// AllowListMiddleware ensures that only allow-listed users reach downstream handlers.
// Rejections are silent by default: unknown users get no reply at all.
func AllowListMiddleware(opts AllowListOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			if opts.Access == nil || opts.Access.Allowed(user.ID) {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			logger.Debug(ctx, "tg", "access.denied",
				slog.String("status", "skip"),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
