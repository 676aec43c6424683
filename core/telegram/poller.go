package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/Edaad/gg-support-bot/core/config"

	tele "gopkg.in/telebot.v4"
)

// defaultLongPollTimeout applies when the config leaves the long-poll
// timeout unset.
const defaultLongPollTimeout = 10 * time.Second

// BuildPoller returns the update poller for the configured run mode.
// Config normalization already validated the mode and the webhook
// fields, so anything other than webhook falls through to long polling.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
