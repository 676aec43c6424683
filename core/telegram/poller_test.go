package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/Edaad/gg-support-bot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongPoll(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll

	p, ok := BuildPoller(cfg).(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller = %T, want *tele.LongPoller", BuildPoller(cfg))
	}
	if p.Timeout != defaultLongPollTimeout {
		t.Errorf("timeout = %v, want default %v", p.Timeout, defaultLongPollTimeout)
	}

	cfg.Telegram.LongPollTimeoutSeconds = 25
	p = BuildPoller(cfg).(*tele.LongPoller)
	if p.Timeout != 25*time.Second {
		t.Errorf("timeout = %v, want 25s", p.Timeout)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	cfg.Webhook.URL = "https://bot.example.org/hook"

	wh, ok := BuildPoller(cfg).(*tele.Webhook)
	if !ok {
		t.Fatalf("poller = %T, want *tele.Webhook", BuildPoller(cfg))
	}
	if wh.Listen != "0.0.0.0:8443" {
		t.Errorf("listen = %q", wh.Listen)
	}
	if wh.Endpoint == nil || wh.Endpoint.PublicURL != cfg.Webhook.URL {
		t.Errorf("endpoint = %+v", wh.Endpoint)
	}
}
