package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Edaad/gg-support-bot/core/logger"
	"github.com/Edaad/gg-support-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// MaxMessageLen is the Telegram ceiling for one text message, in characters.
const MaxMessageLen = 4096

// SendLongText sends text of any length, split into contiguous
// MaxMessageLen-character slices when it exceeds a single message.
// Splitting counts runes, not bytes, so multibyte text never breaks
// mid-character.
func SendLongText(c tele.Context, text string) error {
	runes := []rune(text)
	if len(runes) <= MaxMessageLen {
		return SendText(c, text)
	}
	for start := 0; start < len(runes); start += MaxMessageLen {
		end := start + MaxMessageLen
		if end > len(runes) {
			end = len(runes)
		}
		if err := SendText(c, string(runes[start:end])); err != nil {
			return err
		}
	}
	return nil
}

// SendPhoto sends a photo by file reference with an optional caption.
func SendPhoto(c tele.Context, fileID, caption string) error {
	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
	return sendAsync(c, "send.photo", "sendPhoto", func() error {
		return c.Send(photo)
	})
}

// EditText edits the current message in place with optional reply markup.
func EditText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	if rm != nil {
		return c.Edit(text, rm)
	}
	return c.Edit(text)
}

// EditOrSendText tries to edit the message or sends a new one if edit fails.
func EditOrSendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	if rm != nil {
		return c.EditOrSend(text, rm)
	}
	return c.EditOrSend(text)
}
