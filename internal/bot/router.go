package bot

import (
	"errors"
	"strings"

	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

const unknownCommandText = "I don't know that command for you. Use /mycmds or /set."

// routePreset resolves any command not claimed by a built-in handler
// or an active conversation against the sender's stored presets.
func (b *Bot) routePreset(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	name, ok := parsePresetCommand(c.Text())
	if !ok {
		return nil
	}
	// Built-in names have their own endpoints; reaching here with one
	// means an unregistered alias slipped through, so stay quiet.
	if _, reserved := b.reserved[name]; reserved {
		return nil
	}
	if !b.cfg.Core.Access.Allowed(sender.ID) {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	entry, err := b.store.Lookup(ctx, sender.ID, name)
	if errors.Is(err, presets.ErrNotFound) {
		return tghelpers.SendText(c, unknownCommandText)
	}
	if err != nil {
		return err
	}

	switch entry.Kind {
	case presets.KindPhoto:
		if entry.FileID == "" {
			return tghelpers.SendText(c, "Error: Photo data is corrupted.")
		}
		return tghelpers.SendPhoto(c, entry.FileID, entry.Caption)
	default:
		return tghelpers.SendLongText(c, entry.Content)
	}
}

// parsePresetCommand extracts the bare command name from message text:
// "/referral@SomeBot extra args" yields "referral".
func parsePresetCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", false
	}
	return name, true
}
