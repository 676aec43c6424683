// Package flows implements the multi-step conversations: defining a
// preset and requesting a deposit. Each flow registers its state
// handlers with the session manager and exposes an entry handler for
// the command that starts it.
package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Edaad/gg-support-bot/core/logger"
	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"github.com/Edaad/gg-support-bot/core/telegram/state"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

const (
	// FlowDefine collects a preset name and its content.
	FlowDefine state.Flow = "define_entry"

	// StateDefineAwaitName waits for the preset name.
	StateDefineAwaitName state.State = "define.awaiting_name"
	// StateDefineAwaitContent waits for the preset text or photo.
	StateDefineAwaitContent state.State = "define.awaiting_content"
)

const defineIntro = "Okay! Send the command name (without the /). Example: referral\n\n" +
	"Send /cancel to abort."

const defineContentHint = "You can send:\n• Text message (multi-line supported)\n• Photo with optional caption\n\nSend /cancel to abort."

type defineScratch struct {
	name string
}

// Menu is the slice of the menu projector the flows need.
type Menu interface {
	RefreshUser(ctx context.Context, userID int64)
	RefreshGroup(ctx context.Context, chatID, ownerID int64)
}

// Define drives the preset definition conversation.
type Define struct {
	sessions state.Manager
	store    *presets.Store
	reserved map[string]struct{}
	menu     Menu
}

// NewDefine wires the flow and registers its state handlers.
// reserved holds the bot's own command names; preset names may not
// shadow them.
func NewDefine(sessions state.Manager, store *presets.Store, reserved map[string]struct{}, menu Menu) *Define {
	d := &Define{
		sessions: sessions,
		store:    store,
		reserved: reserved,
		menu:     menu,
	}
	sessions.RegisterHandler(StateDefineAwaitName, d.handleName)
	sessions.RegisterHandler(StateDefineAwaitContent, d.handleContent)
	return d
}

// Start enters the flow; bound to /set.
func (d *Define) Start(c tele.Context) error {
	key := state.KeyFrom(c)
	d.sessions.Begin(key, FlowDefine, StateDefineAwaitName, &defineScratch{})

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "flow", "define.started",
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
	)
	return tghelpers.SendText(c, defineIntro)
}

func (d *Define) handleName(c tele.Context) error {
	key := state.KeyFrom(c)
	sess, ok := d.sessions.Get(key)
	if !ok || sess.Flow != FlowDefine {
		return nil
	}
	scratch, ok := sess.Scratch.(*defineScratch)
	if !ok {
		d.sessions.Clear(key)
		return nil
	}

	name := strings.TrimPrefix(strings.TrimSpace(c.Text()), "/")
	switch err := presets.ValidateName(name, d.reserved); {
	case errors.Is(err, presets.ErrInvalidName):
		return tghelpers.SendText(c, "Invalid command name. Use only letters, numbers, or underscores (max 32). Try again.")
	case errors.Is(err, presets.ErrReservedName):
		return tghelpers.SendText(c, fmt.Sprintf("/%s is reserved. Pick another name.", name))
	}

	ctx := tghelpers.BuildContext(c)
	_, err := d.store.Lookup(ctx, key.UserID, name)
	exists := err == nil

	scratch.name = name
	d.sessions.SetState(key, StateDefineAwaitContent)

	if exists {
		return tghelpers.SendText(c, fmt.Sprintf(
			"/%s already exists for you. Send the new message to overwrite it.\n\n%s", name, defineContentHint))
	}
	return tghelpers.SendText(c, fmt.Sprintf(
		"Great. Now send the message for /%s.\n\n%s", name, defineContentHint))
}

func (d *Define) handleContent(c tele.Context) error {
	key := state.KeyFrom(c)
	sess, ok := d.sessions.Get(key)
	if !ok || sess.Flow != FlowDefine {
		return nil
	}
	scratch, ok := sess.Scratch.(*defineScratch)
	if !ok || scratch.name == "" {
		d.sessions.Clear(key)
		return nil
	}

	var p presets.Preset
	msg := c.Message()
	switch {
	case msg != nil && msg.Photo != nil:
		p = presets.Preset{
			Name:    scratch.name,
			Kind:    presets.KindPhoto,
			FileID:  msg.Photo.FileID,
			Caption: msg.Caption,
		}
	case c.Text() != "":
		p = presets.Preset{
			Name:    scratch.name,
			Kind:    presets.KindText,
			Content: c.Text(),
		}
	default:
		// Stickers and the rest re-prompt without losing the session.
		return tghelpers.SendText(c, "Please send text or a photo for your command.")
	}

	ctx := tghelpers.BuildContext(c)
	if _, err := d.store.Save(ctx, key.UserID, p); err != nil {
		logger.Error(ctx, "flow", "define.save_failed",
			slog.Int64("user_id", key.UserID),
			slog.String("name", scratch.name),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, "Something went wrong saving your command. Please try again.")
	}

	d.sessions.Clear(key)

	confirmation := fmt.Sprintf("Saved /%s.", scratch.name)
	if p.Kind == presets.KindPhoto {
		confirmation = fmt.Sprintf("Saved /%s (photo command).", scratch.name)
	}
	if err := tghelpers.SendText(c, confirmation); err != nil {
		return err
	}

	if d.menu != nil {
		d.menu.RefreshUser(ctx, key.UserID)
		if isGroupChat(c) {
			d.menu.RefreshGroup(ctx, key.ChatID, key.UserID)
		}
	}

	logger.Info(ctx, "flow", "define.saved",
		slog.Int64("user_id", key.UserID),
		slog.String("name", scratch.name),
		slog.String("kind", string(p.Kind)),
	)
	return nil
}

// Cancel aborts any active conversation for the sender; bound to /cancel.
func Cancel(sessions state.Manager) tele.HandlerFunc {
	return func(c tele.Context) error {
		key := state.KeyFrom(c)
		if !sessions.InProgress(key) {
			return tghelpers.SendText(c, "Nothing to cancel.")
		}
		sessions.Clear(key)
		return tghelpers.SendText(c, "Cancelled.")
	}
}

func isGroupChat(c tele.Context) bool {
	chat := c.Chat()
	if chat == nil {
		return false
	}
	return chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup
}
