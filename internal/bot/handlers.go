package bot

import (
	"fmt"
	"sort"
	"strings"

	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
)

const usageText = "I store per-user commands.\n" +
	"• /set — create a new command for yourself\n" +
	"• /mycmds — list your commands\n" +
	"• /delete <name> — remove one of your commands\n" +
	"• /whoami — show your user ID\n\n" +
	"After you add a command, just type /<name> to use it."

// handleStart serves /start and /help.
func (b *Bot) handleStart(c tele.Context) error {
	if err := tghelpers.SendText(c, usageText); err != nil {
		return err
	}
	if isGroupChat(c) {
		if sender := c.Sender(); sender != nil {
			b.menu.RefreshGroup(tghelpers.BuildContext(c), c.Chat().ID, sender.ID)
		}
	}
	return nil
}

// handleWhoami serves /whoami; intentionally ungated so users can
// discover their ID before being allow-listed.
func (b *Bot) handleWhoami(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	return tghelpers.SendText(c, fmt.Sprintf("Your Telegram user ID: %d", sender.ID))
}

// handleMyCmds serves /mycmds.
func (b *Bot) handleMyCmds(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	cmds := b.store.GetAll(ctx, sender.ID)
	if len(cmds) == 0 {
		return tghelpers.SendText(c, "You haven't added any commands yet. Use /set to create one.")
	}

	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	lines := []string{"Your commands:"}
	for _, p := range cmds {
		if p.Kind == presets.KindPhoto {
			lines = append(lines, fmt.Sprintf("/%s — [Photo with caption]", p.Name))
			continue
		}
		firstLine := p.Content
		if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
			firstLine = firstLine[:i]
		}
		if runes := []rune(firstLine); len(runes) > 60 {
			firstLine = string(runes[:60])
		}
		lines = append(lines, fmt.Sprintf("/%s — %s", p.Name, firstLine))
	}
	return tghelpers.SendText(c, strings.Join(lines, "\n"))
}

// handleDelete serves /delete <name>.
func (b *Bot) handleDelete(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) == 0 {
		return tghelpers.SendText(c, "Usage: /delete <command_name>")
	}

	name := strings.TrimPrefix(strings.TrimSpace(args[0]), "/")
	ctx := tghelpers.BuildContext(c)

	existed, err := b.store.Delete(ctx, sender.ID, name)
	if err != nil {
		return tghelpers.SendText(c, "Something went wrong deleting your command. Please try again.")
	}
	if !existed {
		return tghelpers.SendText(c, fmt.Sprintf("You don't have a /%s command.", name))
	}

	if err := tghelpers.SendText(c, fmt.Sprintf("Deleted /%s.", name)); err != nil {
		return err
	}
	b.menu.RefreshUser(ctx, sender.ID)
	if isGroupChat(c) {
		b.menu.RefreshGroup(ctx, c.Chat().ID, sender.ID)
	}
	return nil
}

// handleAddedToGroup binds the group to the user who added the bot.
// Re-adding by a different user rebinds the group; last writer wins.
func (b *Bot) handleAddedToGroup(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	if err := b.links.Bind(ctx, chat.ID, sender.ID); err != nil {
		return err
	}
	b.menu.RefreshGroup(ctx, chat.ID, sender.ID)
	return tghelpers.SendText(c,
		"This group is now linked. Members can use /deposit, and my menu shows the linked commands.")
}

func isGroupChat(c tele.Context) bool {
	chat := c.Chat()
	if chat == nil {
		return false
	}
	return chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup
}
