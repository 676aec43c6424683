package flows

import (
	"errors"
	"fmt"

	"github.com/Edaad/gg-support-bot/core/logger"
	"github.com/Edaad/gg-support-bot/core/telegram/callbacks"
	tghelpers "github.com/Edaad/gg-support-bot/core/telegram/helpers"
	"github.com/Edaad/gg-support-bot/core/telegram/keyboard"
	"github.com/Edaad/gg-support-bot/core/telegram/state"
	"github.com/Edaad/gg-support-bot/internal/links"
	"github.com/Edaad/gg-support-bot/internal/presets"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

const (
	// FlowDeposit collects a payment method and an amount in a linked group.
	FlowDeposit state.Flow = "deposit_request"

	// StateDepositChooseMethod waits for a payment method button press.
	StateDepositChooseMethod state.State = "deposit.choosing_method"
	// StateDepositAwaitAmount waits for the free-text amount.
	StateDepositAwaitAmount state.State = "deposit.awaiting_amount"
)

// MethodCallback keys the payment method selection buttons.
const MethodCallback = "deposit_method"

// Method maps a selectable payment method to the well-known preset
// name it resolves on the linked owner.
type Method struct {
	Key    string
	Label  string
	Preset string
}

// Methods are the payment choices offered by the deposit flow.
var Methods = []Method{
	{Key: "venmo", Label: "Venmo", Preset: "botvenmo"},
	{Key: "zelle", Label: "Zelle", Preset: "botzelle"},
	{Key: "cashapp", Label: "CashApp", Preset: "botcashapp"},
	{Key: "paypal", Label: "PayPal", Preset: "botpaypal"},
	{Key: "crypto", Label: "Crypto", Preset: "botcrypto"},
}

type depositScratch struct {
	chatID  int64
	ownerID int64
	method  Method
}

// Deposit drives the deposit request conversation. It only runs in
// group chats that are linked to an owner.
type Deposit struct {
	sessions state.Manager
	store    *presets.Store
	links    *links.Registry
}

// NewDeposit wires the flow and registers its amount state handler.
// The method selection step is callback-driven and must additionally
// be registered under MethodCallback in the callback registry.
func NewDeposit(sessions state.Manager, store *presets.Store, reg *links.Registry) *Deposit {
	d := &Deposit{
		sessions: sessions,
		store:    store,
		links:    reg,
	}
	sessions.RegisterHandler(StateDepositAwaitAmount, d.handleAmount)
	return d
}

// Start enters the flow; bound to /deposit. Refuses outside group
// chats and in groups without a link; neither case creates a session.
func (d *Deposit) Start(c tele.Context) error {
	if !isGroupChat(c) {
		return tghelpers.SendText(c, "/deposit only works in a group chat.")
	}

	key := state.KeyFrom(c)
	ctx := tghelpers.BuildContext(c)

	ownerID, err := d.links.Resolve(ctx, key.ChatID)
	if errors.Is(err, links.ErrNotLinked) {
		return tghelpers.SendText(c,
			"This group is not linked to a club yet. Re-add me to the group to link it.")
	}
	if err != nil {
		return err
	}

	d.sessions.Begin(key, FlowDeposit, StateDepositChooseMethod, &depositScratch{
		chatID:  key.ChatID,
		ownerID: ownerID,
	})

	buttons := make([]keyboard.InlineBtn, len(Methods))
	for i, m := range Methods {
		buttons[i] = keyboard.InlineBtn{Text: m.Label, Unique: MethodCallback, Data: m.Key}
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)

	logger.Debug(ctx, "flow", "deposit.started",
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
		slog.Int64("owner_id", ownerID),
	)
	return tghelpers.SendText(c, "How would you like to deposit?", &tele.SendOptions{ReplyMarkup: markup})
}

// HandleMethod consumes the payment method button press; registered
// under MethodCallback in the callback registry.
func (d *Deposit) HandleMethod(c tele.Context) error {
	key := state.KeyFrom(c)
	sess, ok := d.sessions.Get(key)
	if !ok || sess.Flow != FlowDeposit || sess.State != StateDepositChooseMethod {
		return nil
	}
	scratch, ok := sess.Scratch.(*depositScratch)
	if !ok {
		d.sessions.Clear(key)
		return nil
	}
	// A press relayed from another chat never advances this session.
	if scratch.chatID != key.ChatID {
		return nil
	}

	methodKey := callbacks.CallbackPayload(c)
	method, ok := methodByKey(methodKey)
	if !ok {
		return nil
	}

	scratch.method = method
	d.sessions.SetState(key, StateDepositAwaitAmount)

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "flow", "deposit.method_chosen",
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
		slog.String("method", method.Key),
	)
	return tghelpers.EditText(c, fmt.Sprintf("Method: %s\nNow send the deposit amount.", method.Label))
}

func (d *Deposit) handleAmount(c tele.Context) error {
	key := state.KeyFrom(c)
	sess, ok := d.sessions.Get(key)
	if !ok || sess.Flow != FlowDeposit {
		return nil
	}
	scratch, ok := sess.Scratch.(*depositScratch)
	if !ok || scratch.method.Key == "" {
		d.sessions.Clear(key)
		return nil
	}

	amount := c.Text()
	ctx := tghelpers.BuildContext(c)

	entry, err := d.store.Lookup(ctx, scratch.ownerID, scratch.method.Preset)
	if errors.Is(err, presets.ErrNotFound) {
		d.sessions.Clear(key)
		return tghelpers.SendText(c, fmt.Sprintf(
			"This club has not configured %s deposits yet.", scratch.method.Label))
	}
	if err != nil {
		d.sessions.Clear(key)
		return err
	}

	d.sessions.Clear(key)

	header := fmt.Sprintf("Amount: %s", amount)
	switch entry.Kind {
	case presets.KindPhoto:
		if entry.FileID == "" {
			return tghelpers.SendText(c, "Error: Photo data is corrupted.")
		}
		caption := header
		if entry.Caption != "" {
			caption = header + "\n" + entry.Caption
		}
		if err := tghelpers.SendPhoto(c, entry.FileID, caption); err != nil {
			return err
		}
	default:
		if err := tghelpers.SendLongText(c, header+"\n"+entry.Content); err != nil {
			return err
		}
	}

	logger.Info(ctx, "flow", "deposit.completed",
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
		slog.String("method", scratch.method.Key),
	)

	// Separate announcement so the whole group sees the request.
	return tghelpers.SendText(c, fmt.Sprintf(
		"Deposit request: %s — amount %s", scratch.method.Label, amount))
}

func methodByKey(key string) (Method, bool) {
	for _, m := range Methods {
		if m.Key == key {
			return m, true
		}
	}
	return Method{}, false
}
