package bot

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/megarelay/internal/transfer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbHelp       = "help"
	cbSettings   = "settings"
	cbClearUsers = "clear_logged_users"

	cbSettingsPrefix = "settings:"
	cbCancelPrefix   = "cancel:"
)

func settingsKeyboard() transfer.Keyboard {
	return transfer.Keyboard{
		{{Text: "Add account", Data: cbSettingsPrefix + "add"}, {Text: "List accounts", Data: cbSettingsPrefix + "list"}},
		{{Text: "Switch account", Data: cbSettingsPrefix + "switch"}, {Text: "Remove account", Data: cbSettingsPrefix + "remove"}},
		{{Text: "Check account", Data: cbSettingsPrefix + "check"}, {Text: "Selected account", Data: cbSettingsPrefix + "selected"}},
		{{Text: "Clear all accounts", Data: cbSettingsPrefix + "clear"}},
	}
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	userID := q.From.ID
	chatID := userID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	toast := ""
	switch data := q.Data; {
	case data == cbHelp:
		h.reply(ctx, chatID, textHelp, nil)
	case data == cbSettings:
		h.reply(ctx, chatID, textSettings, settingsKeyboard())
	case data == cbClearUsers:
		toast = h.clearUsers(ctx, userID, chatID)
	case strings.HasPrefix(data, cbCancelPrefix):
		toast = h.cancel(ctx, userID, strings.TrimPrefix(data, cbCancelPrefix))
	case strings.HasPrefix(data, cbSettingsPrefix):
		h.settingsAction(ctx, userID, chatID, strings.TrimPrefix(data, cbSettingsPrefix))
	default:
		h.log.Debug(ctx, "unknown callback", "data", data)
	}

	if err := h.msg.AnswerCallback(ctx, q.ID, toast); err != nil {
		h.log.Debug(ctx, "answer callback failed", "error", err)
	}
}

func (h *Handler) settingsAction(ctx context.Context, userID, chatID int64, action string) {
	switch action {
	case "add":
		h.conv.Set(userID, StateAwaitingCredential)
		h.reply(ctx, chatID, textAskCredential, nil)
	case "list":
		h.listAccounts(ctx, userID, chatID)
	case "switch":
		h.indexCommand(ctx, userID, chatID, "", StateAwaitingSwitchIndex, textAskSwitch, h.switchAccount)
	case "remove":
		h.indexCommand(ctx, userID, chatID, "", StateAwaitingRemoveIndex, textAskRemove, h.removeAccount)
	case "check":
		h.indexCommand(ctx, userID, chatID, "", StateAwaitingCheckIndex, textAskCheck, h.checkAccount)
	case "selected":
		h.showSelected(ctx, userID, chatID)
	case "clear":
		h.clearAccounts(ctx, userID, chatID)
	}
}

func (h *Handler) clearUsers(ctx context.Context, userID, chatID int64) string {
	if !h.isAdmin(userID) {
		return textNotAdmin
	}
	if h.users == nil {
		return ""
	}
	if err := h.users.Clear(ctx); err != nil {
		h.log.Error(ctx, "clear users failed", "error", err)
		return "Failed: " + err.Error()
	}
	h.reply(ctx, chatID, textUsersCleared, nil)
	return textUsersCleared
}
