package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// indexCommand runs fn with the 0-based index parsed from args, or asks for
// the number and waits in state when args is empty.
func (h *Handler) indexCommand(ctx context.Context, userID, chatID int64, args string, state State, ask string, fn func(context.Context, int64, int64, int)) {
	if args == "" {
		if len(h.creds.List(ctx, userID)) == 0 {
			h.reply(ctx, chatID, textNoAccounts, nil)
			return
		}
		h.conv.Set(userID, state)
		h.reply(ctx, chatID, ask+"\n\n"+h.accountsText(ctx, userID), nil)
		return
	}
	h.withIndex(ctx, chatID, args, func(i int) { fn(ctx, userID, chatID, i) })
}

func (h *Handler) withIndex(ctx context.Context, chatID int64, text string, fn func(int)) {
	i, ok := parseIndex(text)
	if !ok {
		h.reply(ctx, chatID, textBadNumber, nil)
		return
	}
	fn(i)
}

func (h *Handler) addCredential(ctx context.Context, userID, chatID int64, text string) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		h.reply(ctx, chatID, textBadCredential, nil)
		return
	}

	c, err := h.creds.Add(ctx, userID, fields[0], fields[1])
	switch {
	case errors.Is(err, common.ErrAuthenticationFailed):
		h.reply(ctx, chatID, fmt.Sprintf("Account %s saved, but the login failed: %s\nFix it and use /check, or /remove it.", c.Email, c.LastError), nil)
	case err != nil:
		h.log.Error(ctx, "add account failed", "user_id", userID, "error", err)
		h.reply(ctx, chatID, "Could not save the account: "+err.Error(), nil)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Account %s added and verified.", c.Email), nil)
	}
}

func (h *Handler) accountsText(ctx context.Context, userID int64) string {
	list := h.creds.List(ctx, userID)
	if len(list) == 0 {
		return textNoAccounts
	}
	_, sel, hasSel := h.creds.Selected(ctx, userID)

	var b strings.Builder
	b.WriteString("Your accounts:")
	for i, c := range list {
		fmt.Fprintf(&b, "\n%d. %s [%s]", i+1, c.Email, c.Status)
		if hasSel && i == sel {
			b.WriteString(" (selected)")
		}
		if c.Status == models.StatusInvalid && c.LastError != "" {
			fmt.Fprintf(&b, "\n   %s", c.LastError)
		}
	}
	return b.String()
}

func (h *Handler) listAccounts(ctx context.Context, userID, chatID int64) {
	h.reply(ctx, chatID, h.accountsText(ctx, userID), nil)
}

func (h *Handler) switchAccount(ctx context.Context, userID, chatID int64, index int) {
	if err := h.creds.Select(ctx, userID, index); err != nil {
		h.replyIndexError(ctx, chatID, err)
		return
	}
	c, _, _ := h.creds.Selected(ctx, userID)
	h.reply(ctx, chatID, fmt.Sprintf("Uploads now go to account %d: %s", index+1, c.Email), nil)
}

func (h *Handler) removeAccount(ctx context.Context, userID, chatID int64, index int) {
	c, err := h.creds.Remove(ctx, userID, index)
	if err != nil {
		h.replyIndexError(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("Account %s removed.", c.Email), nil)
}

func (h *Handler) checkAccount(ctx context.Context, userID, chatID int64, index int) {
	c, err := h.creds.Validate(ctx, userID, index)
	switch {
	case errors.Is(err, common.ErrAuthenticationFailed):
		h.reply(ctx, chatID, fmt.Sprintf("Account %s is invalid: %s", c.Email, c.LastError), nil)
	case err != nil:
		h.replyIndexError(ctx, chatID, err)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Account %s is valid.", c.Email), nil)
	}
}

func (h *Handler) showSelected(ctx context.Context, userID, chatID int64) {
	c, i, ok := h.creds.Selected(ctx, userID)
	if !ok {
		if len(h.creds.List(ctx, userID)) == 0 {
			h.reply(ctx, chatID, textNoAccounts, nil)
			return
		}
		h.reply(ctx, chatID, textNoneSelected, nil)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("Selected account: %d. %s [%s]", i+1, c.Email, c.Status), nil)
}

func (h *Handler) clearAccounts(ctx context.Context, userID, chatID int64) {
	if err := h.creds.Clear(ctx, userID); err != nil {
		h.log.Error(ctx, "clear accounts failed", "user_id", userID, "error", err)
		h.reply(ctx, chatID, "Could not clear accounts: "+err.Error(), nil)
		return
	}
	h.reply(ctx, chatID, textAccountsCleared, nil)
}

func (h *Handler) replyIndexError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, common.ErrOutOfRange) {
		h.reply(ctx, chatID, textBadNumber, nil)
		return
	}
	h.log.Error(ctx, "account operation failed", "chat_id", chatID, "error", err)
	h.reply(ctx, chatID, "Something went wrong: "+err.Error(), nil)
}
