// Package bot implements the chat command surface: commands, the settings
// menu with its conversation states, inline callbacks and file intake.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/telegram"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger is the outgoing side of the chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb transfer.Keyboard) (transfer.MessageRef, error)
	EditText(ctx context.Context, ref transfer.MessageRef, text string, kb transfer.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Jobs interface {
	Enqueue(ctx context.Context, req transfer.Request) (string, error)
	Cancel(id string) transfer.CancelResult
	Status(id string) (transfer.Snapshot, bool)
	Stats() transfer.Stats
}

type Credentials interface {
	Add(ctx context.Context, userID int64, email, secret string) (models.Credential, error)
	List(ctx context.Context, userID int64) []models.Credential
	Select(ctx context.Context, userID int64, index int) error
	Remove(ctx context.Context, userID int64, index int) (models.Credential, error)
	Validate(ctx context.Context, userID int64, index int) (models.Credential, error)
	Selected(ctx context.Context, userID int64) (models.Credential, int, bool)
	Clear(ctx context.Context, userID int64) error
}

type Users interface {
	Record(ctx context.Context, id int64, username string) (bool, error)
	Count() int
	List() []models.SeenUser
	Clear(ctx context.Context) error
}

type Options struct {
	AdminIDs     []int64
	LogChannelID int64
}

// Handler routes updates. Each update is handled on its own goroutine so a
// slow provider login never stalls other users.
type Handler struct {
	msg   Messenger
	jobs  Jobs
	creds Credentials
	users Users
	conv  *Conversations
	opts  Options
	log   logging.Logger

	wg sync.WaitGroup
}

func NewHandler(msg Messenger, jobs Jobs, creds Credentials, users Users, opts Options, log logging.Logger) *Handler {
	return &Handler{
		msg:   msg,
		jobs:  jobs,
		creds: creds,
		users: users,
		conv:  NewConversations(),
		opts:  opts,
		log:   log.With("module", "bot"),
	}
}

// Run consumes updates until the channel closes or ctx is done, then waits
// for in-flight handlers.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.Handle(ctx, u)
			}()
		}
	}
}

func (h *Handler) Handle(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		h.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		h.handleMessage(ctx, u.Message)
	}
}

func (h *Handler) isAdmin(userID int64) bool {
	return slices.Contains(h.opts.AdminIDs, userID)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, kb transfer.Keyboard) {
	if _, err := h.msg.SendText(ctx, chatID, text, kb); err != nil {
		h.log.Warn(ctx, "reply failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	userID, chatID := m.From.ID, m.Chat.ID

	if src, ok := telegram.SourceFromMessage(m); ok {
		h.conv.Set(userID, StateIdle)
		h.enqueue(ctx, userID, chatID, m.MessageID, src)
		return
	}

	if m.IsCommand() {
		h.conv.Set(userID, StateIdle)
		h.handleCommand(ctx, m, userID, chatID)
		return
	}

	text := strings.TrimSpace(m.Text)
	switch h.conv.Take(userID) {
	case StateAwaitingCredential:
		h.addCredential(ctx, userID, chatID, text)
	case StateAwaitingSwitchIndex:
		h.withIndex(ctx, chatID, text, func(i int) { h.switchAccount(ctx, userID, chatID, i) })
	case StateAwaitingRemoveIndex:
		h.withIndex(ctx, chatID, text, func(i int) { h.removeAccount(ctx, userID, chatID, i) })
	case StateAwaitingCheckIndex:
		h.withIndex(ctx, chatID, text, func(i int) { h.checkAccount(ctx, userID, chatID, i) })
	default:
		if text == "" {
			h.reply(ctx, chatID, textNoFile, nil)
			return
		}
		h.reply(ctx, chatID, textSendFile, nil)
	}
}

func (h *Handler) handleCommand(ctx context.Context, m *tgbotapi.Message, userID, chatID int64) {
	args := strings.TrimSpace(m.CommandArguments())

	switch m.Command() {
	case "start":
		h.start(ctx, m.From, chatID)
	case "help":
		h.reply(ctx, chatID, textHelp, nil)
	case "settings":
		h.reply(ctx, chatID, textSettings, settingsKeyboard())
	case "addaccount":
		if args == "" {
			h.conv.Set(userID, StateAwaitingCredential)
			h.reply(ctx, chatID, textAskCredential, nil)
			return
		}
		h.addCredential(ctx, userID, chatID, args)
	case "accounts":
		h.listAccounts(ctx, userID, chatID)
	case "switch":
		h.indexCommand(ctx, userID, chatID, args, StateAwaitingSwitchIndex, textAskSwitch, h.switchAccount)
	case "remove":
		h.indexCommand(ctx, userID, chatID, args, StateAwaitingRemoveIndex, textAskRemove, h.removeAccount)
	case "check":
		h.indexCommand(ctx, userID, chatID, args, StateAwaitingCheckIndex, textAskCheck, h.checkAccount)
	case "selected":
		h.showSelected(ctx, userID, chatID)
	case "clearaccounts":
		h.clearAccounts(ctx, userID, chatID)
	case "status":
		h.status(ctx, userID, chatID, args)
	case "cancel":
		if args == "" {
			h.reply(ctx, chatID, fmt.Sprintf(textJobUsage, "/cancel"), nil)
			return
		}
		h.reply(ctx, chatID, h.cancel(ctx, userID, args), nil)
	case "admin":
		h.adminPanel(ctx, userID, chatID)
	default:
		h.reply(ctx, chatID, textUnknownCommand, nil)
	}
}

func (h *Handler) start(ctx context.Context, from *tgbotapi.User, chatID int64) {
	if h.users != nil {
		isNew, err := h.users.Record(ctx, from.ID, from.UserName)
		if err != nil {
			h.log.Warn(ctx, "record user failed", "user_id", from.ID, "error", err)
		}
		if isNew && h.opts.LogChannelID != 0 {
			name := "@" + from.UserName
			if from.UserName == "" {
				name = from.FirstName
			}
			h.reply(ctx, h.opts.LogChannelID, fmt.Sprintf(textNewUserLogMessage, from.ID, name), nil)
		}
	}
	h.reply(ctx, chatID, textWelcome, transfer.Keyboard{{
		{Text: "Help", Data: cbHelp},
		{Text: "Settings", Data: cbSettings},
	}})
}

func (h *Handler) enqueue(ctx context.Context, userID, chatID int64, messageID int, src media.Source) {
	id, err := h.jobs.Enqueue(ctx, transfer.Request{
		UserID:    userID,
		ChatID:    chatID,
		MessageID: messageID,
		Source:    src,
		SizeHint:  src.SizeHint(),
	})
	switch {
	case errors.Is(err, common.ErrDuplicateJob):
		h.reply(ctx, chatID, textDuplicate, nil)
	case errors.Is(err, common.ErrShuttingDown):
		h.reply(ctx, chatID, textShuttingDown, nil)
	case err != nil:
		h.log.Error(ctx, "enqueue failed", "user_id", userID, "error", err)
		h.reply(ctx, chatID, "Could not queue the file: "+err.Error(), nil)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Added to queue. Job: %s", id), transfer.Keyboard{{
			{Text: "Cancel", Data: transfer.CancelData(id)},
		}})
	}
}

// status shows a job to its owner or an admin; anyone else gets the same
// reply as for an unknown id.
func (h *Handler) status(ctx context.Context, userID, chatID int64, id string) {
	if id == "" {
		h.reply(ctx, chatID, fmt.Sprintf(textJobUsage, "/status"), nil)
		return
	}
	snap, ok := h.jobs.Status(id)
	if !ok || (snap.UserID != userID && !h.isAdmin(userID)) {
		h.reply(ctx, chatID, "No such job: "+id, nil)
		return
	}
	h.reply(ctx, chatID, formatSnapshot(snap), nil)
}

// cancel only lets users cancel their own jobs; admins may cancel any.
func (h *Handler) cancel(ctx context.Context, userID int64, id string) string {
	snap, ok := h.jobs.Status(id)
	if !ok || (snap.UserID != userID && !h.isAdmin(userID)) {
		return textCancelNotFound
	}
	if h.jobs.Cancel(id) != transfer.CancelAccepted {
		return textCancelNotFound
	}
	h.log.Info(ctx, "cancel requested", "job_id", id, "user_id", userID)
	return textCancelAccepted
}

func (h *Handler) adminPanel(ctx context.Context, userID, chatID int64) {
	if !h.isAdmin(userID) {
		h.reply(ctx, chatID, textNotAdmin, nil)
		return
	}

	st := h.jobs.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Admin panel\n\n")
	if h.users != nil {
		fmt.Fprintf(&b, "Total users: %d\n", h.users.Count())
	}
	fmt.Fprintf(&b, "Files relayed: %d\nFailed: %d\nCancelled: %d\nQueued: %d\nActive: %d\nUsers transferring: %d",
		st.Succeeded, st.Failed, st.Cancelled, st.Queued, st.Active, st.Users)

	if h.users != nil {
		list := h.users.List()
		if len(list) > 0 {
			b.WriteString("\n\nLogged users:")
			for _, u := range list {
				fmt.Fprintf(&b, "\n%d @%s", u.ID, u.Username)
			}
		}
	}

	h.reply(ctx, chatID, b.String(), transfer.Keyboard{{{Text: "Clear logged users", Data: cbClearUsers}}})
}

func formatSnapshot(s transfer.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s\nFile: %s\nStatus: %s", s.ID, s.FileName, s.Status)
	if s.Account != "" {
		fmt.Fprintf(&b, "\nAccount: %s", s.Account)
	}
	if s.Link != "" {
		fmt.Fprintf(&b, "\nLink: %s", s.Link)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", s.Error)
	}
	return b.String()
}

func parseIndex(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
