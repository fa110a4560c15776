// Package telegram adapts the Telegram Bot API to the relay: it sends and
// edits status messages, answers callbacks and downloads the files users
// send.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultAPIEndpoint = tgbotapi.APIEndpoint

	downloadBufferSize = 64 * 1024
	pollTimeout        = 60
)

// Client wraps a BotAPI. It implements transfer.Messenger.
type Client struct {
	api          *tgbotapi.BotAPI
	http         *http.Client
	fileEndpoint string
	log          logging.Logger
}

// FileEndpointFor derives the file download endpoint from an API endpoint of
// the form ".../bot%s/%s".
func FileEndpointFor(apiEndpoint string) string {
	return strings.Replace(apiEndpoint, "/bot%s/%s", "/file/bot%s/%s", 1)
}

// New connects to the Bot API at apiEndpoint (empty for the public one) and
// verifies the token with getMe.
func New(token, apiEndpoint string, httpClient *http.Client, log logging.Logger) (*Client, error) {
	if apiEndpoint == "" {
		apiEndpoint = DefaultAPIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	log.Info(context.Background(), "telegram bot authorized", "username", api.Self.UserName)

	return &Client{
		api:          api,
		http:         httpClient,
		fileEndpoint: FileEndpointFor(apiEndpoint),
		log:          log,
	}, nil
}

// Username is the bot's own username.
func (c *Client) Username() string { return c.api.Self.UserName }

// Updates starts long polling. The channel is closed after ctx is done.
func (c *Client) Updates(ctx context.Context) <-chan tgbotapi.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	in := c.api.GetUpdatesChan(cfg)

	out := make(chan tgbotapi.Update)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb transfer.Keyboard) (transfer.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transfer.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if markup := toMarkup(kb); markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return transfer.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return transfer.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (c *Client) EditText(ctx context.Context, ref transfer.MessageRef, text string, kb transfer.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.ReplyMarkup = toMarkup(kb)

	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges an inline button press; text is shown as a
// toast when not empty.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// DownloadTo fetches the file behind src into localPath, reporting progress
// after every chunk. The public Bot API serves files up to 20 MB; larger
// files need a local Bot API server configured as the endpoint.
func (c *Client) DownloadTo(ctx context.Context, src media.Source, localPath string, onProgress func(current, total int64) bool) error {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: src.Ref()})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.fileEndpoint, c.api.Token, file.FilePath), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = int64(file.FileSize)
	}
	if total <= 0 {
		total = src.SizeHint()
	}

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if !onProgress(0, total) {
		return common.ErrCancelled
	}

	buf := make([]byte, downloadBufferSize)
	var current int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", localPath, err)
			}
			current += int64(n)
			if !onProgress(current, total) {
				return common.ErrCancelled
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("download: %w", rerr)
		}
	}

	return f.Close()
}

func toMarkup(kb transfer.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
