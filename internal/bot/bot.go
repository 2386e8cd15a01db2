package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/audio"
	"github.com/ovolkov/sparkbot/internal/dispatch"
	"github.com/ovolkov/sparkbot/internal/models"
	"github.com/ovolkov/sparkbot/internal/reminder"
)

const errSomethingWentWrong = "Sorry, something went wrong. Please try again."

type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	reminders  *reminder.Scheduler
	admins     map[int64]struct{}
	httpClient *http.Client
	logger     *zap.Logger
}

func New(token string, adminIDs []int64, dispatcher *dispatch.Dispatcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{
		api:        api,
		dispatcher: dispatcher,
		admins:     admins,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}

	b.reminders, err = reminder.NewScheduler(b.sendText, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder scheduler: %w", err)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.reminders.Start()
	defer b.reminders.Stop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
			query := update.CallbackQuery
			go b.safely(query.Message.Chat.ID, func() {
				b.handleCallback(query)
			})
			continue
		}
		if update.Message == nil {
			continue
		}

		message := update.Message
		go b.safely(message.Chat.ID, func() {
			b.handleMessage(message)
		})
	}

	return nil
}

// safely runs fn and converts any panic into the fixed error reply, so a
// single bad update never takes the process down.
func (b *Bot) safely(chatID int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic", zap.Any("panic", r), zap.Int64("chat_id", chatID))
			b.sendErrorMessage(chatID, errSomethingWentWrong)
		}
	}()
	fn()
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	switch {
	case message.IsCommand():
		b.handleCommand(ctx, message)
	case message.Voice != nil:
		b.handleVoice(ctx, message)
	case len(message.Photo) > 0:
		b.handlePhoto(ctx, message)
	case message.Text != "":
		replies := b.dispatcher.HandleText(ctx, message.From.ID, message.Text)
		b.sendReplies(message.Chat.ID, replies)
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Error("failed to answer callback", zap.Error(err))
	}

	const prefix = "mode_"
	data := query.Data
	if len(data) <= len(prefix) || data[:len(prefix)] != prefix {
		return
	}

	mode, err := models.ParseMode(data[len(prefix):])
	if err != nil {
		b.logger.Warn("unknown mode in callback",
			zap.String("data", data),
			zap.Int64("user_id", query.From.ID))
		b.sendErrorMessage(query.Message.Chat.ID, "Unknown mode selected.")
		return
	}

	confirmation := b.dispatcher.SetMode(query.From.ID, mode)
	b.sendMessage(query.Message.Chat.ID, confirmation)
}

func (b *Bot) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID, "🎤 Processing voice message...")

	wav, err := b.downloadVoice(ctx, message.Voice.FileID)
	if err != nil {
		b.logger.Error("voice processing failed",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, couldn't process the voice message.")
		return
	}

	replies := b.dispatcher.HandleVoice(ctx, message.From.ID, wav)
	b.sendReplies(message.Chat.ID, replies)
}

func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID, "🖼 Analyzing image...")

	// Telegram sends multiple sizes; the last one is the largest.
	photo := message.Photo[len(message.Photo)-1]
	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("photo processing failed",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, couldn't analyze the image.")
		return
	}

	replies := b.dispatcher.HandlePhoto(ctx, message.From.ID, data)
	b.sendReplies(message.Chat.ID, replies)
}

// downloadVoice fetches a voice clip and converts it to the WAV encoding
// the transcription model requires.
func (b *Bot) downloadVoice(ctx context.Context, fileID string) ([]byte, error) {
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return audio.ConvertToWAV(ctx, data)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (b *Bot) sendReplies(chatID int64, replies []dispatch.Reply) {
	for _, reply := range replies {
		switch reply.Kind {
		case models.ResultImage:
			b.sendPhoto(chatID, reply.ImageData, reply.Caption)
		default:
			b.sendMessage(chatID, reply.Text)
		}
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendPhoto(chatID int64, imageBase64, caption string) {
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		b.logger.Error("failed to decode image payload",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, errSomethingWentWrong)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("failed to send photo",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}
