package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/dispatch"
	"github.com/ovolkov/sparkbot/internal/session"
)

const welcomeMessage = `🤖 Welcome to the AI Assistant!

Available Commands:
/start - Start bot
/help - Show help
/clear - Clear chat history
/settings - Bot settings
/stats - Usage statistics
/mode - Change AI mode
/translate <text> - Translate to English
/summarize <text> - Summarize text
/code <prompt> - Ask the code model
/remind <time> <text> - Set a reminder

Features:
• Chat with context
• Image generation
• Voice transcription
• Image analysis
• Reminders`

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.sendMessage(message.Chat.ID, welcomeMessage)
	case "clear":
		b.dispatcher.Clear(message.From.ID)
		b.sendMessage(message.Chat.ID, "🗑 Chat history cleared.")
	case "settings":
		b.handleSettings(message)
	case "stats":
		b.handleStats(ctx, message)
	case "mode":
		b.sendModeKeyboard(message.Chat.ID, "Choose a mode:")
	case "translate":
		b.handleTaskCommand(ctx, message, "Usage: /translate <text>", b.dispatcher.Translate)
	case "summarize":
		b.handleTaskCommand(ctx, message, "Usage: /summarize <text>", b.dispatcher.Summarize)
	case "code":
		b.handleTaskCommand(ctx, message, "Usage: /code <prompt>", b.dispatcher.Code)
	case "remind":
		b.handleRemind(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	b.dispatcher.EnsureSession(message.From.ID)

	msg := tgbotapi.NewMessage(message.Chat.ID, welcomeMessage)
	msg.ReplyMarkup = modeKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send welcome message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		return
	}

	b.dispatcher.RecordOutbound(ctx, message.From.ID, welcomeMessage)
}

func (b *Bot) handleSettings(message *tgbotapi.Message) {
	mode := b.dispatcher.Mode(message.From.ID)
	text := fmt.Sprintf("⚙️ Settings\nMode: %s\nHistory limit: %d turns\nMessage limit: 4096 characters",
		mode, session.MaxHistoryLength)
	b.sendMessage(message.Chat.ID, text)
}

// handleStats reports the caller's logged message counts. Admins may pass
// another user's id as an argument.
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" && b.isAdmin(message.From.ID) {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.sendMessage(message.Chat.ID, "Usage: /stats [user id]")
			return
		}
		userID = id
	}

	stats, err := b.dispatcher.Stats(ctx, userID)
	if err != nil {
		b.logger.Error("failed to read stats",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, couldn't retrieve statistics.")
		return
	}

	text := fmt.Sprintf("📊 Usage statistics\nTotal messages: %d", stats.Total)
	for msgType, count := range stats.ByType {
		text += fmt.Sprintf("\n%s: %d", msgType, count)
	}
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleTaskCommand(ctx context.Context, message *tgbotapi.Message, usage string, run func(context.Context, int64, string) []dispatch.Reply) {
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.sendMessage(message.Chat.ID, usage)
		return
	}

	replies := run(ctx, message.From.ID, text)
	b.sendReplies(message.Chat.ID, replies)
}

func (b *Bot) handleRemind(message *tgbotapi.Message) {
	delay, text, err := parseRemindArgs(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /remind <time> <text>, e.g. /remind 10m take a break")
		return
	}

	jobID, err := b.reminders.Schedule(message.Chat.ID, time.Now().Add(delay), text)
	if err != nil {
		b.logger.Error("failed to schedule reminder",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, errSomethingWentWrong)
		return
	}

	b.logger.Info("reminder scheduled",
		zap.String("job", jobID),
		zap.Int64("chat_id", message.Chat.ID),
		zap.Duration("delay", delay))
	b.sendMessage(message.Chat.ID, fmt.Sprintf("⏰ Reminder set for %s from now.", delay))
}

// parseRemindArgs splits "/remind <time> <text>" arguments. The time part
// is a Go duration ("10m", "1h30m") or a bare number of minutes.
func parseRemindArgs(args string) (time.Duration, string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 || parts[1] == "" {
		return 0, "", fmt.Errorf("missing reminder text")
	}

	delay, err := time.ParseDuration(parts[0])
	if err != nil {
		minutes, convErr := strconv.Atoi(parts[0])
		if convErr != nil {
			return 0, "", fmt.Errorf("bad time %q", parts[0])
		}
		delay = time.Duration(minutes) * time.Minute
	}
	if delay <= 0 {
		return 0, "", fmt.Errorf("time must be in the future")
	}

	return delay, strings.TrimSpace(parts[1]), nil
}

func (b *Bot) sendModeKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = modeKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send mode keyboard",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func modeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Chat", "mode_chat"),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Image Gen", "mode_image"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎤 Voice", "mode_voice"),
			tgbotapi.NewInlineKeyboardButtonData("📷 Image Analysis", "mode_analysis"),
		),
	)
}
