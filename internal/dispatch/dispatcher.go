// Package dispatch is the message-handling core: it resolves the user's
// mode, picks the inference task, normalizes the result, maintains session
// history and writes the conversation log, producing transport-ready
// replies for the bot layer to send.
package dispatch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/models"
	"github.com/ovolkov/sparkbot/internal/session"
	"github.com/ovolkov/sparkbot/internal/storage"
)

// MaxMessageLength is the transport limit for one outbound text message.
// Longer texts are sliced into chunks of this many characters, with no
// word-boundary awareness.
const MaxMessageLength = 4096

// Trigger phrases that force image generation regardless of mode.
var imageTriggers = []string{"generate image", "create image"}

// Gateway is the inference client the dispatcher calls. Implementations
// never return errors; failures come back as Failed results.
type Gateway interface {
	Complete(ctx context.Context, task models.TaskKind, prompt string, history []models.Turn) models.InferenceResult
	Summarize(ctx context.Context, text string) models.InferenceResult
	GenerateImage(ctx context.Context, prompt string) models.InferenceResult
	Transcribe(ctx context.Context, wav []byte) models.InferenceResult
	Caption(ctx context.Context, image []byte) models.InferenceResult
}

// Reply is one outbound message, ready for the transport layer.
type Reply struct {
	Kind      models.ResultKind
	Text      string
	ImageData string // base64-encoded PNG, Kind image only
	Caption   string
}

func textReply(text string) Reply {
	return Reply{Kind: models.ResultText, Text: text}
}

type Dispatcher struct {
	sessions *session.Store
	gateway  Gateway
	log      storage.ConversationLog
	logger   *zap.Logger
}

func New(sessions *session.Store, gateway Gateway, log storage.ConversationLog, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		gateway:  gateway,
		log:      log,
		logger:   logger,
	}
}

// HandleText processes one plain-text message.
//
// A message starting with an image trigger phrase always goes to image
// generation. Otherwise the session mode decides: chat runs a completion
// with full history, image mode generates, and any other mode runs a
// completion without history context.
//
// On a text result the user and assistant turns are appended to history and
// both are logged; on an image result only the assistant turn is logged —
// the triggering user text is deliberately not (long-standing behavior,
// kept as-is pending a product decision). On a failed result the session
// and log are left untouched and the single reply carries the diagnostic.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) []Reply {
	d.sessions.GetOrCreate(userID)

	var result models.InferenceResult
	if prompt, ok := imagePrompt(text); ok {
		result = d.gateway.GenerateImage(ctx, prompt)
	} else {
		switch d.sessions.Mode(userID) {
		case models.ModeChat:
			result = d.gateway.Complete(ctx, models.TaskChat, text, d.sessions.History(userID))
		case models.ModeImage:
			result = d.gateway.GenerateImage(ctx, text)
		default:
			result = d.gateway.Complete(ctx, models.TaskChat, text, nil)
		}
	}

	if result.Failed {
		return []Reply{textReply(result.Text)}
	}

	if result.Kind == models.ResultImage {
		d.appendLog(ctx, userID, models.RoleAssistant, models.TypeImage, result.Caption)
		return []Reply{{Kind: models.ResultImage, ImageData: result.ImageData, Caption: result.Caption}}
	}

	d.sessions.AppendExchange(userID, text, result.Text)
	d.appendLog(ctx, userID, models.RoleUser, models.TypeText, text)
	d.appendLog(ctx, userID, models.RoleAssistant, models.TypeText, result.Text)

	replies := make([]Reply, 0, 1)
	for _, chunk := range SplitMessage(result.Text) {
		replies = append(replies, textReply(chunk))
	}
	return replies
}

// HandleVoice transcribes a voice clip. The audio must already be converted
// to mono 16kHz 16-bit PCM WAV. Mode is ignored: voice always goes to
// transcription. History is not touched.
func (d *Dispatcher) HandleVoice(ctx context.Context, userID int64, wav []byte) []Reply {
	result := d.gateway.Transcribe(ctx, wav)
	if result.Failed {
		return []Reply{textReply("Sorry, couldn't process the voice message.")}
	}

	d.appendLog(ctx, userID, models.RoleUser, models.TypeVoice, "[Voice Message]")
	d.appendLog(ctx, userID, models.RoleAssistant, models.TypeText, result.Text)
	return []Reply{textReply("🔊 Transcription:\n" + result.Text)}
}

// HandlePhoto captions a photo. Mode is ignored: photos always go to
// captioning. History is not touched.
func (d *Dispatcher) HandlePhoto(ctx context.Context, userID int64, image []byte) []Reply {
	result := d.gateway.Caption(ctx, image)
	if result.Failed {
		return []Reply{textReply("Sorry, couldn't analyze the image.")}
	}

	d.appendLog(ctx, userID, models.RoleUser, models.TypeImage, "[Image]")
	d.appendLog(ctx, userID, models.RoleAssistant, models.TypeText, result.Text)
	return []Reply{textReply("📝 Image description:\n" + result.Text)}
}

// Translate runs a one-off translation to English. History is not consulted
// or modified; the exchange is still logged.
func (d *Dispatcher) Translate(ctx context.Context, userID int64, text string) []Reply {
	prompt := "Translate the following text to English:\n\n" + text
	return d.oneOff(ctx, userID, models.TaskChat, prompt, text)
}

// Summarize condenses text with the summarization model.
func (d *Dispatcher) Summarize(ctx context.Context, userID int64, text string) []Reply {
	result := d.gateway.Summarize(ctx, text)
	return d.finishOneOff(ctx, userID, text, result)
}

// Code answers a programming prompt with the code model.
func (d *Dispatcher) Code(ctx context.Context, userID int64, prompt string) []Reply {
	return d.oneOff(ctx, userID, models.TaskCode, prompt, prompt)
}

func (d *Dispatcher) oneOff(ctx context.Context, userID int64, task models.TaskKind, prompt, logged string) []Reply {
	result := d.gateway.Complete(ctx, task, prompt, nil)
	return d.finishOneOff(ctx, userID, logged, result)
}

func (d *Dispatcher) finishOneOff(ctx context.Context, userID int64, inbound string, result models.InferenceResult) []Reply {
	if result.Failed {
		return []Reply{textReply(result.Text)}
	}

	d.appendLog(ctx, userID, models.RoleUser, models.TypeText, inbound)
	d.appendLog(ctx, userID, models.RoleAssistant, models.TypeText, result.Text)

	replies := make([]Reply, 0, 1)
	for _, chunk := range SplitMessage(result.Text) {
		replies = append(replies, textReply(chunk))
	}
	return replies
}

// SetMode switches the user's sticky mode and returns a confirmation.
// History is untouched.
func (d *Dispatcher) SetMode(userID int64, mode models.Mode) string {
	d.sessions.SetMode(userID, mode)
	return "Mode switched to: " + capitalize(string(mode))
}

// Clear empties the user's history, preserving the mode.
func (d *Dispatcher) Clear(userID int64) {
	d.sessions.Clear(userID)
}

// Mode reports the user's current mode.
func (d *Dispatcher) Mode(userID int64) models.Mode {
	return d.sessions.Mode(userID)
}

// EnsureSession lazily creates the user's session, as on /start.
func (d *Dispatcher) EnsureSession(userID int64) {
	d.sessions.GetOrCreate(userID)
}

// RecordOutbound logs a bot-originated outbound text, such as the welcome
// message, as an assistant turn.
func (d *Dispatcher) RecordOutbound(ctx context.Context, userID int64, text string) {
	d.appendLog(ctx, userID, models.RoleAssistant, models.TypeText, text)
}

// Stats reads the user's conversation log statistics.
func (d *Dispatcher) Stats(ctx context.Context, userID int64) (storage.Stats, error) {
	return d.log.Stats(ctx, userID)
}

func (d *Dispatcher) appendLog(ctx context.Context, userID int64, role models.Role, msgType models.MessageType, message string) {
	entry := models.LogEntry{
		UserID:  userID,
		Role:    role,
		Type:    msgType,
		Message: message,
	}
	if err := d.log.Append(ctx, entry); err != nil {
		// Log failures never block the reply.
		d.logger.Error("failed to append conversation log",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("role", string(role)))
	}
}

// imagePrompt reports whether text starts with an image trigger phrase and,
// if so, returns the remainder as the generation prompt.
func imagePrompt(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, trigger := range imageTriggers {
		if strings.HasPrefix(lower, trigger) {
			return strings.TrimSpace(text[len(trigger):]), true
		}
	}
	return "", false
}

// SplitMessage slices text into chunks of at most MaxMessageLength
// characters. The slice is a hard cut with no word-boundary awareness;
// concatenating the chunks reproduces the input exactly.
func SplitMessage(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+MaxMessageLength-1)/MaxMessageLength)
	for i := 0; i < len(runes); i += MaxMessageLength {
		end := i + MaxMessageLength
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
