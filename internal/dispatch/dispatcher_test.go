package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/models"
	"github.com/ovolkov/sparkbot/internal/session"
	"github.com/ovolkov/sparkbot/internal/storage"
)

// fakeGateway records calls and replays canned results.
type fakeGateway struct {
	completeResult models.InferenceResult
	imageResult    models.InferenceResult
	voiceResult    models.InferenceResult
	captionResult  models.InferenceResult
	summaryResult  models.InferenceResult

	completeCalls []completeCall
	imagePrompts  []string
}

type completeCall struct {
	task    models.TaskKind
	prompt  string
	history []models.Turn
}

func (g *fakeGateway) Complete(_ context.Context, task models.TaskKind, prompt string, history []models.Turn) models.InferenceResult {
	g.completeCalls = append(g.completeCalls, completeCall{task: task, prompt: prompt, history: history})
	return g.completeResult
}

func (g *fakeGateway) Summarize(_ context.Context, text string) models.InferenceResult {
	return g.summaryResult
}

func (g *fakeGateway) GenerateImage(_ context.Context, prompt string) models.InferenceResult {
	g.imagePrompts = append(g.imagePrompts, prompt)
	return g.imageResult
}

func (g *fakeGateway) Transcribe(_ context.Context, _ []byte) models.InferenceResult {
	return g.voiceResult
}

func (g *fakeGateway) Caption(_ context.Context, _ []byte) models.InferenceResult {
	return g.captionResult
}

func newTestDispatcher(gw *fakeGateway) (*Dispatcher, *session.Store, *storage.MemoryLog) {
	sessions := session.NewStore()
	log := storage.NewMemoryLog()
	return New(sessions, gw, log, zap.NewNop()), sessions, log
}

func TestHandleTextChatEndToEnd(t *testing.T) {
	gw := &fakeGateway{completeResult: models.TextResult("Hi there")}
	d, sessions, log := newTestDispatcher(gw)

	replies := d.HandleText(context.Background(), 1, "Hello")

	require.Len(t, replies, 1)
	assert.Equal(t, "Hi there", replies[0].Text)

	history := sessions.History(1)
	require.Len(t, history, 2)
	assert.Equal(t, models.Turn{Role: models.RoleUser, Content: "Hello"}, history[0])
	assert.Equal(t, models.Turn{Role: models.RoleAssistant, Content: "Hi there"}, history[1])

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.RoleUser, entries[0].Role)
	assert.Equal(t, "Hello", entries[0].Message)
	assert.Equal(t, models.RoleAssistant, entries[1].Role)
	assert.Equal(t, "Hi there", entries[1].Message)
}

func TestHandleTextSecondCallCarriesFirstExchange(t *testing.T) {
	gw := &fakeGateway{completeResult: models.TextResult("Hi there")}
	d, _, _ := newTestDispatcher(gw)

	d.HandleText(context.Background(), 1, "Hello")
	gw.completeResult = models.TextResult("Doing fine")
	d.HandleText(context.Background(), 1, "How are you?")

	require.Len(t, gw.completeCalls, 2)
	assert.Empty(t, gw.completeCalls[0].history)

	second := gw.completeCalls[1]
	require.Len(t, second.history, 2)
	assert.Equal(t, models.Turn{Role: models.RoleUser, Content: "Hello"}, second.history[0])
	assert.Equal(t, models.Turn{Role: models.RoleAssistant, Content: "Hi there"}, second.history[1])
	assert.Equal(t, "How are you?", second.prompt)
}

func TestHandleTextImageTriggerOverridesMode(t *testing.T) {
	gw := &fakeGateway{imageResult: models.ImageResult("base64data", "Here's your image for: 'a cat'")}
	d, sessions, log := newTestDispatcher(gw)

	// Mode is chat, but the trigger phrase forces image generation.
	sessions.SetMode(1, models.ModeChat)
	replies := d.HandleText(context.Background(), 1, "Generate image of a cat")

	require.Len(t, gw.imagePrompts, 1)
	assert.Equal(t, "of a cat", gw.imagePrompts[0])
	assert.Empty(t, gw.completeCalls)

	require.Len(t, replies, 1)
	assert.Equal(t, models.ResultImage, replies[0].Kind)
	assert.Equal(t, "base64data", replies[0].ImageData)

	// Only the assistant turn is logged in the image path, and history
	// is untouched.
	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.RoleAssistant, entries[0].Role)
	assert.Equal(t, models.TypeImage, entries[0].Type)
	assert.Empty(t, sessions.History(1))
}

func TestHandleTextImageMode(t *testing.T) {
	gw := &fakeGateway{imageResult: models.ImageResult("imgdata", "caption")}
	d, sessions, _ := newTestDispatcher(gw)

	sessions.SetMode(1, models.ModeImage)
	replies := d.HandleText(context.Background(), 1, "a sunset over mountains")

	require.Len(t, gw.imagePrompts, 1)
	assert.Equal(t, "a sunset over mountains", gw.imagePrompts[0])
	assert.Equal(t, models.ResultImage, replies[0].Kind)
}

func TestHandleTextOtherModeSkipsHistoryContext(t *testing.T) {
	gw := &fakeGateway{completeResult: models.TextResult("ok")}
	d, sessions, _ := newTestDispatcher(gw)

	sessions.SetMode(1, models.ModeAnalysis)
	sessions.AppendExchange(1, "earlier", "turns")
	d.HandleText(context.Background(), 1, "question")

	require.Len(t, gw.completeCalls, 1)
	assert.Empty(t, gw.completeCalls[0].history)
}

func TestHandleTextFailureLeavesSessionUntouched(t *testing.T) {
	gw := &fakeGateway{completeResult: models.FailureResult("Error: llama3 returned status 502")}
	d, sessions, log := newTestDispatcher(gw)

	sessions.AppendExchange(1, "before", "failure")
	replies := d.HandleText(context.Background(), 1, "Hello")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Error:")

	history := sessions.History(1)
	require.Len(t, history, 2)
	assert.Equal(t, "before", history[0].Content)
	assert.Empty(t, log.Entries())
}

func TestHandleTextChunksLongResponse(t *testing.T) {
	long := strings.Repeat("x", MaxMessageLength*2+10)
	gw := &fakeGateway{completeResult: models.TextResult(long)}
	d, _, _ := newTestDispatcher(gw)

	replies := d.HandleText(context.Background(), 1, "tell me everything")

	require.Len(t, replies, 3)
	var rebuilt strings.Builder
	for _, r := range replies {
		assert.LessOrEqual(t, len([]rune(r.Text)), MaxMessageLength)
		rebuilt.WriteString(r.Text)
	}
	assert.Equal(t, long, rebuilt.String())
}

func TestHandleVoice(t *testing.T) {
	gw := &fakeGateway{voiceResult: models.TextResult("hello world")}
	d, sessions, log := newTestDispatcher(gw)

	// Mode must not matter for voice.
	sessions.SetMode(1, models.ModeImage)
	replies := d.HandleVoice(context.Background(), 1, []byte{1, 2, 3})

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "hello world")

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "[Voice Message]", entries[0].Message)
	assert.Equal(t, models.TypeVoice, entries[0].Type)
	assert.Equal(t, "hello world", entries[1].Message)
	assert.Empty(t, sessions.History(1))
}

func TestHandleVoiceFailure(t *testing.T) {
	gw := &fakeGateway{voiceResult: models.FailureResult("Error processing audio: boom")}
	d, _, log := newTestDispatcher(gw)

	replies := d.HandleVoice(context.Background(), 1, []byte{1})

	require.Len(t, replies, 1)
	assert.Equal(t, "Sorry, couldn't process the voice message.", replies[0].Text)
	assert.Empty(t, log.Entries())
}

func TestHandlePhoto(t *testing.T) {
	gw := &fakeGateway{captionResult: models.TextResult("a dog on a beach")}
	d, _, log := newTestDispatcher(gw)

	replies := d.HandlePhoto(context.Background(), 1, []byte{9})

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "a dog on a beach")

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "[Image]", entries[0].Message)
	assert.Equal(t, models.TypeImage, entries[0].Type)
}

func TestSetModeDoesNotTouchHistory(t *testing.T) {
	gw := &fakeGateway{}
	d, sessions, _ := newTestDispatcher(gw)

	sessions.AppendExchange(1, "a", "b")
	confirmation := d.SetMode(1, models.ModeImage)

	assert.Equal(t, "Mode switched to: Image", confirmation)
	assert.Equal(t, models.ModeImage, sessions.Mode(1))
	assert.Len(t, sessions.History(1), 2)
}

func TestTaskCommandsDoNotTouchHistory(t *testing.T) {
	gw := &fakeGateway{
		completeResult: models.TextResult("translated"),
		summaryResult:  models.TextResult("summarized"),
	}
	d, sessions, log := newTestDispatcher(gw)

	d.Translate(context.Background(), 1, "bonjour")
	d.Summarize(context.Background(), 1, "a long text")
	d.Code(context.Background(), 1, "fizzbuzz in go")

	assert.Empty(t, sessions.History(1))
	assert.Len(t, log.Entries(), 6)

	require.Len(t, gw.completeCalls, 2)
	assert.Equal(t, models.TaskChat, gw.completeCalls[0].task)
	assert.Contains(t, gw.completeCalls[0].prompt, "bonjour")
	assert.Equal(t, models.TaskCode, gw.completeCalls[1].task)
}

func TestImagePromptDetection(t *testing.T) {
	tests := []struct {
		text   string
		prompt string
		ok     bool
	}{
		{"generate image of a cat", "of a cat", true},
		{"Generate Image of a cat", "of a cat", true},
		{"create image sunset", "sunset", true},
		{"generate imagery", "ry", true}, // prefix match, same as the original
		{"please generate image", "", false},
		{"hello there", "", false},
	}
	for _, tt := range tests {
		prompt, ok := imagePrompt(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.prompt, prompt, tt.text)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, SplitMessage(""))
	assert.Equal(t, []string{"short"}, SplitMessage("short"))

	exact := strings.Repeat("a", MaxMessageLength)
	assert.Equal(t, []string{exact}, SplitMessage(exact))

	over := exact + "b"
	chunks := SplitMessage(over)
	require.Len(t, chunks, 2)
	assert.Equal(t, exact, chunks[0])
	assert.Equal(t, "b", chunks[1])

	// Multi-byte runes are never split mid-character.
	cyrillic := strings.Repeat("ж", MaxMessageLength+1)
	chunks = SplitMessage(cyrillic)
	require.Len(t, chunks, 2)
	assert.Equal(t, cyrillic, chunks[0]+chunks[1])
	assert.Equal(t, MaxMessageLength, len([]rune(chunks[0])))
}
