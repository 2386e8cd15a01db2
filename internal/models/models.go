package models

import (
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Mode is the per-user sticky setting that selects which inference task
// plain-text messages are dispatched to.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeImage    Mode = "image"
	ModeVoice    Mode = "voice"
	ModeAnalysis Mode = "analysis"
)

// ParseMode validates a mode name coming from an untrusted source, such as
// a callback payload. Unknown names are an error, not a silent default.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeImage, ModeVoice, ModeAnalysis:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// TaskKind names a logical inference task used to pick a model profile.
type TaskKind string

const (
	TaskChat            TaskKind = "chat"
	TaskCode            TaskKind = "code"
	TaskSummary         TaskKind = "summary"
	TaskSpeechToText    TaskKind = "speech_to_text"
	TaskImageToText     TaskKind = "image_to_text"
	TaskImageGeneration TaskKind = "image_generation"
)

// MessageType classifies a logged message for the conversation log.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeVoice MessageType = "voice"
	TypeImage MessageType = "image"
)

// Turn is one role-tagged message inside a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResultKind discriminates the payload of an InferenceResult.
type ResultKind string

const (
	ResultText  ResultKind = "text"
	ResultImage ResultKind = "image"
)

// InferenceResult is the uniform shape every gateway call produces.
// Exactly one of Text or ImageData is populated, selected by Kind. Failures
// arrive as ResultText with Failed set, still carrying a displayable
// diagnostic message; the gateway never returns a bare error.
type InferenceResult struct {
	Kind      ResultKind
	Text      string
	ImageData string // base64-encoded PNG
	Caption   string
	Failed    bool
}

// TextResult builds a successful text-kind result.
func TextResult(text string) InferenceResult {
	return InferenceResult{Kind: ResultText, Text: text}
}

// FailureResult builds a failed result whose text is a user-displayable
// diagnostic.
func FailureResult(diagnostic string) InferenceResult {
	return InferenceResult{Kind: ResultText, Text: diagnostic, Failed: true}
}

// ImageResult builds an image-kind result.
func ImageResult(data, caption string) InferenceResult {
	return InferenceResult{Kind: ResultImage, ImageData: data, Caption: caption}
}

// LogEntry is one append-only conversation log row.
type LogEntry struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Role      Role        `json:"role"`
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	IsUser    bool        `json:"is_user"`
}
