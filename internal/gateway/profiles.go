package gateway

import "github.com/ovolkov/sparkbot/internal/models"

type payloadKind string

const (
	payloadMessages  payloadKind = "messages"
	payloadInputText payloadKind = "input_text"
	payloadAudio     payloadKind = "audio"
	payloadImage     payloadKind = "image"
)

// Profile is the static configuration for one remote model: where to reach
// it, which request shape it takes and how large its context window is.
// Profiles are never mutated at runtime.
type Profile struct {
	Name          string
	ModelPath     string
	ContextBudget int
	Payload       payloadKind
}

var profiles = map[string]Profile{
	"llama3": {
		Name:          "llama3",
		ModelPath:     "@cf/meta/llama-3-8b-instruct",
		ContextBudget: 8000,
		Payload:       payloadMessages,
	},
	"qwen-coder": {
		Name:          "qwen-coder",
		ModelPath:     "@cf/qwen/qwen2.5-coder-32b-instruct",
		ContextBudget: 32768,
		Payload:       payloadMessages,
	},
	"bart-summarizer": {
		Name:          "bart-summarizer",
		ModelPath:     "@cf/facebook/bart-large-cnn",
		ContextBudget: 1024,
		Payload:       payloadInputText,
	},
	"whisper-stt": {
		Name:          "whisper-stt",
		ModelPath:     "@cf/openai/whisper-large-v3-turbo",
		ContextBudget: 4000,
		Payload:       payloadAudio,
	},
	"llava-captioning": {
		Name:          "llava-captioning",
		ModelPath:     "@cf/llava-hf/llava-1.5-7b-hf",
		ContextBudget: 2048,
		Payload:       payloadImage,
	},
	"sdxl": {
		Name:          "sdxl",
		ModelPath:     "@cf/stabilityai/stable-diffusion-xl-base-1.0",
		ContextBudget: 2048,
		Payload:       payloadImage,
	},
}

var taskProfiles = map[models.TaskKind]string{
	models.TaskChat:            "llama3",
	models.TaskCode:            "qwen-coder",
	models.TaskSummary:         "bart-summarizer",
	models.TaskSpeechToText:    "whisper-stt",
	models.TaskImageToText:     "llava-captioning",
	models.TaskImageGeneration: "sdxl",
}

// ProfileForTask maps a logical task to its model profile. Unknown tasks
// fall back to the default chat profile; that fallback is policy, not an
// error.
func ProfileForTask(task models.TaskKind) Profile {
	if name, ok := taskProfiles[task]; ok {
		return profiles[name]
	}
	return profiles["llama3"]
}
