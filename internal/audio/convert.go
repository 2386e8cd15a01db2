// Package audio converts Telegram voice clips into the canonical encoding
// the transcription model expects: mono, 16kHz, 16-bit PCM WAV.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ConvertToWAV runs ffmpeg over the input bytes (OGG/Opus as delivered by
// Telegram, though any format ffmpeg recognizes works) and returns WAV
// bytes. ffmpeg must be on PATH.
func ConvertToWAV(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "sparkbot-audio-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "in.ogg")
	outPath := filepath.Join(dir, "out.wav")

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input file: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inPath,
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, out)
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read output file: %w", err)
	}
	return wav, nil
}
