package nlp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/woundnote/woundnote/internal/domain/encounter"
)

const whisperBaseURL = "https://api.openai.com"

// Whisper converts recorded dictation audio to text through the OpenAI
// transcription endpoint.
type Whisper struct {
	http   *resty.Client
	apiKey string
	model  string
}

var _ encounter.Transcriber = (*Whisper)(nil)

func NewWhisper(apiKey string) *Whisper {
	return &Whisper{
		http: resty.New().
			SetBaseURL(whisperBaseURL).
			SetTimeout(120 * time.Second),
		apiKey: apiKey,
		model:  "whisper-1",
	}
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if w.apiKey == "" {
		return "", fmt.Errorf("openai api key not configured")
	}
	if filename == "" {
		filename = "dictation.webm"
	}
	resp, err := w.http.R().
		SetContext(ctx).
		SetAuthToken(w.apiKey).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"model":           w.model,
			"response_format": "text",
		}).
		Post("/v1/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcription request: %s: %s", resp.Status(), resp.String())
	}
	return strings.TrimSpace(resp.String()), nil
}
