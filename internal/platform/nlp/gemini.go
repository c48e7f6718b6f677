// Package nlp holds the HTTP clients for the external language and speech
// services plus the narrative cleanup applied to their output. The domain
// packages only see the Extractor and Transcriber contracts.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/woundnote/woundnote/internal/domain/encounter"
	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini extracts structured clinical data via the generateContent API.
// Models are tried in order; quota exhaustion on one model falls through to
// the next.
type Gemini struct {
	http   *resty.Client
	apiKey string
	models []string
}

var _ encounter.Extractor = (*Gemini)(nil)

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	models := []string{model}
	for _, fallback := range []string{"gemini-1.5-flash-latest", "gemini-1.5-pro", "gemini-pro"} {
		if fallback != model {
			models = append(models, fallback)
		}
	}
	return &Gemini{
		http: resty.New().
			SetBaseURL(geminiBaseURL).
			SetTimeout(60 * time.Second),
		apiKey: apiKey,
		models: models,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	var lastErr error
	for _, model := range g.models {
		var out geminiResponse
		resp, err := g.http.R().
			SetContext(ctx).
			SetQueryParam("key", g.apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			SetResult(&out).
			SetError(&out).
			Post(fmt.Sprintf("/models/%s:generateContent", model))
		if err != nil {
			lastErr = fmt.Errorf("model %s: %w", model, err)
			continue
		}
		if resp.IsError() {
			msg := resp.Status()
			if out.Error != nil && out.Error.Message != "" {
				msg = out.Error.Message
			}
			lastErr = fmt.Errorf("model %s: %s", model, msg)
			continue
		}
		if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("model %s: empty response", model)
			continue
		}
		return out.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

// ExtractNote runs the full-dictation prompt and decodes the structured note.
func (g *Gemini) ExtractNote(ctx context.Context, transcript string) (encounter.StructuredNote, error) {
	raw, err := g.generate(ctx, ExtractionPrompt(transcript))
	if err != nil {
		return encounter.StructuredNote{}, err
	}
	text := stripCodeFences(raw)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return encounter.StructuredNote{}, fmt.Errorf("decode extraction response: %w", err)
	}
	if _, ok := probe["error"]; ok {
		return encounter.StructuredNote{}, fmt.Errorf("extraction reported failure: %s", probe["error"])
	}
	var note encounter.StructuredNote
	if err := json.Unmarshal([]byte(text), &note); err != nil {
		return encounter.StructuredNote{}, fmt.Errorf("decode extraction response: %w", err)
	}
	cleanNote(&note)
	return note, nil
}

// ExtractPatch runs the addendum prompt against the current record and
// parses the resulting operation batch.
func (g *Gemini) ExtractPatch(ctx context.Context, current map[string]interface{}, transcript string) ([]treepatch.Operation, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode current record: %w", err)
	}
	raw, err := g.generate(ctx, AddendumPrompt(string(currentJSON), transcript))
	if err != nil {
		return nil, err
	}
	text := stripCodeFences(raw)
	ops, err := treepatch.Parse([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("decode patch response: %w", err)
	}
	for i := range ops {
		cleanOperation(&ops[i])
	}
	return ops, nil
}

func cleanNote(note *encounter.StructuredNote) {
	for i := range note.Wounds {
		note.Wounds[i].ClinicalSummary = CleanNarrative(note.Wounds[i].ClinicalSummary)
		note.Wounds[i].TreatmentPlan = CleanNarrative(note.Wounds[i].TreatmentPlan)
	}
	note.ProviderComments = CleanNarrative(note.ProviderComments)
	note.TreatmentPlan = CleanNarrative(note.TreatmentPlan)
}

// cleanOperation repairs narrative payloads inside a patch. Only string
// values aimed at narrative fields are touched.
func cleanOperation(op *treepatch.Operation) {
	if op.Value == nil {
		return
	}
	s, ok := op.Value.(string)
	if !ok {
		return
	}
	for _, field := range []string{"/clinical_summary", "/treatment_plan", "/comments", "/plan"} {
		if strings.HasSuffix(op.Path, field) {
			op.Value = CleanNarrative(s)
			return
		}
	}
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
