package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiText(text string) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	})
	return out
}

func testGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	g := NewGemini("test-key", "gemini-1.5-flash")
	g.http.SetBaseURL(srv.URL)
	return g
}

func TestExtractNote(t *testing.T) {
	note := "```json\n" + `{
		"patient_information": {"patient_name": "John Doe"},
		"wounds": [{
			"number": "1",
			"location": "left heel",
			"clinical_summary": "Wound improving x No drainage"
		}],
		"provider_comments": "-",
		"treatment_plan": "Apply dry quartz daily"
	}` + "\n```"

	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("api key not sent")
		}
		w.Write(geminiText(note))
	})

	got, err := g.ExtractNote(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.PatientInfo.PatientName != "John Doe" {
		t.Errorf("patient = %+v", got.PatientInfo)
	}
	if len(got.Wounds) != 1 || got.Wounds[0].Location != "left heel" {
		t.Fatalf("wounds = %+v", got.Wounds)
	}
	// narrative cleanup runs on the decoded note
	if got.Wounds[0].ClinicalSummary != "Wound improving. No drainage" {
		t.Errorf("summary = %q", got.Wounds[0].ClinicalSummary)
	}
	if got.TreatmentPlan != "Apply dry gauze daily" {
		t.Errorf("plan = %q", got.TreatmentPlan)
	}
	if got.ProviderComments != "-" {
		t.Errorf("sentinel comments rewritten: %q", got.ProviderComments)
	}
}

func TestExtractNoteReportedFailure(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiText(`{"error": "transcript is not a clinical note"}`))
	})
	if _, err := g.ExtractNote(context.Background(), "gibberish"); err == nil {
		t.Fatal("expected error for reported failure")
	}
}

func TestExtractNoteModelFallback(t *testing.T) {
	calls := 0
	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
			return
		}
		w.Write(geminiText(`{"wounds": [], "provider_comments": "", "treatment_plan": ""}`))
	})

	if _, err := g.ExtractNote(context.Background(), "transcript"); err != nil {
		t.Fatalf("fallback model did not recover: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExtractPatch(t *testing.T) {
	patch := "```json\n" + `[
		{"op": "replace", "path": "/wounds/0/max_depth", "value": "0.3 cm"},
		{"op": "replace", "path": "/wounds/0/treatment_plan", "value": "Continue mild honey x Change dressing daily"}
	]` + "\n```"

	var prompt string
	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		w.Write(geminiText(patch))
	})

	current := map[string]interface{}{
		"wounds": []interface{}{map[string]interface{}{"number": "1"}},
	}
	ops, err := g.ExtractPatch(context.Background(), current, "depth is now 0.3")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("ops = %d, want 2", len(ops))
	}
	if ops[0].Value != "0.3 cm" {
		t.Errorf("non-narrative value rewritten: %v", ops[0].Value)
	}
	// narrative payloads are cleaned before they reach the record
	if ops[1].Value != "Continue Medihoney. Change dressing daily" {
		t.Errorf("narrative value = %v", ops[1].Value)
	}
	// the current record rides along in the prompt
	if !strings.Contains(prompt, `"number": "1"`) {
		t.Error("current record missing from prompt")
	}
	if !strings.Contains(prompt, "depth is now 0.3") {
		t.Error("transcript missing from prompt")
	}
}

func TestExtractPatchMalformedResponse(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiText(`{"not": "an array"}`))
	})
	if _, err := g.ExtractPatch(context.Background(), map[string]interface{}{}, "text"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	g := NewGemini("", "")
	if _, err := g.ExtractNote(context.Background(), "transcript"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"  ```json\n{}\n```  ", `{}`},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
