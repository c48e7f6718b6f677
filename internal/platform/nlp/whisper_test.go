package nlp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		if _, fh, err := r.FormFile("file"); err != nil || fh.Filename != "visit.wav" {
			t.Errorf("file = %v, %v", fh, err)
		}
		w.Write([]byte("patient has a heel wound\n"))
	}))
	defer srv.Close()

	tr := NewWhisper("test-key")
	tr.http.SetBaseURL(srv.URL)

	text, err := tr.Transcribe(context.Background(), []byte("RIFFdata"), "visit.wav")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "patient has a heel wound" {
		t.Errorf("text = %q", text)
	}
}

func TestWhisperUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewWhisper("test-key")
	tr.http.SetBaseURL(srv.URL)

	if _, err := tr.Transcribe(context.Background(), []byte("RIFFdata"), ""); err == nil {
		t.Fatal("expected error on upstream failure")
	}
}

func TestWhisperRequiresAPIKey(t *testing.T) {
	tr := NewWhisper("")
	if _, err := tr.Transcribe(context.Background(), []byte("x"), ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
