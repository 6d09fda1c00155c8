package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestSynthesize(t *testing.T) {
	var (
		gotPath, gotKey, gotFormat string
		gotBody                    synthesizeRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3-audio")
	}))
	defer srv.Close()

	p, err := New("key-1", WithBaseURL(srv.URL), WithDefaultVoice("fallback-voice"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), tts.Request{Text: "bonjour", LanguageCode: "fr-FR"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3-audio" || audio.ContentType != "audio/mpeg" {
		t.Errorf("audio = %q (%s)", audio.Data, audio.ContentType)
	}
	if gotPath != "/v1/text-to-speech/fallback-voice" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key-1" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotFormat != defaultOutputFmt {
		t.Errorf("output_format = %q", gotFormat)
	}
	if gotBody.Text != "bonjour" || gotBody.ModelID != defaultModel || gotBody.LanguageCode != "fr" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "x", VoiceName: "v"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("k", WithBaseURL("http://127.0.0.1:1"))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "  "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"voices":[
			{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"gender":"female"},
			 "verified_languages":[{"language":"en","locale":"en-US"},{"language":"es"}]},
			{"voice_id":"v2","name":"Pro","category":"professional","labels":{"gender":"male","language":"de"}},
			{"voice_id":"","name":"broken"}
		]}`)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	v1 := voices[0]
	if v1.Name != "v1" || v1.Gender != tts.GenderFemale || v1.Tier != tts.TierNeural {
		t.Errorf("v1 = %+v", v1)
	}
	if len(v1.LanguageCodes) != 2 || v1.LanguageCodes[0] != "en-US" || v1.LanguageCodes[1] != "es" {
		t.Errorf("v1 languages = %v", v1.LanguageCodes)
	}
	v2 := voices[1]
	if v2.Tier != tts.TierPremium || v2.Gender != tts.GenderMale || len(v2.LanguageCodes) != 1 || v2.LanguageCodes[0] != "de" {
		t.Errorf("v2 = %+v", v2)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		format, header, want string
	}{
		{"mp3_44100_128", "", "audio/mpeg"},
		{"opus_48000_64", "", "audio/ogg"},
		{"ulaw_8000", "", "audio/basic"},
		{"pcm_16000", "audio/pcm", "audio/pcm"},
		{"pcm_16000", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentType(tt.format, tt.header); got != tt.want {
			t.Errorf("contentType(%q, %q) = %q, want %q", tt.format, tt.header, got, tt.want)
		}
	}
}
