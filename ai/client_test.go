package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neilotoole/slogt"

	"github.com/companionchat/companion-api/emotion"
)

func chatCompletionResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Got path %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key1" {
			t.Errorf("Got Authorization %q, want Bearer key1", got)
		}

		var body struct {
			Model    string `json:"model"`
			Messages []Turn `json:"messages"`
			Stream   bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Could not decode request: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("Got model %q, want test-model", body.Model)
		}
		if body.Stream {
			t.Error("Got stream true, want false")
		}
		if len(body.Messages) != 4 {
			t.Fatalf("Got %d messages, want 4 (system, 2 history, user)", len(body.Messages))
		}
		if body.Messages[0].Role != "system" {
			t.Errorf("First message role = %q, want system", body.Messages[0].Role)
		}
		if last := body.Messages[3]; last.Role != "user" || last.Content != "hi" {
			t.Errorf("Last message = %+v, want user turn with content hi", last)
		}

		w.Write([]byte(chatCompletionResponse("Hey you! [EMOTION:smiling]")))
	}))
	defer srv.Close()

	c := NewClient([]Provider{{
		Name:    "Test",
		Kind:    KindChatCompletion,
		Enabled: true,
		BaseURL: srv.URL,
		Model:   "test-model",
		Headers: map[string]string{"Authorization": "Bearer key1"},
	}}, slogt.New(t))

	history := []Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "what"},
	}
	got := c.SendMessage(context.Background(), "hi", history)

	if got.Text != "Hey you!" {
		t.Errorf("Got text %q, want %q", got.Text, "Hey you!")
	}
	if got.Emotion != emotion.Smiling {
		t.Errorf("Got emotion %q, want smiling", got.Emotion)
	}
	if !got.HadTag {
		t.Error("Got HadTag false, want true")
	}
	if got.Provider != "Test" {
		t.Errorf("Got provider %q, want Test", got.Provider)
	}
	if got.Fallback {
		t.Error("Got Fallback true, want false")
	}
}

func TestClient_SendMessage_AdvancesPastFailedProvider(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatCompletionResponse("Fine. [EMOTION:neutral]")))
	}))
	defer good.Close()

	c := NewClient([]Provider{
		{Name: "Second", Kind: KindChatCompletion, Enabled: true, Priority: 2, BaseURL: good.URL},
		{Name: "First", Kind: KindChatCompletion, Enabled: true, Priority: 1, BaseURL: bad.URL},
	}, slogt.New(t))

	got := c.SendMessage(context.Background(), "hi", nil)

	if got.Provider != "Second" {
		t.Errorf("Got provider %q, want Second", got.Provider)
	}
	if got.Fallback {
		t.Error("Got Fallback true, want false")
	}
	if got.Text != "Fine." {
		t.Errorf("Got text %q, want Fine.", got.Text)
	}
}

func TestClient_SendMessage_FallbackNeverFails(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()

	tests := []struct {
		name      string
		providers []Provider
	}{
		{
			name:      "NoProvidersEnabled",
			providers: []Provider{{Name: "Off", Kind: KindChatCompletion, Enabled: false, BaseURL: bad.URL}},
		},
		{
			name: "AllProvidersFail",
			providers: []Provider{
				{Name: "A", Kind: KindChatCompletion, Enabled: true, Priority: 1, BaseURL: bad.URL},
				{Name: "B", Kind: KindChatCompletion, Enabled: true, Priority: 2, BaseURL: bad.URL},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.providers, slogt.New(t))
			for pick := range fallbackReplies {
				c.pick = func(int) int { return pick }
				got := c.SendMessage(context.Background(), "hi", nil)

				if !got.Fallback {
					t.Error("Got Fallback false, want true")
				}
				if got.Provider != "fallback" {
					t.Errorf("Got provider %q, want fallback", got.Provider)
				}
				if got.Text == "" {
					t.Error("Got empty fallback text")
				}
				if !emotion.Valid(string(got.Emotion)) {
					t.Errorf("Got emotion %q outside the canonical vocabulary", got.Emotion)
				}
			}
		})
	}
}

func TestClient_SendMessage_TextGeneration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/test-model" {
			t.Errorf("Got path %q, want /test-model", r.URL.Path)
		}
		var body struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				ReturnFullText bool `json:"return_full_text"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Could not decode request: %v", err)
		}
		if body.Inputs == "" {
			t.Error("Got empty prompt")
		}
		if body.Parameters.ReturnFullText {
			t.Error("Got return_full_text true, want false")
		}

		json.NewEncoder(w).Encode([]map[string]string{
			{"generated_text": "Sure thing. [EMOTION:smiling]"},
		})
	}))
	defer srv.Close()

	c := NewClient([]Provider{{
		Name:    "HF",
		Kind:    KindTextGeneration,
		Enabled: true,
		BaseURL: srv.URL,
		Model:   "test-model",
	}}, slogt.New(t))

	got := c.SendMessage(context.Background(), "hi", nil)

	if got.Text != "Sure thing." {
		t.Errorf("Got text %q, want Sure thing.", got.Text)
	}
	if got.Emotion != emotion.Smiling {
		t.Errorf("Got emotion %q, want smiling", got.Emotion)
	}
	if got.Provider != "HF" {
		t.Errorf("Got provider %q, want HF", got.Provider)
	}
}

func TestProvidersFromEnv(t *testing.T) {
	env := map[string]string{
		"OPENROUTER_API_KEY": "or-key",
		"DEEPSEEK_API_KEY":   "ds-key",
	}
	providers := ProvidersFromEnv(func(k string) string { return env[k] })

	enabled := map[string]bool{}
	for _, p := range providers {
		if p.Enabled {
			enabled[p.Name] = true
		}
	}
	if len(enabled) != 2 || !enabled["OpenRouter"] || !enabled["DeepSeek"] {
		t.Errorf("Enabled providers = %v, want OpenRouter and DeepSeek only", enabled)
	}

	for _, p := range providers {
		if p.Name == "OpenRouter" && p.Headers["Authorization"] != "Bearer or-key" {
			t.Errorf("OpenRouter Authorization = %q", p.Headers["Authorization"])
		}
	}
}
