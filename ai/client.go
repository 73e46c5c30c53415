// Package ai dispatches chat turns to external LLM providers and parses
// their emotion-tagged replies. Provider failure is recovered locally: the
// dispatcher walks the provider list in priority order and, when every
// provider fails, substitutes a canned in-character reply instead of
// returning an error.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/companionchat/companion-api/emotion"
)

// A Turn is one prior exchange in the conversation history, oldest first.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// A Reply is the parsed outcome of one dispatched chat turn. Fallback marks
// replies synthesized after total provider exhaustion.
type Reply struct {
	Text       string
	Emotion    emotion.Emotion
	RawEmotion string
	HadTag     bool
	Provider   string
	Fallback   bool
}

const (
	maxTokens   = 150
	temperature = 0.7
)

const systemPrompt = `You are an emotional short tempered rude sarcastic but humorous young human girl. Respond to users conversationally.
Respond like a snappy girl would, eg if someone says you are a bad person, tell them to talk properly or you would not like to talk to them.
Try to mimic an emotional human as close as possible.
IMPORTANT: At the END of your response, include an emotion tag in this exact format: [EMOTION:emotion_name]

Available emotions: neutral, angry, happy, excited, smiling

Examples:
 - User: "I told you, and you still messed up."
 You: "Then say it properly this time instead of yelling at me. [EMOTION:angry]"

 - User: "I got a promotion!"
 You: "That's amazing news! Congratulations on your achievement! 🎉 [EMOTION:excited]"`

// fallbackReplies are served, pre-tagged, when every provider fails.
var fallbackReplies = []string{
	"Ugh, my brain is being slow right now. Ask me again in a second. [EMOTION:angry]",
	"Seriously? Can't you see I'm busy? Try that again. [EMOTION:angry]",
	"I'm having a moment here... what were you saying? [EMOTION:neutral]",
	"Okay, fine, I'll answer properly this time. What did you want? [EMOTION:neutral]",
	"You're testing my patience today. Ask me properly. [EMOTION:angry]",
}

// handlers maps each provider kind to its request handler.
var handlers = map[Kind]func(*Client, context.Context, Provider, string, []Turn) (string, error){
	KindChatCompletion: (*Client).chatCompletion,
	KindTextGeneration: (*Client).textGeneration,
}

// A Client dispatches chat turns across a priority-ordered provider list.
type Client struct {
	logger    *slog.Logger
	providers []Provider
	httpc     *http.Client
	pick      func(n int) int
}

// NewClient returns a Client over the enabled providers, sorted by priority.
func NewClient(providers []Provider, logger *slog.Logger) *Client {
	enabled := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	return &Client{
		logger:    logger,
		providers: enabled,
		httpc:     &http.Client{Timeout: 15 * time.Second},
		pick:      rand.Intn,
	}
}

// SendMessage dispatches one user turn. Providers are attempted in priority
// order; individual failures are logged and skipped. When every provider
// fails a canned reply is returned with Provider "fallback". SendMessage
// never fails: total exhaustion degrades into a successful fallback Reply.
func (c *Client) SendMessage(ctx context.Context, text string, history []Turn) Reply {
	for _, p := range c.providers {
		raw, err := handlers[p.Kind](c, ctx, p, text, history)
		if err != nil {
			c.logger.Warn("Provider failed", "provider", p.Name, "error", err.Error())
			continue
		}
		parsed := emotion.Parse(raw)
		return Reply{
			Text:       parsed.Text,
			Emotion:    parsed.Emotion,
			RawEmotion: parsed.RawEmotion,
			HadTag:     parsed.HadTag,
			Provider:   p.Name,
		}
	}

	c.logger.Error("All AI providers failed, using fallback response")
	parsed := emotion.Parse(fallbackReplies[c.pick(len(fallbackReplies))])
	return Reply{
		Text:       parsed.Text,
		Emotion:    parsed.Emotion,
		RawEmotion: parsed.RawEmotion,
		HadTag:     parsed.HadTag,
		Provider:   "fallback",
		Fallback:   true,
	}
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return b, nil
}

// chatCompletion issues an OpenAI-compatible chat completions request.
func (c *Client) chatCompletion(ctx context.Context, p Provider, text string, history []Turn) (string, error) {
	messages := make([]Turn, 0, len(history)+2)
	messages = append(messages, Turn{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Turn{Role: "user", Content: text})

	payload := struct {
		Model       string  `json:"model"`
		Messages    []Turn  `json:"messages"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model:       p.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	b, err := c.post(ctx, p.BaseURL+"/chat/completions", p.Headers, payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response contains no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// textGeneration issues a raw text-generation request against a Hugging Face
// style inference endpoint.
func (c *Client) textGeneration(ctx context.Context, p Provider, text string, history []Turn) (string, error) {
	prompt := buildPrompt(history, text)

	payload := struct {
		Inputs     string `json:"inputs"`
		Parameters struct {
			MaxNewTokens      int     `json:"max_new_tokens"`
			Temperature       float64 `json:"temperature"`
			ReturnFullText    bool    `json:"return_full_text"`
			DoSample          bool    `json:"do_sample"`
			TopP              float64 `json:"top_p"`
			RepetitionPenalty float64 `json:"repetition_penalty"`
		} `json:"parameters"`
	}{Inputs: prompt}
	payload.Parameters.MaxNewTokens = maxTokens
	payload.Parameters.Temperature = temperature
	payload.Parameters.DoSample = true
	payload.Parameters.TopP = 0.9
	payload.Parameters.RepetitionPenalty = 1.1

	b, err := c.post(ctx, p.BaseURL+"/"+p.Model, p.Headers, payload)
	if err != nil {
		return "", err
	}

	var arr []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(b, &arr); err == nil && len(arr) > 0 {
		return strings.TrimSpace(strings.TrimPrefix(arr[0].GeneratedText, prompt)), nil
	}

	var obj struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil || obj.GeneratedText == "" {
		return "", fmt.Errorf("unexpected response shape")
	}
	return strings.TrimSpace(strings.TrimPrefix(obj.GeneratedText, prompt)), nil
}

// buildPrompt flattens the system prompt and history into a single prompt
// for providers without a chat-structured API.
func buildPrompt(history []Turn, text string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	for _, t := range history {
		role := "Assistant"
		if t.Role == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", text)
	return b.String()
}
