package ai

// A Kind selects the request/response shape a provider speaks. Dispatch is a
// closed lookup over kinds, one handler per variant.
type Kind int

const (
	// KindChatCompletion is the OpenAI-compatible chat completions shape
	// spoken by OpenRouter, Together, Perplexity, DeepSeek and Groq.
	KindChatCompletion Kind = iota
	// KindTextGeneration is the Hugging Face inference shape: a flattened
	// prompt in, an array of generated_text out.
	KindTextGeneration
)

// A Provider describes one external AI backend. Providers are attempted in
// ascending Priority order; disabled entries are skipped.
type Provider struct {
	Name     string
	Kind     Kind
	Enabled  bool
	Priority int
	BaseURL  string
	APIKey   string
	Model    string
	Headers  map[string]string
}

// ProvidersFromEnv builds the full provider table, enabling each entry only
// when its API key is present in the environment. getenv is injected so the
// table can be built from any source of configuration.
func ProvidersFromEnv(getenv func(string) string) []Provider {
	bearer := func(key string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + key}
	}

	openRouterKey := getenv("OPENROUTER_API_KEY")
	togetherKey := getenv("TOGETHER_API_KEY")
	perplexityKey := getenv("PERPLEXITY_API_KEY")
	huggingFaceKey := getenv("HUGGINGFACE_API_KEY")
	deepSeekKey := getenv("DEEPSEEK_API_KEY")
	groqKey := getenv("GROQ_API_KEY")

	return []Provider{
		{
			Name:     "OpenRouter",
			Kind:     KindChatCompletion,
			Enabled:  openRouterKey != "",
			Priority: 1,
			BaseURL:  "https://openrouter.ai/api/v1",
			APIKey:   openRouterKey,
			Model:    "meta-llama/llama-3.1-8b-instruct",
			Headers: map[string]string{
				"Authorization": "Bearer " + openRouterKey,
				"X-Title":       "Emotional AI Companion",
			},
		},
		{
			Name:     "Together AI",
			Kind:     KindChatCompletion,
			Enabled:  togetherKey != "",
			Priority: 2,
			BaseURL:  "https://api.together.xyz/v1",
			APIKey:   togetherKey,
			Model:    "mistralai/Mixtral-8x7B-Instruct-v0.1",
			Headers:  bearer(togetherKey),
		},
		{
			Name:     "DeepSeek",
			Kind:     KindChatCompletion,
			Enabled:  deepSeekKey != "",
			Priority: 3,
			BaseURL:  "https://api.deepseek.com/v1",
			APIKey:   deepSeekKey,
			Model:    "deepseek-chat",
			Headers:  bearer(deepSeekKey),
		},
		{
			Name:     "Perplexity",
			Kind:     KindChatCompletion,
			Enabled:  perplexityKey != "",
			Priority: 4,
			BaseURL:  "https://api.perplexity.ai",
			APIKey:   perplexityKey,
			Model:    "sonar-small-chat",
			Headers:  bearer(perplexityKey),
		},
		{
			Name:     "Groq",
			Kind:     KindChatCompletion,
			Enabled:  groqKey != "",
			Priority: 5,
			BaseURL:  "https://api.groq.com/openai/v1",
			APIKey:   groqKey,
			Model:    "llama2-70b-4096",
			Headers:  bearer(groqKey),
		},
		{
			Name:     "Hugging Face",
			Kind:     KindTextGeneration,
			Enabled:  huggingFaceKey != "",
			Priority: 6,
			BaseURL:  "https://api-inference.huggingface.co/models",
			APIKey:   huggingFaceKey,
			Model:    "microsoft/DialoGPT-medium",
			Headers:  bearer(huggingFaceKey),
		},
	}
}
