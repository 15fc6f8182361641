package transcriber

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

type preset struct {
	endpoint string
	model    string
}

var presets = map[string]preset{
	ProviderGroq: {
		endpoint: "https://api.groq.com/openai/v1/audio/transcriptions",
		model:    "whisper-large-v3",
	},
	ProviderOpenAI: {
		endpoint: "https://api.openai.com/v1/audio/transcriptions",
		model:    "whisper-1",
	},
}

// Providers lists the known provider names.
func Providers() []string { return []string{ProviderGroq, ProviderOpenAI} }

func NewGroq(apiKey string) *Client {
	p := presets[ProviderGroq]
	return NewClient(Config{Provider: ProviderGroq, Endpoint: p.endpoint, Model: p.model, APIKey: apiKey})
}

func NewOpenAI(apiKey string) *Client {
	p := presets[ProviderOpenAI]
	return NewClient(Config{Provider: ProviderOpenAI, Endpoint: p.endpoint, Model: p.model, APIKey: apiKey})
}
