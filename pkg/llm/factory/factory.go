package factory

import (
	"fmt"

	"iso-risk-agent-be/pkg/llm"
	"iso-risk-agent-be/pkg/llm/ollama"
	"iso-risk-agent-be/pkg/llm/openai"
)

type Settings struct {
	Provider      string
	Model         string
	OllamaBaseURL string
	OpenAIKey     string
	OpenAIBaseURL string
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "ollama":
		baseURL := s.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, s.Model), nil
	case "openai":
		if s.OpenAIKey == "" && s.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai provider needs OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		return openai.NewOpenAIProvider(s.OpenAIKey, s.Model, s.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
