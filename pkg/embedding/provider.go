package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrEmbeddingUnavailable marks any failure to obtain a vector.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Settings struct {
	Provider      string // "openai" or "ollama"
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaBaseURL string
}

func NewEmbeddingProvider(s Settings) (EmbeddingProvider, error) {
	switch s.Provider {
	case "ollama":
		return NewOllamaProvider(s.OllamaBaseURL, s.Model), nil
	case "openai", "":
		return NewOpenAIProvider(s.OpenAIKey, s.Model, s.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", s.Provider)
	}
}

// normalizeVector scales to unit length; pgvector cosine ops assume it.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
