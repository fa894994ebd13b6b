package embedder

import (
	"fmt"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

type Config struct {
	Provider string
	BaseURL  string
	Model    string
}

func New(cfg Config) (memory.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return newOllama(baseURL, model), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
}
