package config

import (
	"fmt"
	"os"
)

// Config is everything the daemon needs, resolved from environment
// variables. Secrets stay out of the maintenance policy file, which only
// carries tunables.
type Config struct {
	MemoryPath string
	PolicyPath string
	OwnerID    string

	Extractor LLMConfig
	Decider   LLMConfig
	Embedder  EmbedderConfig
	Storage   StorageConfig
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type EmbedderConfig struct {
	Provider string
	BaseURL  string
	Model    string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	memoryPath := os.Getenv("TWIN_MEMORY")
	if memoryPath == "" {
		memoryPath = "twin.db"
	}

	owner := os.Getenv("TWIN_OWNER")
	if owner == "" {
		owner = "default"
	}

	extractor, err := loadLLMConfig("EXTRACTOR")
	if err != nil {
		return nil, err
	}

	decider, err := loadLLMConfig("DECIDER")
	if err != nil {
		return nil, err
	}

	return &Config{
		MemoryPath: memoryPath,
		PolicyPath: os.Getenv("TWIN_POLICY"),
		OwnerID:    owner,
		Extractor:  extractor,
		Decider:    decider,
		Embedder:   loadEmbedderConfig(),
		Storage:    loadStorageConfig(),
	}, nil
}

// loadLLMConfig resolves one collaborator role. Roles fall back to the
// shared LLM_* variables, so one provider can serve both extraction and
// decisions without duplicate configuration.
func loadLLMConfig(prefix string) (LLMConfig, error) {
	provider := envOr(prefix+"_PROVIDER", os.Getenv("LLM_PROVIDER"))
	if provider == "" {
		provider = "claude"
	}

	apiKey, err := getAPIKey(provider, prefix)
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		Provider: provider,
		APIKey:   apiKey,
		Model:    envOr(prefix+"_MODEL", os.Getenv("LLM_MODEL")),
		BaseURL:  envOr(prefix+"_BASE_URL", os.Getenv("LLM_BASE_URL")),
	}, nil
}

func loadEmbedderConfig() EmbedderConfig {
	provider := os.Getenv("EMBEDDER_PROVIDER")
	if provider == "" {
		provider = "ollama"
	}

	return EmbedderConfig{
		Provider: provider,
		BaseURL:  envOr("EMBEDDER_URL", os.Getenv("OLLAMA_HOST")),
		Model:    os.Getenv("EMBEDDER_MODEL"),
	}
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "twin-backups"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
}

func getAPIKey(provider, prefix string) (string, error) {
	envKey := os.Getenv(prefix + "_API_KEY")
	if envKey != "" {
		return envKey, nil
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key, nil
	}

	switch provider {
	case "claude":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return key, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return key, nil
	case "kimi":
		key := os.Getenv("KIMI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("KIMI_API_KEY not set")
		}
		return key, nil
	case "ollama":
		// Ollama doesn't need an API key
		return "ollama", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
