package ai

import (
	"fmt"

	"schoolcomms-backend/pkg/gemini"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3.1", "mistral"
}

// NewCompleter creates a Completer based on the config
// This is the factory function - switch AI provider by changing config.Provider
func NewCompleter(cfg Config, logger *zap.Logger) (Completer, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOllama:
		if cfg.OllamaBaseURL == "" {
			return nil, fmt.Errorf("OLLAMA_BASE_URL is required for Ollama provider")
		}
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	default:
		// Auto: prefer Gemini when a key is present, keep Ollama as fallback
		if cfg.GeminiAPIKey != "" && cfg.OllamaBaseURL != "" {
			primary := gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)
			secondary := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
			return NewFallbackCompleter(primary, secondary, logger), nil
		}
		if cfg.GeminiAPIKey != "" {
			return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil
		}
		if cfg.OllamaBaseURL != "" {
			return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
		}
		return nil, fmt.Errorf("no AI provider configured")
	}
}
