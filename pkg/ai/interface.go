package ai

import "context"

// Completer is the interface for LLM text generation
// Implement this interface to add new providers (Gemini, Ollama, OpenAI, etc.)
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
