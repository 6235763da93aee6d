// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Normaliser: Extracts text from one document type
//   - Chunker: Splits normalised text into overlapping chunks
//   - EmbeddingService: Turns a batch of texts into vectors (Ollama, OpenAI, Gemini)
//   - LLMService: Generates text from a prompt (Ollama, OpenAI, Anthropic, Gemini)
//   - VectorStore: Durable vector storage and similarity search (SQLite, chromem, Qdrant)
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//   - AIConfigValidator: Connectivity checks for provider settings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
