// Package memory provides enhanced memory capabilities for Cortex.
// This file defines the core interfaces used by the memory enhancement components.
package memory

import (
	"context"
)

// Embedder generates vector embeddings for text.
// Implementations should use a consistent embedding model (e.g., nomic-embed-text).
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedFast generates an embedding with a short timeout (5 seconds).
	// Returns an error if embedding takes too long, allowing fallback to FTS.
	EmbedFast(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension (e.g., 768 for nomic-embed-text).
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// LLMProvider makes completion calls for extraction and classification.
// Used by the Decider to classify ambiguous COLD-path candidates.
type LLMProvider interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)
}

// MemoryType classifies a Memory Record by what the Memory Decider inferred
// from the COLD-path candidate text.
type MemoryType string

const (
	// MemoryTypePreference records a stated user preference ("I like the
	// lights dim in the evening").
	MemoryTypePreference MemoryType = "preference"

	// MemoryTypeFact records a durable fact about the user or household.
	MemoryTypeFact MemoryType = "fact"

	// MemoryTypeDecision records a decision the user made.
	MemoryTypeDecision MemoryType = "decision"

	// MemoryTypeCorrection supersedes an earlier record. The Supersedes id
	// is optional, and the COLD consumer does not set it.
	MemoryTypeCorrection MemoryType = "correction"

	// MemoryTypeMood records an observed emotional state.
	MemoryTypeMood MemoryType = "mood"

	// MemoryTypeInteraction records low-signal chit-chat, kept for recall.
	// HOT search does not filter by type, so these rank like any other record.
	MemoryTypeInteraction MemoryType = "interaction"
)

// LinkType represents the type of relationship between memories.
type LinkType string

const (
	// LinkContradicts indicates new info contradicts old info.
	LinkContradicts LinkType = "contradicts"

	// LinkSupports indicates evidence strengthening a fact.
	LinkSupports LinkType = "supports"

	// LinkEvolvedFrom indicates an updated version of a fact.
	LinkEvolvedFrom LinkType = "evolved_from"

	// LinkRelatedTo indicates a general topical relationship.
	LinkRelatedTo LinkType = "related_to"

	// LinkCausedBy indicates a causal relationship.
	LinkCausedBy LinkType = "caused_by"

	// LinkLeadsTo indicates a sequential relationship.
	LinkLeadsTo LinkType = "leads_to"
)

// ValidLinkTypes returns all valid link types.
func ValidLinkTypes() []LinkType {
	return []LinkType{
		LinkContradicts,
		LinkSupports,
		LinkEvolvedFrom,
		LinkRelatedTo,
		LinkCausedBy,
		LinkLeadsTo,
	}
}

// GenericMemory is a unified representation for linking across memory types.
type GenericMemory struct {
	// ID is the unique identifier.
	ID string

	// Type is the memory type (preference, fact, decision, correction, mood,
	// interaction).
	Type MemoryType

	// Content is the text content of the memory.
	Content string

	// Embedding is the vector representation.
	Embedding []float32

	// Metadata contains type-specific additional data.
	Metadata map[string]any
}
