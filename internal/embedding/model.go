// Package embedding implements the EmbeddingProvider abstraction and its
// two concrete backends (OpenAI-compatible HTTP API, and a deterministic
// local hasher for offline/test use), plus the two-tier cache and the
// batched, retried, concurrency-bounded pipeline that sits in front of
// them.
package embedding

// Provider generates dense vector embeddings for text. This is the
// EmbeddingProvider collaborator interface named in the external
// interfaces section; OpenAI and Local are its two concrete
// implementations.
//
// Unlike the teacher's ModelRegistry (a package-global, lazily-populated
// singleton populated via init()), providers here are constructed
// explicitly by the caller and passed by reference. There is no global registry to register into or resolve from.
type Provider interface {
	// Name returns the human-readable provider name.
	Name() string
	// Version returns a short version string used as embedding_version in
	// stored records.
	Version() string
	// Dimensions returns the embedding vector size this provider produces.
	Dimensions() int
	// Embed generates an embedding for a single text.
	Embed(text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(texts []string) ([][]float32, error)
	// Close releases provider resources.
	Close() error
}
