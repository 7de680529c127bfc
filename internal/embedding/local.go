package embedding

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

const (
	LocalProviderVersion  = "local-hash-v1"
	LocalDefaultDimension = 768
	nomicDocumentPrefix   = "search_document: "
)

// localProvider is a deterministic, pure-Go embedding provider with no
// model weights: each token hashes into a fixed-width vector, which is
// then L2-normalized. It exists so the pipeline, cache, and sync engine
// can be exercised without a network dependency or the CGO/ONNX runtime
// the teacher's own Local provider required (and which is not declared in
// its go.mod — see DESIGN.md). It is not a semantic embedding model;
// callers that need real recall should configure the openai provider.
type localProvider struct {
	dimensions int
	tok        tokenizer.Codec
}

// NewLocalProvider constructs the offline hashing-based embedding
// provider. dims<=0 uses LocalDefaultDimension.
func NewLocalProvider(dims int) (Provider, error) {
	if dims <= 0 {
		dims = LocalDefaultDimension
	}
	tok, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &localProvider{dimensions: dims, tok: tok}, nil
}

func (l *localProvider) Name() string    { return "Local (deterministic hash)" }
func (l *localProvider) Version() string { return LocalProviderVersion }
func (l *localProvider) Dimensions() int { return l.dimensions }
func (l *localProvider) Close() error    { return nil }

func (l *localProvider) Embed(text string) ([]float32, error) {
	if text == "" {
		return make([]float32, l.dimensions), nil
	}
	return l.encode(text), nil
}

func (l *localProvider) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = l.encode(t)
	}
	return out, nil
}

// tokenCount reports an approximate token count for text as given (no
// prefix is added). It never affects truncation, which stays
// character-based, and nothing in the module calls it.
func (l *localProvider) tokenCount(text string) int {
	if l.tok == nil {
		return 0
	}
	ids, _, err := l.tok.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

func (l *localProvider) encode(text string) []float32 {
	if strings.HasPrefix(l.Version(), "local") {
		text = nomicDocumentPrefix + text
	}

	vec := make([]float32, l.dimensions)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(l.dimensions))
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
