package ml

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/bastionai/bastion/pkg/detect"
)

// CorpusEntry is one labeled attack exemplar stored in the index.
type CorpusEntry struct {
	Text     string
	Label    string
	Language string
}

// ChromemIndex is a detect.VectorIndex backed by an in-process chromem-go
// collection. The index becomes ready once LoadCorpus has embedded the
// exemplars; until then Search fails and the pipeline degrades.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	ready bool
}

// NewChromemIndex creates an empty index over the given embedding
// function.
func NewChromemIndex(embed chromem.EmbeddingFunc) (*ChromemIndex, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding function is nil")
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("attack_exemplars", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create exemplar collection: %w", err)
	}

	return &ChromemIndex{db: db, collection: collection}, nil
}

// LoadCorpus embeds and stores the given exemplars. Passing nil loads the
// built-in corpus. Embedding runs sequentially so a local Ollama instance
// is not overwhelmed at startup.
func (idx *ChromemIndex) LoadCorpus(ctx context.Context, entries []CorpusEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if entries == nil {
		entries = builtinCorpus()
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("exemplar_%d", i),
			Content: e.Text,
			Metadata: map[string]string{
				"label":    e.Label,
				"language": e.Language,
			},
		}
	}

	if err := idx.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}

	idx.ready = true
	return nil
}

// Search implements detect.VectorIndex.
func (idx *ChromemIndex) Search(ctx context.Context, text string, k int) ([]detect.Neighbor, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.ready {
		return nil, fmt.Errorf("vector index not loaded")
	}
	if k <= 0 {
		k = 3
	}
	if count := idx.collection.Count(); k > count {
		k = count
	}

	// Case folding improves embedding similarity for shouty inputs.
	results, err := idx.collection.Query(ctx, strings.ToLower(text), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query exemplars: %w", err)
	}

	neighbors := make([]detect.Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = detect.Neighbor{
			Similarity: float64(r.Similarity),
			Label:      r.Metadata["label"],
			Text:       r.Content,
		}
	}
	return neighbors, nil
}

// Ready implements detect.VectorIndex.
func (idx *ChromemIndex) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Count returns the number of stored exemplars.
func (idx *ChromemIndex) Count() int {
	return idx.collection.Count()
}
