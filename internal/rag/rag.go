// Package rag provides a small in-memory vector store with cosine
// similarity over embedded document chunks.
//
// It is deliberately not a search engine: vectors live only for the process
// lifetime, there is no ANN index, and retrieval is a linear scan. It exists
// to surface relevant uploaded-document snippets to plan generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
)

// ChunkSize is the approximate character length of one indexed chunk.
const ChunkSize = 1200

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

type entry struct {
	Source string
	Text   string
	Vector []float64
}

// Match is one retrieval result.
type Match struct {
	Source string
	Text   string
	Score  float64
}

// Store is an in-memory, non-persistent vector store.
type Store struct {
	mu       sync.RWMutex
	embedder Embedder
	entries  []entry
}

// NewStore creates an empty store backed by the given embedder.
func NewStore(embedder Embedder) *Store {
	return &Store{embedder: embedder}
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// AddDocument splits a document into chunks, embeds them, and indexes them
// under the given source label.
func (s *Store) AddDocument(ctx context.Context, source, content string) error {
	chunks := SplitChunks(content, ChunkSize)
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch for %s", source)
	}

	s.mu.Lock()
	for i, chunk := range chunks {
		s.entries = append(s.entries, entry{Source: source, Text: chunk, Vector: vectors[i]})
	}
	s.mu.Unlock()

	slog.Debug("rag.AddDocument: indexed document", "source", source, "chunks", len(chunks))
	return nil
}

// Search embeds the query and returns the top-k chunks by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vectors[0]

	s.mu.RLock()
	matches := make([]Match, 0, len(s.entries))
	for _, e := range s.entries {
		matches = append(matches, Match{Source: e.Source, Text: e.Text, Score: Cosine(queryVec, e.Vector)})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-length vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SplitChunks breaks text into chunks of roughly size characters, preferring
// paragraph boundaries.
func SplitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		if current.Len() > 0 && current.Len()+len(para) > size {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(para) > size {
			// Oversized paragraph: hard split.
			for len(para) > size {
				chunks = append(chunks, strings.TrimSpace(para[:size]))
				para = para[size:]
			}
		}
		if para != "" {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
