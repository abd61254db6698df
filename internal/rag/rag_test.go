package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// keywordEmbedder embeds texts as fixed-axis keyword counts so similarity is
// predictable in tests.
type keywordEmbedder struct {
	axes []string
	err  error
}

func (e *keywordEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(e.axes))
		lower := strings.ToLower(text)
		for j, axis := range e.axes {
			vec[j] = float64(strings.Count(lower, axis))
		}
		out[i] = vec
	}
	return out, nil
}

func TestSearchRanksByRelevance(t *testing.T) {
	embedder := &keywordEmbedder{axes: []string{"inventory", "marketing", "payroll"}}
	s := NewStore(embedder)
	ctx := context.Background()

	if err := s.AddDocument(ctx, "ops.txt", "inventory counts and inventory shrinkage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddDocument(ctx, "sales.txt", "marketing campaigns and marketing spend"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, err := s.Search(ctx, "inventory problems", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Source != "ops.txt" {
		t.Errorf("expected ops.txt to rank first, got %+v", matches)
	}
}

func TestSearchTopKBound(t *testing.T) {
	embedder := &keywordEmbedder{axes: []string{"a"}}
	s := NewStore(embedder)
	ctx := context.Background()

	for _, doc := range []string{"a one", "a two", "a three"} {
		if err := s.AddDocument(ctx, "d", doc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	matches, err := s.Search(ctx, "a", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}

	if matches, _ := s.Search(ctx, "a", 0); matches != nil {
		t.Errorf("k=0 must return nothing, got %+v", matches)
	}
}

func TestAddDocumentEmbedderFailure(t *testing.T) {
	s := NewStore(&keywordEmbedder{err: errors.New("embedding backend down")})
	if err := s.AddDocument(context.Background(), "doc", "some content"); err == nil {
		t.Error("expected embedder failure to propagate")
	}
	if s.Len() != 0 {
		t.Errorf("failed document must not be indexed, got %d entries", s.Len())
	}
}

func TestAddDocumentEmptyContent(t *testing.T) {
	s := NewStore(&keywordEmbedder{axes: []string{"a"}})
	if err := s.AddDocument(context.Background(), "empty", "   \n  "); err != nil {
		t.Errorf("empty document must be a no-op, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("empty document must not add entries, got %d", s.Len())
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %f", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: %f", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{1}); got != 0 {
		t.Errorf("mismatched lengths must score 0, got %f", got)
	}
	if got := Cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("zero vector must score 0, got %f", got)
	}
}

func TestSplitChunks(t *testing.T) {
	if chunks := SplitChunks("", 100); chunks != nil {
		t.Errorf("empty text must yield no chunks: %v", chunks)
	}

	short := "one small paragraph"
	if chunks := SplitChunks(short, 100); len(chunks) != 1 || chunks[0] != short {
		t.Errorf("short text must be a single chunk: %v", chunks)
	}

	long := strings.Repeat("word ", 100) // 500 chars, no paragraph breaks
	chunks := SplitChunks(long, 120)
	if len(chunks) < 4 {
		t.Errorf("oversized paragraph must be hard-split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 120 {
			t.Errorf("chunk exceeds size bound: %d", len(c))
		}
	}

	paragraphs := strings.Repeat("alpha beta gamma.\n\n", 10)
	for _, c := range SplitChunks(paragraphs, 40) {
		if len(c) > 60 {
			t.Errorf("paragraph chunking exceeded bound: %q", c)
		}
	}
}
