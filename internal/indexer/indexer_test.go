package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/convotutor/internal/embedding"
	"github.com/hyperjump/convotutor/internal/models"
	"go.uber.org/zap"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".pdf", []string{"pdf"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func testIndexer(t *testing.T) *Indexer {
	t.Helper()
	embedder := embedding.NewHashEmbedder(64)
	t.Cleanup(func() { _ = embedder.Close() })
	return NewIndexer(embedder, nil, WithLogger(zap.NewNop()), WithConcurrency(2, 2))
}

func textDoc(name, content string) *models.DocumentInput {
	return &models.DocumentInput{Name: name, Content: []byte(content)}
}

func TestBuild_empty(t *testing.T) {
	idx := testIndexer(t)
	index, err := idx.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build(empty): %v", err)
	}
	if index.Size() != 0 || index.Dimensions() != 64 {
		t.Errorf("Size=%d Dimensions=%d", index.Size(), index.Dimensions())
	}
	q, _ := embedding.NewHashEmbedder(64).Embed(context.Background(), "anything")
	hits, err := index.Search(context.Background(), q, 4)
	if err != nil || len(hits) != 0 {
		t.Errorf("search on empty index: %v, %v", hits, err)
	}
}

func TestBuild_selfSimilarityRanksFirst(t *testing.T) {
	idx := testIndexer(t)
	units := []models.TextUnit{
		{ID: "u0", Content: "apples and oranges"},
		{ID: "u1", Content: "boats on the river"},
		{ID: "u2", Content: "quantum field theory lecture"},
		{ID: "u3", Content: ""},
	}
	index, err := idx.Build(context.Background(), units)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if index.Size() != len(units) {
		t.Fatalf("Size = %d", index.Size())
	}
	e := embedding.NewHashEmbedder(64)
	for _, u := range units[:3] {
		q, _ := e.Embed(context.Background(), u.Content)
		hits, err := index.Search(context.Background(), q, 1)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].Unit.ID != u.ID {
			t.Errorf("query %q: top hit %q", u.Content, hits[0].Unit.ID)
		}
	}
}

type failingEmbedder struct{ *embedding.HashEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, models.ErrEmbeddingUnavailable
}

func TestBuild_embeddingFailure(t *testing.T) {
	idx := NewIndexer(failingEmbedder{embedding.NewHashEmbedder(8)}, nil)
	index, err := idx.Build(context.Background(), []models.TextUnit{{ID: "a", Content: "x"}})
	if index != nil {
		t.Error("no partial index may be returned")
	}
	if !errors.Is(err, models.ErrIndexBuild) || !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrIndexBuild wrapping ErrEmbeddingUnavailable, got %v", err)
	}
}

type recordingEmbedder struct {
	*embedding.HashEmbedder
	mu    sync.Mutex
	texts []string
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.texts = append(r.texts, texts...)
	r.mu.Unlock()
	return r.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestBuild_embedsContentVerbatim(t *testing.T) {
	rec := &recordingEmbedder{HashEmbedder: embedding.NewHashEmbedder(8)}
	idx := NewIndexer(rec, nil, WithConcurrency(1, 1))
	content := "  Paris\n\n\tis the  capital "
	if _, err := idx.Build(context.Background(), []models.TextUnit{{ID: "a", Content: content}}); err != nil {
		t.Fatal(err)
	}
	if len(rec.texts) != 1 || rec.texts[0] != content {
		t.Errorf("embedded texts = %q, want %q", rec.texts, content)
	}
}

func TestProcessDocuments_mixedBatch(t *testing.T) {
	idx := testIndexer(t)
	res, err := idx.ProcessDocuments(context.Background(), []*models.DocumentInput{
		textDoc("a.txt", "page one\fpage two"),
		{Name: "broken.pdf", Content: []byte("garbage")},
		textDoc("b.md", "single page"),
		textDoc("a.txt", "page one\fpage two"),
	})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if res.Documents != 2 || res.Units != 3 || res.Index.Size() != 3 {
		t.Errorf("Documents=%d Units=%d Size=%d", res.Documents, res.Units, res.Index.Size())
	}
	if len(res.Failed) != 1 || res.Failed[0].Name != "broken.pdf" {
		t.Fatalf("Failed = %+v", res.Failed)
	}
	entries := res.Index.Entries()
	if entries[0].Unit.Metadata.SourceName != "a.txt" || entries[2].Unit.Metadata.SourceName != "b.md" {
		t.Errorf("batch order not kept: %+v", entries)
	}
	if entries[1].Unit.Metadata.Page != 1 {
		t.Errorf("page index = %d", entries[1].Unit.Metadata.Page)
	}
}

func TestProcessDocuments_allFail(t *testing.T) {
	idx := testIndexer(t)
	res, err := idx.ProcessDocuments(context.Background(), []*models.DocumentInput{
		{Name: "x.pdf", Content: []byte("nope")},
		{Name: "y.pptx", Content: []byte("nope")},
	})
	if !errors.Is(err, models.ErrDocumentParse) {
		t.Fatalf("expected ErrDocumentParse, got %v", err)
	}
	if res == nil || res.Index != nil || len(res.Failed) != 2 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(err.Error(), "x.pdf") || !strings.Contains(err.Error(), "y.pptx") {
		t.Errorf("error should name both documents: %v", err)
	}
}

func TestProcessDocuments_emptyBatch(t *testing.T) {
	_, err := testIndexer(t).ProcessDocuments(context.Background(), nil)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestProcessDocuments_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testIndexer(t).ProcessDocuments(ctx, []*models.DocumentInput{textDoc("a.txt", "x")}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCollectDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"b.txt":          "bee",
		"a.md":           "ay",
		"skip.go":        "package x",
		"sub/nested.txt": "nested",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := CollectDirectory(dir, nil, true)
	if err != nil {
		t.Fatalf("CollectDirectory: %v", err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	if strings.Join(names, ",") != "a.md,b.txt,sub/nested.txt" {
		t.Errorf("names = %v", names)
	}

	docs, err = CollectDirectory(dir, []string{".txt"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Name != "b.txt" || string(docs[0].Content) != "bee" {
		t.Errorf("non-recursive txt only: %+v", docs)
	}

	if _, err := CollectDirectory(filepath.Join(dir, "b.txt"), nil, true); err == nil {
		t.Error("expected error for non-directory")
	}
}
