package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Document is one knowledge-base entry a tenant uploads.
type Document struct {
	ID       string
	TenantID string
	Title    string
	Text     string
	Source   string
}

// SearchResult is a scored match from the vector store.
type SearchResult struct {
	Document Document
	Score    float32
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Retriever is the tenant-scoped knowledge store.
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, topK int) ([]SearchResult, error)
	Upsert(ctx context.Context, docs []Document) error
	DeleteTenant(ctx context.Context, tenantID string) error
}

// FormatContext renders search results into the prompt block the response
// generator injects. Empty input yields an empty string so the prompt can
// omit the section entirely.
func FormatContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d] (relevance: %.2f)\n", i+1, r.Score)
		if r.Document.Title != "" {
			b.WriteString(r.Document.Title)
			b.WriteString("\n")
		}
		b.WriteString(r.Document.Text)
	}
	return b.String()
}
