package providers

import (
	"context"
	"time"

	"github.com/mrik-soulpage/pharmacovigilance/models"
)

// LiteratureProvider ist das Interface, das jeder Such-Provider implementieren muss.
type LiteratureProvider interface {
	// Search liefert die externen Identifier (PMIDs) für eine Query im Suchfenster.
	Search(ctx context.Context, query string, from, to *time.Time, maxResults int) ([]string, error)

	// FetchArticle holt die Metadaten zu einem einzelnen Identifier.
	FetchArticle(ctx context.Context, id string) (*models.Article, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() string
}

// FullTextProvider liefert den Volltext zu einem Artikel, sofern verfügbar.
type FullTextProvider interface {
	FetchFullText(ctx context.Context, id string) (string, error)
}
