package query

import (
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/kb-labs/mind/internal/index"
)

// searchDocs ranks docs against the search term using an in-memory bleve
// index over title, path, and tag.
func searchDocs(docs []index.DocEntry, term string) ([]index.DocEntry, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	byPath := make(map[string]index.DocEntry, len(docs))
	for _, d := range docs {
		byPath[d.Path] = d
		doc := map[string]string{
			"path":  d.Path,
			"title": d.Title,
			"tag":   d.Tag,
		}
		if err := idx.Index(d.Path, doc); err != nil {
			return nil, err
		}
	}

	query := bleve.NewQueryStringQuery(term)
	req := bleve.NewSearchRequest(query)
	req.Size = len(docs)
	res, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	var out []index.DocEntry
	for _, hit := range res.Hits {
		if d, ok := byPath[hit.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// substringDocs is the degraded path when the search index cannot be
// built.
func substringDocs(docs []index.DocEntry, term string) []index.DocEntry {
	term = strings.ToLower(term)
	var out []index.DocEntry
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Path), term) ||
			strings.Contains(strings.ToLower(d.Title), term) ||
			strings.Contains(strings.ToLower(d.Tag), term) {
			out = append(out, d)
		}
	}
	return out
}
