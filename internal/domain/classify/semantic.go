package classify

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
)

// vendorDocument is one indexed exemplar: a vendor name with the
// category the ledger associates with it.
type vendorDocument struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
}

// SemanticClassifier is a Capability backed by a Bleve full-text index
// of ledger vendor exemplars. It stands in for a remote model: new
// vendors are classified by textual similarity to vendors already seen
// in each category.
type SemanticClassifier struct {
	index bleve.Index
	mu    sync.RWMutex
	docs  int
}

// NewSemanticClassifier creates an in-memory classifier index.
func NewSemanticClassifier() (*SemanticClassifier, error) {
	index, err := bleve.NewMemOnly(buildVendorMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier index: %w", err)
	}
	return &SemanticClassifier{index: index}, nil
}

func buildVendorMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("vendor", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexVendors replaces nothing; it adds exemplars from vendor history.
// Re-indexing the same vendor overwrites its document, so rebuilds are
// idempotent.
func (s *SemanticClassifier) IndexVendors(stats []ledger.VendorStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, stat := range stats {
		doc := vendorDocument{Vendor: stat.Vendor, Category: stat.Category}
		if err := batch.Index(stat.Vendor, doc); err != nil {
			return fmt.Errorf("failed to index vendor %q: %w", stat.Vendor, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to commit vendor batch: %w", err)
	}
	s.docs += len(stats)
	return nil
}

// Classify implements Capability. The score is the top hit's relevance
// squashed into [0,1); no hit or a hit outside the candidate set means
// no opinion.
func (s *SemanticClassifier) Classify(ctx context.Context, text string, candidates []string) (string, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.docs == 0 {
		return "", 0, nil
	}

	query := bleve.NewMatchQuery(text)
	query.SetField("vendor")
	query.Fuzziness = 1

	req := bleve.NewSearchRequest(query)
	req.Size = 5
	req.Fields = []string{"category"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res.Hits) == 0 {
		return "", 0, nil
	}

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}

	for _, hit := range res.Hits {
		category, _ := hit.Fields["category"].(string)
		if category == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[category] {
			continue
		}
		return category, hit.Score / (hit.Score + 1), nil
	}
	return "", 0, nil
}

// Close releases the underlying index.
func (s *SemanticClassifier) Close() error {
	return s.index.Close()
}

var _ Capability = (*SemanticClassifier)(nil)
