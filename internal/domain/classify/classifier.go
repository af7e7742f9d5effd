package classify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
)

// Config controls classification thresholds.
type Config struct {
	// MinConfidence is the floor for accepting a semantic capability
	// answer; scores below it fall through to uncategorized.
	MinConfidence float64
	// FuzzyThreshold is the 0-100 similarity floor for fuzzy alias hits.
	FuzzyThreshold int
}

// Classifier fills in category and canonical vendor on candidates.
// Resolution order: ledger alias table, semantic capability, then the
// uncategorized fallback at zero confidence.
type Classifier struct {
	cfg        Config
	capability Capability
	logger     *slog.Logger

	mu      sync.RWMutex
	aliases *AliasTable
}

// New creates a Classifier. The capability may be nil, in which case
// every alias miss degrades to the fallback policy.
func New(cfg Config, capability Capability, logger *slog.Logger) *Classifier {
	return &Classifier{
		cfg:        cfg,
		capability: capability,
		logger:     logger,
		aliases:    BuildAliasTable(nil, cfg.FuzzyThreshold),
	}
}

// RebuildAliases refreshes the alias table from ledger vendor history.
// Called at batch start so earlier commits inform later messages.
func (c *Classifier) RebuildAliases(stats []ledger.VendorStat) {
	table := BuildAliasTable(stats, c.cfg.FuzzyThreshold)
	c.mu.Lock()
	c.aliases = table
	c.mu.Unlock()
}

// Classify resolves category and canonical vendor for one candidate.
// An error is returned only for capability failures, so the caller can
// retry before settling for Degrade. Alias hits and confident semantic
// answers never error.
func (c *Classifier) Classify(ctx context.Context, cand ledger.Candidate) (ledger.Candidate, error) {
	c.mu.RLock()
	aliases := c.aliases
	c.mu.RUnlock()

	if alias, conf, ok := aliases.Resolve(cand.Vendor); ok {
		cand.CanonicalVendor = alias.Canonical
		cand.Category = alias.Category
		cand.Confidence.Category = conf
		if conf > cand.Confidence.Vendor {
			cand.Confidence.Vendor = conf
		}
		return cand, nil
	}

	if c.capability != nil && cand.Vendor != "" {
		category, score, err := c.capability.Classify(ctx, cand.Vendor, aliases.Categories())
		if err != nil {
			return cand, err
		}
		if category != "" && score >= c.cfg.MinConfidence {
			cand.CanonicalVendor = titleCase(cand.Vendor)
			cand.Category = category
			cand.Confidence.Category = score
			return cand, nil
		}
	}

	return c.fallback(cand), nil
}

// Degrade applies the fallback policy after capability retries are
// exhausted. Logged as a degraded-mode signal, never as a failure.
func (c *Classifier) Degrade(cand ledger.Candidate) ledger.Candidate {
	if c.logger != nil {
		c.logger.Warn("classifier degraded to fallback category",
			slog.String("vendor", cand.Vendor),
			slog.String("message_id", cand.SourceMessageID),
		)
	}
	return c.fallback(cand)
}

func (c *Classifier) fallback(cand ledger.Candidate) ledger.Candidate {
	if cand.CanonicalVendor == "" {
		cand.CanonicalVendor = titleCase(cand.Vendor)
	}
	cand.Category = ledger.CategoryUncategorized
	cand.Confidence.Category = 0
	return cand
}

func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
