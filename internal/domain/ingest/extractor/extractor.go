// Package extractor turns normalized message text into candidate
// transactions. Each field is extracted by independent matchers; the
// per-field confidence is the agreement score across them, so a value
// corroborated by every matcher scores 1.0 and an uncorroborated one
// scores proportionally lower.
package extractor

import (
	"log/slog"

	"github.com/FACorreiaa/mailspend/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/pkg/money"
)

// Discard reasons reported alongside extraction output.
const (
	ReasonUnparseable   = "unparseable"
	ReasonLowConfidence = "low_confidence_discard"
)

// Discard records a message (or digest segment) that produced no usable
// candidate. Discards are signals for metrics and review, not errors.
type Discard struct {
	MessageID string
	Reason    string
}

// Config controls locale and currency fallbacks for ambiguous amounts.
type Config struct {
	// FallbackLocale resolves thousand/decimal separators when the sender
	// domain gives no hint.
	FallbackLocale money.Locale
	// FallbackCurrency is used when no currency symbol or code appears.
	FallbackCurrency string
}

// Extractor produces candidate transactions from normalized text.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.FallbackLocale == "" {
		cfg.FallbackLocale = money.LocaleUS
	}
	if cfg.FallbackCurrency == "" {
		cfg.FallbackCurrency = money.EUR
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract produces zero or more candidates from one normalized message.
// A digest message yields one candidate per detected transaction segment.
// Segments missing the required amount or direction are discarded with a
// low-confidence signal instead of being forwarded.
func (e *Extractor) Extract(norm normalizer.NormalizedText) ([]ledger.Candidate, []Discard) {
	if norm.Unparseable {
		return nil, []Discard{{MessageID: norm.Hints.MessageID, Reason: ReasonUnparseable}}
	}

	locale := money.LocaleForDomain(norm.Hints.SenderDomain, e.cfg.FallbackLocale)

	var cands []ledger.Candidate
	var discards []Discard
	for _, seg := range segments(norm.PlainText) {
		cand, ok := e.extractOne(seg, norm, locale)
		if !ok {
			discards = append(discards, Discard{
				MessageID: norm.Hints.MessageID,
				Reason:    ReasonLowConfidence,
			})
			if e.logger != nil {
				e.logger.Debug("discarded segment without required fields",
					slog.String("message_id", norm.Hints.MessageID),
					slog.String("reason", ReasonLowConfidence),
				)
			}
			continue
		}
		cands = append(cands, cand)
	}
	return cands, discards
}

// extractOne runs the per-field matchers over one transaction segment and
// assembles a candidate. Amount and direction are required; without both
// the segment is unusable.
func (e *Extractor) extractOne(seg string, norm normalizer.NormalizedText, locale money.Locale) (ledger.Candidate, bool) {
	amount, amountConf := e.extractAmount(seg, locale)
	direction, directionConf := extractDirection(seg)

	if amount == nil || amount.IsZero() || direction == "" {
		return ledger.Candidate{}, false
	}

	vendor, vendorConf := extractVendor(seg, norm.Hints.Subject)
	occurredAt, dateConf := extractDate(seg, norm.Hints.ReceivedAt, locale)

	return ledger.Candidate{
		Amount:          amount,
		Direction:       direction,
		Vendor:          vendor,
		OccurredAt:      occurredAt,
		SourceMessageID: norm.Hints.MessageID,
		Confidence: ledger.FieldConfidence{
			Amount:     amountConf,
			Direction:  directionConf,
			Vendor:     vendorConf,
			OccurredAt: dateConf,
		},
	}, true
}
