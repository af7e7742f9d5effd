package ledger

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/FACorreiaa/mailspend/pkg/money"
)

// TestDataGenerator produces realistic candidates and ledger rows for
// tests. Seeded construction keeps fixtures reproducible.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a fixed seed.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// Candidate generates one plausible extracted candidate.
func (g *TestDataGenerator) Candidate(category string, occurredAt time.Time) Candidate {
	vendor := g.faker.Company()
	amount := int64(g.faker.Number(100, 25000))

	return Candidate{
		Amount:          money.New(amount, money.USD),
		Direction:       DirectionDebit,
		Vendor:          vendor,
		CanonicalVendor: vendor,
		Category:        category,
		OccurredAt:      occurredAt,
		SourceMessageID: g.faker.UUID(),
		Confidence: FieldConfidence{
			Amount:     1.0,
			Direction:  1.0,
			Vendor:     0.9,
			Category:   0.8,
			OccurredAt: 1.0,
		},
	}
}

// MonthlyCandidates generates count candidates in category, one per month
// walking backward from end. Useful for seeding forecastable series.
func (g *TestDataGenerator) MonthlyCandidates(category string, count int, end time.Time) []Candidate {
	out := make([]Candidate, 0, count)
	for i := count - 1; i >= 0; i-- {
		occurred := MonthStart(end).AddDate(0, -i, 14)
		out = append(out, g.Candidate(category, occurred))
	}
	return out
}
