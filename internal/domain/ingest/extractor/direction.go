package extractor

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
)

// Direction inference runs two independent matchers: a polarity keyword
// count and a phrase-template match. Both must agree for full confidence.
var (
	debitKeywords  = []string{"debited", "spent", "paid", "charged", "withdrawn", "purchase", "payment", "compra", "pagamento"}
	creditKeywords = []string{"credited", "refund", "refunded", "received", "deposit", "deposited", "cashback", "reimbursed", "recebido", "reembolso"}

	debitPhrasePattern  = regexp.MustCompile(`(?i)\byou\s+(?:spent|paid|sent)\b|\bwas\s+(?:debited|charged)\b|\bpayment\s+(?:of|to)\b|\bpurchase\s+(?:of|at)\b|\bcard\s+was\s+used\b`)
	creditPhrasePattern = regexp.MustCompile(`(?i)\byou\s+received\b|\bwas\s+(?:credited|refunded|deposited)\b|\brefund\s+(?:of|for)\b|\bcredited\s+to\s+your\b|\bcashback\s+of\b`)
)

func extractDirection(text string) (ledger.Direction, float64) {
	votes := make([]ledger.Direction, 0, 2)
	if d := keywordDirection(text); d != "" {
		votes = append(votes, d)
	}
	if d := phraseDirection(text); d != "" {
		votes = append(votes, d)
	}
	if len(votes) == 0 {
		return "", 0
	}

	chosen := votes[0]
	agree := 0
	for _, v := range votes {
		if v == chosen {
			agree++
		}
	}
	return chosen, float64(agree) / 2
}

// keywordDirection counts polarity keywords and picks the dominant side.
// A tie is ambiguous and yields no vote.
func keywordDirection(text string) ledger.Direction {
	lower := strings.ToLower(text)
	debit, credit := 0, 0
	for _, kw := range debitKeywords {
		debit += strings.Count(lower, kw)
	}
	for _, kw := range creditKeywords {
		credit += strings.Count(lower, kw)
	}

	switch {
	case debit > credit:
		return ledger.DirectionDebit
	case credit > debit:
		return ledger.DirectionCredit
	default:
		return ""
	}
}

func phraseDirection(text string) ledger.Direction {
	debit := debitPhrasePattern.MatchString(text)
	credit := creditPhrasePattern.MatchString(text)

	switch {
	case debit && !credit:
		return ledger.DirectionDebit
	case credit && !debit:
		return ledger.DirectionCredit
	default:
		return ""
	}
}
