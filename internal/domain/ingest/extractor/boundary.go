package extractor

import "strings"

// segments splits a message into per-transaction chunks. Digest emails
// list one transaction per line; a line counts as a transaction row when
// it carries both an amount and a direction cue. Fewer than two such
// lines means the whole message describes a single transaction.
func segments(text string) []string {
	lines := strings.Split(text, "\n")

	var rows []string
	for _, line := range lines {
		if looksLikeTransactionRow(line) {
			rows = append(rows, line)
		}
	}
	if len(rows) < 2 {
		return []string{text}
	}
	return rows
}

func looksLikeTransactionRow(line string) bool {
	if !symbolAmountPattern.MatchString(line) {
		return false
	}
	return keywordDirection(line) != ""
}
