package extractor

import (
	"regexp"
	"strings"
)

// Vendor extraction runs the same phrase matcher over the body and the
// subject line as two independent sources. The phrase matcher anchors on
// "at <Name>" / "to <Name>" and captures the run of capitalized tokens
// that follows, so lowercase filler ("on", "was") terminates the name.
var (
	vendorPhrasePattern = regexp.MustCompile(
		`\b(?:[aA][tT]|[tT][oO]|[fF][rR][oO][mM])\s+((?:[A-Z][A-Za-z0-9&'.\-]*)(?:\s+[A-Z][A-Za-z0-9&'.\-]*)*)`)

	vendorRefPattern   = regexp.MustCompile(`\s+\d{4,}$`)
	vendorDatePattern  = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
	vendorSpacePattern = regexp.MustCompile(`\s+`)
)

// card-processor noise commonly prefixed to merchant names.
var vendorNoisePrefixes = []string{
	"POS ", "VISA ", "MASTERCARD ", "MAESTRO ",
	"PURCHASE ", "PAYMENT ", "COMPRA ", "PAG ", "PGO ",
}

func extractVendor(body, subject string) (string, float64) {
	votes := make([]string, 0, 2)
	if v := phraseVendor(body); v != "" {
		votes = append(votes, v)
	}
	if v := phraseVendor(subject); v != "" {
		votes = append(votes, v)
	}
	if len(votes) == 0 {
		return "", 0
	}

	chosen := votes[0]
	agree := 0
	for _, v := range votes {
		if strings.EqualFold(v, chosen) {
			agree++
		}
	}
	return chosen, float64(agree) / 2
}

func phraseVendor(text string) string {
	match := vendorPhrasePattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return cleanVendorName(match[1])
}

// cleanVendorName strips processor prefixes, trailing reference numbers
// and date fragments that card networks append to merchant names.
func cleanVendorName(raw string) string {
	result := strings.TrimSpace(raw)

	upper := strings.ToUpper(result)
	for _, prefix := range vendorNoisePrefixes {
		if strings.HasPrefix(upper, prefix) {
			result = result[len(prefix):]
			break
		}
	}

	result = vendorRefPattern.ReplaceAllString(result, "")
	result = vendorDatePattern.ReplaceAllString(result, "")
	result = vendorSpacePattern.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}
