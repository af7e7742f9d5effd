package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/mailspend/pkg/money"
)

// Date extraction runs a numeric matcher (ISO and slash formats) and a
// textual-month matcher independently. When neither fires, the message
// receive time stands in at low confidence.
const receivedAtFallbackConfidence = 0.3

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	textDatePattern  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func extractDate(text string, receivedAt time.Time, locale money.Locale) (time.Time, float64) {
	votes := make([]time.Time, 0, 2)
	if d, ok := numericDate(text, locale); ok {
		votes = append(votes, d)
	}
	if d, ok := textualDate(text); ok {
		votes = append(votes, d)
	}
	if len(votes) == 0 {
		return receivedAt.UTC(), receivedAtFallbackConfidence
	}

	chosen := votes[0]
	agree := 0
	for _, v := range votes {
		if v.Equal(chosen) {
			agree++
		}
	}
	return chosen, float64(agree) / 2
}

func numericDate(text string, locale money.Locale) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return makeDate(year, month, day)
	}

	if m := slashDatePattern.FindStringSubmatch(text); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}

		// Slash dates are ambiguous; the locale hint decides the reading,
		// but an out-of-range month forces the other one.
		day, month := first, second
		if locale == money.LocaleUS {
			day, month = second, first
		}
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		return makeDate(year, month, day)
	}

	return time.Time{}, false
}

func textualDate(text string) (time.Time, bool) {
	m := textDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	month, ok := monthsByPrefix[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return makeDate(year, int(month), day)
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
