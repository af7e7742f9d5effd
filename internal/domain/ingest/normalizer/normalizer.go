// Package normalizer turns raw notification messages into a canonical
// plain-text view with structural hints for the downstream extractors.
package normalizer

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/FACorreiaa/mailspend/internal/mailbox"
)

// StructuralHints carries message metadata the extractors key off.
type StructuralHints struct {
	MessageID    string
	Sender       string
	SenderDomain string
	Subject      string
	ReceivedAt   time.Time
}

// NormalizedText is the canonical plain-text view of a message. When the
// body is empty or undecodable, Unparseable is set and PlainText is empty;
// downstream stages treat that as zero-confidence input, never as an error.
type NormalizedText struct {
	PlainText        string
	DetectedLanguage string
	Unparseable      bool
	Hints            StructuralHints
}

// Normalizer strips markup, quoted-reply chains and signature blocks.
type Normalizer struct {
	tagPattern        *regexp.Regexp
	blockBreakPattern *regexp.Regexp
	invisiblePattern  *regexp.Regexp
	quoteHeadPattern  *regexp.Regexp
	spacePattern      *regexp.Regexp
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		tagPattern:        regexp.MustCompile(`<[^>]*>`),
		blockBreakPattern: regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/tr|/li|/h[1-6]|/table)>`),
		invisiblePattern:  regexp.MustCompile(`(?is)<(?:style|script|head)[^>]*>.*?</(?:style|script|head)>`),
		quoteHeadPattern:  regexp.MustCompile(`(?i)^(on .+ wrote:|-+\s*original message\s*-+|de:.+escreveu:|from:\s.+)$`),
		spacePattern:      regexp.MustCompile(`[ \t]+`),
	}
}

// Normalize produces the canonical view of one raw message.
func (n *Normalizer) Normalize(msg mailbox.RawMessage) NormalizedText {
	out := NormalizedText{
		Hints: StructuralHints{
			MessageID:    msg.ID,
			Sender:       msg.Sender,
			SenderDomain: senderDomain(msg.Sender),
			Subject:      strings.TrimSpace(msg.Subject),
			ReceivedAt:   msg.ReceivedAt,
		},
	}

	text := msg.Body
	if looksLikeHTML(text) {
		text = n.stripHTML(text)
	}
	text = n.stripQuotedReply(text)
	text = stripSignature(text)
	text = n.collapseWhitespace(text)

	if strings.TrimSpace(text) == "" {
		out.Unparseable = true
		out.DetectedLanguage = "und"
		return out
	}

	out.PlainText = text
	out.DetectedLanguage = detectLanguage(text)
	return out
}

func senderDomain(sender string) string {
	if idx := strings.LastIndex(sender, "@"); idx >= 0 && idx < len(sender)-1 {
		return strings.ToLower(strings.Trim(sender[idx+1:], ">"))
	}
	return ""
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<table") ||
		strings.Contains(lower, "<br")
}

// stripHTML removes markup while preserving block boundaries as newlines.
func (n *Normalizer) stripHTML(body string) string {
	text := n.invisiblePattern.ReplaceAllString(body, " ")
	text = n.blockBreakPattern.ReplaceAllString(text, "\n")
	text = n.tagPattern.ReplaceAllString(text, " ")
	return html.UnescapeString(text)
}

// stripQuotedReply drops the quoted chain: everything from the first quote
// header line on, plus any ">"-prefixed lines.
func (n *Normalizer) stripQuotedReply(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if n.quoteHeadPattern.MatchString(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// stripSignature cuts the message at a recognized signature delimiter.
func stripSignature(text string) string {
	exact := []string{"--", "__"}
	prefixes := []string{"Sent from my", "Get Outlook for"}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, d := range exact {
			if trimmed == d {
				return strings.Join(lines[:i], "\n")
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) {
				return strings.Join(lines[:i], "\n")
			}
		}
	}
	return text
}

// collapseWhitespace trims each line and squeezes runs of blank lines.
func (n *Normalizer) collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(n.spacePattern.ReplaceAllString(line, " "))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// languageMarkers is ordered; ties resolve to the earlier language so
// detection is stable across runs.
var languageMarkers = []struct {
	lang  string
	words []string
}{
	{"en", []string{" the ", " your ", " was ", " on ", " at ", " spent ", " debited ", " credited ", " purchase "}},
	{"pt", []string{" de ", " foi ", " sua ", " na ", " compra ", " pagamento ", " conta ", " cartão "}},
	{"de", []string{" der ", " die ", " wurde ", " ihre ", " und ", " zahlung ", " betrag "}},
	{"fr", []string{" le ", " la ", " votre ", " été ", " paiement ", " achat ", " montant "}},
	{"es", []string{" el ", " su ", " fue ", " una ", " compra ", " pago ", " importe "}},
}

// detectLanguage scores small per-language marker sets against the text.
// Notification emails are short, so a handful of high-frequency words is
// enough to pick a locale hint.
func detectLanguage(text string) string {
	lower := " " + strings.ToLower(text) + " "

	best := "en"
	bestScore := 0
	for _, m := range languageMarkers {
		score := 0
		for _, w := range m.words {
			score += strings.Count(lower, w)
		}
		if score > bestScore {
			bestScore = score
			best = m.lang
		}
	}
	return best
}
